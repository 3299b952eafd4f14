package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arenapool/smalloc"
	"github.com/arenapool/smalloc/lib"
	"github.com/arenapool/smalloc/sysalloc"
)

var (
	statsBucketsCount      int64
	statsBucketSizeInBytes int64
	statsWorkload          int
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().Int64Var(&statsBucketsCount, "buckets", 16, "number of size classes")
	cmd.Flags().Int64Var(&statsBucketSizeInBytes, "bucket-bytes", 1<<16, "bytes per bucket sub-region")
	cmd.Flags().IntVar(&statsWorkload, "workload", 50000, "alloc/free pairs to run per bucket before reporting")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Run a short workload and print per-bucket utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runStats() error {
	fallback := sysalloc.New()
	defer fallback.Destroy()

	a := smalloc.New(lib.Config{
		"bucketsCount":      statsBucketsCount,
		"bucketSizeInBytes": statsBucketSizeInBytes,
	}, fallback)
	defer a.Release()

	tc := a.ThreadCacheCreate(smalloc.CacheWarm, 0)
	defer a.ThreadCacheDestroy(tc)

	var sizes lib.AverageInt64
	for bucket := int64(0); bucket < statsBucketsCount; bucket++ {
		size := 16 * (bucket + 1)
		for i := 0; i < statsWorkload; i++ {
			p := a.AllocCached(tc, size, 16)
			sizes.Add(size)
			a.FreeCached(tc, p)
		}
	}

	snap := a.Stats()
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			smalloc.Stats
			MeanRequestSize int64   `json:"meanRequestSize"`
			SizeVariance    float64 `json:"sizeVariance"`
		}{snap, sizes.Mean(), sizes.Variance()})
	}

	fmt.Printf("global misses: %v\n", snap.GlobalMiss)
	for i, b := range snap.Buckets {
		fmt.Printf("bucket %2d (%5d B): hit=%d cacheHit=%d miss=%d free=%d\n",
			i, 16*(int64(i)+1), b.Hit, b.CacheHit, b.Miss, b.Free)
	}
	fmt.Printf("requested size: mean=%d min=%d max=%d variance=%.1f samples=%d\n",
		sizes.Mean(), sizes.Min(), sizes.Max(), sizes.Variance(), sizes.Samples())
	return nil
}
