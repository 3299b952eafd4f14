package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenapool/smalloc"
	"github.com/arenapool/smalloc/facade"
)

var (
	benchBucketsCount      int
	benchBucketSizeInBytes int64
	benchIterations        int
	benchBlockSize         int64
	benchWarmup            string
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchBucketsCount, "buckets", 16, "number of size classes")
	cmd.Flags().Int64Var(&benchBucketSizeInBytes, "bucket-bytes", 1<<16, "bytes per bucket sub-region")
	cmd.Flags().IntVar(&benchIterations, "iterations", 1_000_000, "alloc/free pairs to run")
	cmd.Flags().Int64Var(&benchBlockSize, "block-size", 48, "requested block size")
	cmd.Flags().StringVar(&benchWarmup, "warmup", "hot", "thread cache warmup: cold, warm, or hot")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run an alloc/free workload through the façade and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
}

type benchResult struct {
	Iterations   int           `json:"iterations"`
	BlockSize    int64         `json:"blockSize"`
	Warmup       string        `json:"warmup"`
	Elapsed      time.Duration `json:"elapsedNanos"`
	OpsPerSecond float64       `json:"opsPerSecond"`
}

func parseWarmup(s string) smalloc.CacheWarmup {
	switch s {
	case "cold":
		return smalloc.CacheCold
	case "warm":
		return smalloc.CacheWarm
	default:
		return smalloc.CacheHot
	}
}

func runBench() error {
	h := facade.AllocatorCreate(benchBucketsCount, benchBucketSizeInBytes)
	defer facade.AllocatorDestroy(h)

	ch := facade.ThreadCacheCreate(h, parseWarmup(benchWarmup), 0)
	defer facade.ThreadCacheDestroy(h, ch)

	start := time.Now()
	for i := 0; i < benchIterations; i++ {
		p := facade.Malloc(h, ch, benchBlockSize, 16)
		facade.Free(h, ch, p)
	}
	elapsed := time.Since(start)

	result := benchResult{
		Iterations:   benchIterations,
		BlockSize:    benchBlockSize,
		Warmup:       benchWarmup,
		Elapsed:      elapsed,
		OpsPerSecond: float64(benchIterations) / elapsed.Seconds(),
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%v iterations of %v-byte alloc/free pairs in %v\n", result.Iterations, result.BlockSize, result.Elapsed)
	fmt.Printf("%.0f ops/sec\n", result.OpsPerSecond)
	return nil
}
