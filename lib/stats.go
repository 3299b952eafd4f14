package lib

import "sync/atomic"

// BucketStats holds relaxed-ordered running counters per bucket: cacheHit,
// hit, miss and free. None of these participate in correctness; they exist
// so an embedding application can watch pool pressure.
type BucketStats struct {
	CacheHit atomic.Uint64
	Hit      atomic.Uint64
	Miss     atomic.Uint64
	Free     atomic.Uint64
}

// Snapshot copies the current counter values without resetting them.
func (s *BucketStats) Snapshot() BucketStatsSnapshot {
	return BucketStatsSnapshot{
		CacheHit: s.CacheHit.Load(),
		Hit:      s.Hit.Load(),
		Miss:     s.Miss.Load(),
		Free:     s.Free.Load(),
	}
}

// BucketStatsSnapshot is a point-in-time, non-atomic copy of BucketStats
// suitable for printing or comparing.
type BucketStatsSnapshot struct {
	CacheHit, Hit, Miss, Free uint64
}

// AverageInt64 computes running mean, min, max and variance over a stream
// of int64 samples. The CLI driver feeds it the requested size of every
// allocation in a workload to summarize the size distribution observed.
type AverageInt64 struct {
	n      int64
	minval int64
	maxval int64
	sum    int64
	sumsq  float64
	init   bool
}

// Add records one sample.
func (av *AverageInt64) Add(sample int64) {
	av.n++
	av.sum += sample
	f := float64(sample)
	av.sumsq += f * f
	if !av.init {
		av.minval, av.maxval = sample, sample
		av.init = true
	}
	if sample < av.minval {
		av.minval = sample
	}
	if sample > av.maxval {
		av.maxval = sample
	}
}

// Min returns the smallest sample seen, or 0 if none.
func (av *AverageInt64) Min() int64 { return av.minval }

// Max returns the largest sample seen.
func (av *AverageInt64) Max() int64 { return av.maxval }

// Samples returns the number of samples recorded.
func (av *AverageInt64) Samples() int64 { return av.n }

// Mean returns the running mean, or 0 if no samples were recorded.
func (av *AverageInt64) Mean() int64 {
	if av.n == 0 {
		return 0
	}
	return int64(float64(av.sum) / float64(av.n))
}

// Variance returns the running variance, or 0 if no samples were recorded.
func (av *AverageInt64) Variance() float64 {
	if av.n == 0 {
		return 0
	}
	nf := float64(av.n)
	meanf := float64(av.sum) / nf
	return (av.sumsq / nf) - (meanf * meanf)
}
