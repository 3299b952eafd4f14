package smalloc

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/arenapool/smalloc/api"
	"github.com/arenapool/smalloc/lib"
	"github.com/arenapool/smalloc/sysalloc"
)

func newTestAllocator(t *testing.T, bucketsCount, bucketSizeInBytes int64) (*Allocator, *sysalloc.Allocator) {
	t.Helper()
	gen := sysalloc.New()
	a := New(lib.Config{
		"bucketsCount":      bucketsCount,
		"bucketSizeInBytes": bucketSizeInBytes,
	}, gen)
	return a, gen
}

func TestScenarioBasicAllocFreeLIFO(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	p := a.Alloc(24, 8)
	if idx := a.BucketOf(p); idx != 1 {
		t.Fatalf("expected bucket 1, got %v", idx)
	}
	if sz := a.UsableSize(p); sz != 32 {
		t.Fatalf("expected usable size 32, got %v", sz)
	}
	if !a.IsMine(p) {
		t.Fatalf("expected p to be arena-owned")
	}

	a.Free(p)
	p2 := a.Alloc(24, 8)
	if p2 != p {
		t.Fatalf("expected the freed slot to come back (LIFO), got a different pointer")
	}
}

func TestScenarioZeroSizeSentinel(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	p := a.Alloc(0, 64)
	if uintptr(p) != 64 {
		t.Fatalf("expected sentinel value 64, got %v", uintptr(p))
	}
	a.Free(p) // must not panic
	if sz := a.UsableSize(p); sz != 0 {
		t.Fatalf("expected usable size 0 for the sentinel, got %v", sz)
	}
	if idx := a.BucketOf(p); idx != -1 {
		t.Fatalf("expected bucket -1 for the sentinel, got %v", idx)
	}
}

func TestScenarioExhaustionAdvancesBucket(t *testing.T) {
	a, gen := newTestAllocator(t, 2, 32)
	defer func() { a.Release(); gen.Destroy() }()

	p1 := a.Alloc(16, 16)
	p2 := a.Alloc(16, 16)
	if a.BucketOf(p1) != 0 || a.BucketOf(p2) != 0 {
		t.Fatalf("expected the first two allocations to land in bucket 0")
	}

	p3 := a.Alloc(16, 16)
	if idx := a.BucketOf(p3); idx != 1 {
		t.Fatalf("expected the third allocation to advance to bucket 1, got %v", idx)
	}
}

func TestScenarioReallocGrowCopiesAndFrees(t *testing.T) {
	a, gen := newTestAllocator(t, 32, 1024)
	defer func() { a.Release(); gen.Destroy() }()

	p := a.Alloc(16, 16)
	src := unsafe.Slice((*byte)(p), 16)
	for i := range src {
		src[i] = byte(i + 1)
	}

	q := a.Realloc(p, 500, 16)
	if idx := a.BucketOf(q); idx != 31 {
		t.Fatalf("expected the grown allocation to land in bucket 31, got %v", idx)
	}
	dst := unsafe.Slice((*byte)(q), 16)
	for i := range dst {
		if dst[i] != byte(i+1) {
			t.Fatalf("byte %v not preserved across realloc: got %v", i, dst[i])
		}
	}
}

func TestScenarioConcurrentThreadCachesNoCorruption(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 1<<16)
	defer func() { a.Release(); gen.Destroy() }()

	const iterations = 20000
	var wg sync.WaitGroup
	run := func(tid int64) {
		defer wg.Done()
		tc := a.ThreadCacheCreate(api.CacheHot, 0)
		defer a.ThreadCacheDestroy(tc)
		for i := 0; i < iterations; i++ {
			p := a.AllocCached(tc, 48, 16)
			*(*int64)(p) = tid
			if got := *(*int64)(p); got != tid {
				t.Errorf("data race detected: wrote %v, read %v", tid, got)
				return
			}
			a.FreeCached(tc, p)
		}
	}

	wg.Add(2)
	go run(1)
	go run(2)
	wg.Wait()
}

func TestScenarioOversizeDelegatesToFallback(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	p := a.Alloc(10*4096, 16)
	if a.IsMine(p) {
		t.Fatalf("expected an oversize allocation to not be arena-owned")
	}
	if idx := a.BucketOf(p); idx != -1 {
		t.Fatalf("expected bucket -1 for an oversize allocation, got %v", idx)
	}
	a.Free(p) // must not panic, and must reach the fallback
}

func TestPropertyUniquenessOfLiveAllocations(t *testing.T) {
	a, gen := newTestAllocator(t, 4, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	seen := map[uintptr]bool{}
	var live []unsafe.Pointer
	for i := 0; i < 50; i++ {
		p := a.Alloc(16, 16)
		if seen[uintptr(p)] {
			t.Fatalf("pointer %v returned twice while still live", p)
		}
		seen[uintptr(p)] = true
		live = append(live, p)
	}
	for _, p := range live {
		a.Free(p)
	}
}

func TestPropertyUsableSizeMonotonicity(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	for _, n := range []int64{1, 15, 16, 17, 100} {
		p := a.Alloc(n, 16)
		if got := a.UsableSize(p); got < n {
			t.Fatalf("usable size %v smaller than requested %v", got, n)
		}
		a.Free(p)
	}
}

func TestPropertyZeroSizeContract(t *testing.T) {
	a, gen := newTestAllocator(t, 8, 4096)
	defer func() { a.Release(); gen.Destroy() }()

	for _, align := range []int64{1, 16, 64, 4096} {
		p := a.Alloc(0, align)
		if uintptr(p) != uintptr(align) {
			t.Fatalf("expected sentinel %v, got %v", align, uintptr(p))
		}
		a.Free(p)
		if a.UsableSize(p) != 0 {
			t.Fatalf("expected usable size 0 for sentinel %v", align)
		}
	}
}

func TestPropertyConfigRoundTrip(t *testing.T) {
	gen1 := sysalloc.New()
	defer gen1.Destroy()
	gen2 := sysalloc.New()
	defer gen2.Destroy()

	defaults := lib.Config{"bucketsCount": int64(4), "bucketSizeInBytes": int64(2048)}
	overrides := lib.Config{"bucketSizeInBytes": int64(8192)}
	merged := lib.Mixinconfig(defaults, overrides)

	direct := lib.Config{"bucketsCount": int64(4), "bucketSizeInBytes": int64(8192)}

	a1 := New(merged, gen1)
	a2 := New(direct, gen2)
	defer a1.Release()
	defer a2.Release()

	if len(a1.buckets) != len(a2.buckets) {
		t.Fatalf("bucket counts diverge: %v vs %v", len(a1.buckets), len(a2.buckets))
	}
	for i := range a1.buckets {
		if a1.buckets[i].Slabsize() != a2.buckets[i].Slabsize() {
			t.Fatalf("bucket %v slot size diverges", i)
		}
		if a1.buckets[i].nslots != a2.buckets[i].nslots {
			t.Fatalf("bucket %v slot count diverges", i)
		}
	}
}
