package smalloc

import (
	"unsafe"

	"github.com/arenapool/smalloc/api"
)

// l0Capacity is the size of a thread cache's fixed-size L0 tier per bucket.
// Chosen at the low end of the 7-10 slot range so threadCacheBucket's fixed
// fields (owner, l0, l0len, the l1 slice header) stay within one cacheline:
// 8 + 7*4 + 1 (padded to 8) + 24 = 64 bytes.
const l0Capacity = 7

// defaultL1Capacity is a bucket's L1 tier capacity when the caller's
// ThreadCacheCreate cacheSize request is non-positive. It is clamped to
// each bucket's own slot count in newThreadCache, so the effective, stored
// per-bucket capacity (ThreadCache.l1cap) is never larger than the bucket
// can actually hold.
const defaultL1Capacity = 64

// threadCacheBucket is one size class's slice of a ThreadCache: up to
// l0Capacity slots held inline as byte offsets from the owning bucket's
// base, spilling into a heap slice of raw pointers beyond that. Offsets
// reconstruct to pointers via owner.base, the same base-relative encoding
// bucket's own freelist uses for its tagged indices.
type threadCacheBucket struct {
	owner *bucket

	l0    [l0Capacity]uint32
	l0len uint8

	l1 []unsafe.Pointer
}

func (t *threadCacheBucket) offsetOf(p unsafe.Pointer) uint32 {
	return uint32(uintptr(p) - t.owner.base)
}

func (t *threadCacheBucket) atOffset(off uint32) unsafe.Pointer {
	return unsafe.Pointer(t.owner.base + uintptr(off))
}

// prefill pulls n slots straight from the owning bucket into L1 without the
// capacity bookkeeping push needs, since the caller has already bounded n
// to the L1 capacity.
func (t *threadCacheBucket) prefill(n int) {
	for i := 0; i < n; i++ {
		p, ok := t.owner.Alloc()
		if !ok {
			return
		}
		t.l1 = append(t.l1, p)
	}
}

// pop returns a slot from the cache, falling back to the owning bucket's
// freelist when both tiers are empty.
func (t *threadCacheBucket) pop() (unsafe.Pointer, bool) {
	if t.l0len > 0 {
		t.l0len--
		t.owner.stats.CacheHit.Add(1)
		return t.atOffset(t.l0[t.l0len]), true
	}
	if n := len(t.l1); n > 0 {
		p := t.l1[n-1]
		t.l1 = t.l1[:n-1]
		t.owner.stats.CacheHit.Add(1)
		return p, true
	}
	return t.owner.Alloc()
}

// push returns a slot to the cache. It fills L0 first, then spills into L1,
// flushing half of L1 to the master bucket once L1 reaches l1cap.
func (t *threadCacheBucket) push(p unsafe.Pointer, l1cap int) {
	if int(t.l0len) < l0Capacity {
		t.l0[t.l0len] = t.offsetOf(p)
		t.l0len++
		return
	}
	t.l1 = append(t.l1, p)
	if len(t.l1) >= l1cap {
		t.flushHalf()
	}
}

// flushHalf returns the bottom half of L1 to the owning bucket in one
// FreeInterval call, chaining the returned slots into a list first.
func (t *threadCacheBucket) flushHalf() {
	half := len(t.l1) / 2
	if half == 0 {
		return
	}
	// Flush before compacting: the compaction below overwrites the bottom
	// half of L1's backing array in place.
	t.flushSlots(t.l1[:half])
	t.l1 = append(t.l1[:0], t.l1[half:]...)
}

// flush returns every slot held by this cache tier to the owning bucket.
func (t *threadCacheBucket) flush() {
	for i := uint8(0); i < t.l0len; i++ {
		t.flushSlots([]unsafe.Pointer{t.atOffset(t.l0[i])})
	}
	t.l0len = 0
	if len(t.l1) > 0 {
		t.flushSlots(t.l1)
		t.l1 = t.l1[:0]
	}
}

// flushSlots links an arbitrary, non-empty slice of slots into a chain and
// hands it to the bucket in a single FreeInterval call.
func (t *threadCacheBucket) flushSlots(slots []unsafe.Pointer) {
	if len(slots) == 0 {
		return
	}
	for i := 0; i < len(slots)-1; i++ {
		*(*uint64)(slots[i]) = packTagged(0, uint32(uintptr(slots[i+1])-t.owner.base))
	}
	t.owner.FreeInterval(slots[0], slots[len(slots)-1])
}

// ThreadCache is a per-goroutine handle caching slots from every bucket of
// an Allocator. Since goroutines have no stable identity to hang a
// thread-local cache off of, callers obtain one explicitly from
// Allocator.ThreadCacheCreate and pass it into the *Cached family of
// methods; see doc.go for the rationale.
type ThreadCache struct {
	buckets []threadCacheBucket

	// l1cap holds each bucket's L1 flush threshold, parallel to buckets.
	// It lives here rather than on threadCacheBucket itself so the latter
	// stays within its cacheline budget.
	l1cap []int32
}

// newThreadCache builds a cache over bks. Each bucket's L1 capacity is
// cacheSize when positive, otherwise defaultL1Capacity, clamped either way
// to that bucket's own slot count. Warmup then decides how much of that
// capacity is prefilled into L1 up front: CacheCold prefills nothing,
// CacheWarm half, CacheHot all of it, whether or not cacheSize was given.
func newThreadCache(bks []*bucket, warmup api.CacheWarmup, cacheSize int64) *ThreadCache {
	tc := &ThreadCache{
		buckets: make([]threadCacheBucket, len(bks)),
		l1cap:   make([]int32, len(bks)),
	}
	for i, b := range bks {
		tc.buckets[i].owner = b

		l1Cap := defaultL1Capacity
		if cacheSize > 0 {
			l1Cap = int(cacheSize)
		}
		if int64(l1Cap) > b.nslots {
			l1Cap = int(b.nslots)
		}
		if l1Cap < 1 {
			l1Cap = 1
		}
		tc.l1cap[i] = int32(l1Cap)

		prefillN := 0
		switch {
		case warmup == api.CacheWarm:
			prefillN = l1Cap / 2
		case warmup == api.CacheHot:
			prefillN = l1Cap
		}
		if prefillN > 0 {
			tc.buckets[i].prefill(prefillN)
		}
	}
	return tc
}

// pop pops a cached slot for bucket index idx.
func (tc *ThreadCache) pop(idx int) (unsafe.Pointer, bool) {
	return tc.buckets[idx].pop()
}

// push returns a slot to bucket index idx's cache.
func (tc *ThreadCache) push(idx int, p unsafe.Pointer) {
	tc.buckets[idx].push(p, int(tc.l1cap[idx]))
}

// destroy flushes every bucket's cached slots back to its master freelist.
// Callers must not use the ThreadCache afterward.
func (tc *ThreadCache) destroy() {
	for i := range tc.buckets {
		tc.buckets[i].flush()
	}
}
