package smalloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/arenapool/smalloc/api"
	"github.com/arenapool/smalloc/lib"
	"github.com/arenapool/smalloc/log"
)

// MaxValidAlignment is the largest alignment this allocator accepts on its
// arena path. Any pointer value at or below it is a sentinel (see
// isSentinel), never a real address; any alignment request above it is
// routed straight to the generic fallback, which has no such ceiling.
const MaxValidAlignment = 16384

// maxBucketsCount bounds how many size classes an Allocator may be
// configured with.
const maxBucketsCount = 64

// CacheWarmup and its constants are re-exported from api so callers of
// this package don't need a separate import just to pick a warmup level.
type CacheWarmup = api.CacheWarmup

const (
	CacheCold = api.CacheCold
	CacheWarm = api.CacheWarm
	CacheHot  = api.CacheHot
)

// bucketGranularity is the per-bucket size-class step: bucket i serves
// 16*(i+1)-byte blocks.
const bucketGranularity = 16

// Allocator dispatches allocation requests between a thread cache (when the
// caller opts in via a *ThreadCache), a set of size-class buckets carved
// out of one shared arena, and a generic fallback allocator for anything
// the buckets can't serve.
type Allocator struct {
	gen api.GenericAllocator

	arenaBase unsafe.Pointer
	buckets   []*bucket

	bucketSizeInBytes int64
	globalMiss        atomic.Uint64

	logger   log.Logger
	released atomic.Bool
}

// New constructs an Allocator from cfg and a backing fallback allocator.
// cfg is read for "bucketsCount" (default 8, must be <= 64) and
// "bucketSizeInBytes" (default 4096). The arena is carved from fallback and
// sliced into per-bucket sub-regions, each individually aligned so that
// every slot address in bucket i is a multiple of that bucket's slot size.
// The dispatcher serves an alignment above 16 only from buckets whose slot
// size is a multiple of it, so every alignment it accepts on the arena path
// is met.
func New(cfg lib.Config, fallback api.GenericAllocator) *Allocator {
	bucketsCount := cfg.Int64OrDefault("bucketsCount", 8)
	bucketSizeInBytes := cfg.Int64OrDefault("bucketSizeInBytes", 4096)
	if bucketsCount <= 0 || bucketsCount > maxBucketsCount {
		panicerr("smalloc: bucketsCount %v out of range (1..%v)", bucketsCount, maxBucketsCount)
	}
	if bucketSizeInBytes <= 0 {
		panicerr("smalloc: bucketSizeInBytes must be positive, got %v", bucketSizeInBytes)
	}

	a := &Allocator{
		gen:               fallback,
		buckets:           make([]*bucket, bucketsCount),
		bucketSizeInBytes: bucketSizeInBytes,
		logger:            log.Get(),
	}

	maxSlotSize := bucketGranularity * bucketsCount
	// Overallocate by one max-slot-size's worth of alignment slack per
	// bucket; buildBuckets below never uses more than that per bucket.
	arenaLen := bucketsCount*bucketSizeInBytes + bucketsCount*maxSlotSize
	base := fallback.Alloc(arenaLen, cachelineSize)
	if base == nil {
		panicerr("smalloc: failed to allocate %v byte arena from the backing allocator: %w", arenaLen, ErrOutOfMemory)
	}
	a.arenaBase = base

	a.buildBuckets(uintptr(base), bucketSizeInBytes, bucketsCount)
	return a
}

// buildBuckets lays out bucketsCount buckets starting at cursor, each
// individually aligned to its own slot size.
func (a *Allocator) buildBuckets(cursor uintptr, bucketSizeInBytes, bucketsCount int64) {
	for i := int64(0); i < bucketsCount; i++ {
		slotSize := bucketGranularity * (i + 1)
		aligned := uintptr(lib.RoundUpToMultiple(int64(cursor), slotSize))
		nslots := bucketSizeInBytes / slotSize
		b := &bucket{}
		initBucket(b, aligned, slotSize, nslots)
		a.buckets[i] = b
		cursor = aligned + uintptr(slotSize*nslots)
	}
}

// isSentinel reports whether p is a small-pointer sentinel rather than a
// real, dereferenceable address.
func isSentinel(p unsafe.Pointer) bool {
	return uintptr(p) <= MaxValidAlignment
}

// classify computes the bucket index a request of effective size n' would
// start its search at.
func classify(effectiveSize int64) int64 {
	return (effectiveSize - 1) >> 4
}

// Alloc services a request with no thread cache involved; it goes straight
// to the bucket freelists.
func (a *Allocator) Alloc(n, align int64) unsafe.Pointer {
	return a.allocFrom(nil, n, align)
}

// AllocCached is like Alloc but consults tc's L0/L1 tiers before touching
// the bucket freelist.
func (a *Allocator) AllocCached(tc *ThreadCache, n, align int64) unsafe.Pointer {
	return a.allocFrom(tc, n, align)
}

func (a *Allocator) allocFrom(tc *ThreadCache, n, align int64) unsafe.Pointer {
	if n == 0 && align <= MaxValidAlignment {
		return unsafe.Pointer(uintptr(align))
	}
	effective := n
	if align > effective {
		effective = align
	}

	i := classify(effective)
	B := int64(len(a.buckets))
	// Slot addresses are multiples of their bucket's slot size, so an
	// alignment above 16 is met only by buckets whose slot size it divides.
	for align > bucketGranularity && i < B && a.buckets[i].slotSize%align != 0 {
		i++
	}
	if i < B {
		if tc != nil {
			if p, ok := tc.pop(int(i)); ok {
				return p
			}
		}
		for ; i < B; i++ {
			if align > bucketGranularity && a.buckets[i].slotSize%align != 0 {
				continue
			}
			if p, ok := a.buckets[i].Alloc(); ok {
				return p
			}
			a.logger.Debugf("smalloc: bucket %v exhausted, advancing to %v", i, i+1)
		}
	}

	a.globalMiss.Add(1)
	a.logger.Warnf("smalloc: falling back to the generic allocator for %v bytes (align %v)", n, align)
	return a.gen.Alloc(n, align)
}

// Free returns p with no thread cache involved.
func (a *Allocator) Free(p unsafe.Pointer) {
	a.freeTo(nil, p)
}

// FreeCached is like Free but offers the slot to tc first.
func (a *Allocator) FreeCached(tc *ThreadCache, p unsafe.Pointer) {
	a.freeTo(tc, p)
}

func (a *Allocator) freeTo(tc *ThreadCache, p unsafe.Pointer) {
	if isSentinel(p) {
		return
	}
	if i := a.BucketOf(p); i >= 0 {
		if tc != nil {
			tc.push(int(i), p)
			return
		}
		a.buckets[i].FreeInterval(p, p)
		return
	}
	a.gen.Free(p)
}

// Realloc resizes p with no thread cache involved.
func (a *Allocator) Realloc(p unsafe.Pointer, n, align int64) unsafe.Pointer {
	return a.reallocVia(nil, p, n, align)
}

// ReallocCached is like Realloc but routes the shrink/grow's alloc and free
// steps through tc.
func (a *Allocator) ReallocCached(tc *ThreadCache, p unsafe.Pointer, n, align int64) unsafe.Pointer {
	return a.reallocVia(tc, p, n, align)
}

func (a *Allocator) reallocVia(tc *ThreadCache, p unsafe.Pointer, n, align int64) unsafe.Pointer {
	if p == nil {
		return a.allocFrom(tc, n, align)
	}
	if i := a.BucketOf(p); i >= 0 {
		slotSize := a.buckets[i].Slabsize()
		if n <= slotSize {
			a.freeTo(tc, p)
			return p
		}
		q := a.allocFrom(tc, n, align)
		if q != nil && !isSentinel(q) {
			// Growth copies the whole old slot (S_i bytes), which may
			// include bytes the caller never wrote.
			copyLen := uintptr(slotSize)
			dst := unsafe.Slice((*byte)(q), copyLen)
			src := unsafe.Slice((*byte)(p), copyLen)
			copy(dst, src)
		}
		a.freeTo(tc, p)
		return q
	}
	if isSentinel(p) {
		if n == 0 && align <= MaxValidAlignment {
			return unsafe.Pointer(uintptr(align))
		}
		return a.gen.Alloc(n, align)
	}
	return a.gen.Realloc(p, n, align)
}

// UsableSize reports how many bytes are available for write at p without
// corrupting allocator bookkeeping.
func (a *Allocator) UsableSize(p unsafe.Pointer) int64 {
	if isSentinel(p) {
		return 0
	}
	if i := a.BucketOf(p); i >= 0 {
		return a.buckets[i].Slabsize()
	}
	return a.gen.UsableSize(p)
}

// BucketOf returns the index of the bucket owning p, or -1 if p is not
// arena-owned.
func (a *Allocator) BucketOf(p unsafe.Pointer) int64 {
	if isSentinel(p) {
		return -1
	}
	for i, b := range a.buckets {
		if b.IsMine(p) {
			return int64(i)
		}
	}
	return -1
}

// IsMine reports whether p was served from this Allocator's arena.
func (a *Allocator) IsMine(p unsafe.Pointer) bool {
	return a.BucketOf(p) >= 0
}

// ThreadCacheCreate hands the caller a new per-bucket cache. cacheSize, when
// positive, sets each bucket's L1 capacity in place of the default, clamped
// to that bucket's slot count; warmup decides how much of that capacity is
// pre-fetched. The
// caller owns the returned *ThreadCache exclusively; see doc.go for why
// binding is explicit rather than transparent.
func (a *Allocator) ThreadCacheCreate(warmup CacheWarmup, cacheSize int64) *ThreadCache {
	return newThreadCache(a.buckets, warmup, cacheSize)
}

// ThreadCacheDestroy flushes every slot tc is holding back to its owning
// bucket's freelist. tc must not be used afterward.
func (a *Allocator) ThreadCacheDestroy(tc *ThreadCache) {
	tc.destroy()
}

// Stats returns a point-in-time snapshot of every bucket's counters plus
// the allocator-wide fallback-miss count.
func (a *Allocator) Stats() Stats {
	s := Stats{
		Buckets:    make([]lib.BucketStatsSnapshot, len(a.buckets)),
		GlobalMiss: a.globalMiss.Load(),
	}
	for i, b := range a.buckets {
		s.Buckets[i] = b.stats.Snapshot()
	}
	return s
}

// Stats is a snapshot of an Allocator's running counters.
type Stats struct {
	Buckets    []lib.BucketStatsSnapshot
	GlobalMiss uint64
}

// Release returns the arena to the backing allocator. The Allocator must
// not be used afterward; any still-live *ThreadCache obtained from it must
// be destroyed first: thread caches, then buckets, then arena, then
// fallback.
func (a *Allocator) Release() {
	if !a.released.CompareAndSwap(false, true) {
		return
	}
	a.gen.Free(a.arenaBase)
}
