// Package facade exposes a C-ABI-style entry point set over the allocator
// core: opaque uint64 handles standing in for raw pointers, since handing a
// Go pointer across a stable ABI-like boundary is unsafe under a
// moving/copying GC. Everything here is a thin wrapper over
// *smalloc.Allocator / *smalloc.ThreadCache, resolved through a package-
// level handle table.
package facade

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/arenapool/smalloc"
	"github.com/arenapool/smalloc/lib"
	"github.com/arenapool/smalloc/sysalloc"
)

// Handle identifies a live *smalloc.Allocator. The zero value,
// InvalidHandle, never names a real allocator.
type Handle uint64

// CacheHandle identifies a live *smalloc.ThreadCache. The zero value,
// InvalidCacheHandle, means "no cache": Malloc/Free/Realloc calls made
// with it go straight to the bucket freelists, the same as calling
// smalloc.Allocator.Alloc/Free/Realloc directly.
type CacheHandle uint64

// InvalidHandle is never issued by AllocatorCreate.
const InvalidHandle Handle = 0

// InvalidCacheHandle is never issued by ThreadCacheCreate; it also doubles
// as "no thread cache" when passed to Malloc/Free/Realloc.
const InvalidCacheHandle CacheHandle = 0

type allocatorEntry struct {
	alloc    *smalloc.Allocator
	fallback *sysalloc.Allocator
	caches   sync.Map // CacheHandle -> *smalloc.ThreadCache
}

var (
	nextHandle      atomic.Uint64
	nextCacheHandle atomic.Uint64
	allocators      sync.Map // Handle -> *allocatorEntry
)

// AllocatorCreate constructs a new allocator with bucketsCount size classes
// of bucketSizeInBytes bytes each and returns a handle to it.
func AllocatorCreate(bucketsCount int, bucketSizeInBytes int64) Handle {
	fallback := sysalloc.New()
	alloc := smalloc.New(lib.Config{
		"bucketsCount":      int64(bucketsCount),
		"bucketSizeInBytes": bucketSizeInBytes,
	}, fallback)

	h := Handle(nextHandle.Add(1))
	allocators.Store(h, &allocatorEntry{alloc: alloc, fallback: fallback})
	return h
}

// AllocatorDestroy destroys every thread cache still registered against h,
// releases the allocator's arena, and removes h from the handle table. A
// stale or already-destroyed h is a no-op.
func AllocatorDestroy(h Handle) {
	v, ok := allocators.LoadAndDelete(h)
	if !ok {
		return
	}
	entry := v.(*allocatorEntry)
	entry.caches.Range(func(key, value interface{}) bool {
		entry.alloc.ThreadCacheDestroy(value.(*smalloc.ThreadCache))
		entry.caches.Delete(key)
		return true
	})
	entry.alloc.Release()
	entry.fallback.Destroy()
}

// ThreadCacheCreate creates a thread cache against h and returns a handle
// to it. cacheSize, when positive, sets each bucket's L1 capacity in place
// of the default; warmup decides how much of it is pre-fetched. Returns
// InvalidCacheHandle if h does not name a live allocator.
func ThreadCacheCreate(h Handle, warmup smalloc.CacheWarmup, cacheSize int) CacheHandle {
	entry, ok := lookup(h)
	if !ok {
		return InvalidCacheHandle
	}
	tc := entry.alloc.ThreadCacheCreate(warmup, int64(cacheSize))
	ch := CacheHandle(nextCacheHandle.Add(1))
	entry.caches.Store(ch, tc)
	return ch
}

// ThreadCacheDestroy flushes and retires ch. A stale handle, or a stale h,
// is a no-op.
func ThreadCacheDestroy(h Handle, ch CacheHandle) {
	entry, ok := lookup(h)
	if !ok {
		return
	}
	v, ok := entry.caches.LoadAndDelete(ch)
	if !ok {
		return
	}
	entry.alloc.ThreadCacheDestroy(v.(*smalloc.ThreadCache))
}

// Malloc allocates n bytes aligned to a through h, optionally through the
// thread cache named by ch. Returns nil if h does not name a live
// allocator.
func Malloc(h Handle, ch CacheHandle, n, a int64) unsafe.Pointer {
	entry, ok := lookup(h)
	if !ok {
		return nil
	}
	if tc, ok := lookupCache(entry, ch); ok {
		return entry.alloc.AllocCached(tc, n, a)
	}
	return entry.alloc.Alloc(n, a)
}

// Free releases p through h, optionally offering it to the thread cache
// named by ch first. A stale h is a no-op: free never reports an error.
func Free(h Handle, ch CacheHandle, p unsafe.Pointer) {
	entry, ok := lookup(h)
	if !ok {
		return
	}
	if tc, ok := lookupCache(entry, ch); ok {
		entry.alloc.FreeCached(tc, p)
		return
	}
	entry.alloc.Free(p)
}

// Realloc resizes p through h. Returns nil if h does not name a live
// allocator.
func Realloc(h Handle, ch CacheHandle, p unsafe.Pointer, n, a int64) unsafe.Pointer {
	entry, ok := lookup(h)
	if !ok {
		return nil
	}
	if tc, ok := lookupCache(entry, ch); ok {
		return entry.alloc.ReallocCached(tc, p, n, a)
	}
	return entry.alloc.Realloc(p, n, a)
}

// Msize reports the usable size at p, or 0 if h does not name a live
// allocator.
func Msize(h Handle, p unsafe.Pointer) int64 {
	entry, ok := lookup(h)
	if !ok {
		return 0
	}
	return entry.alloc.UsableSize(p)
}

// Mbucket reports the bucket index owning p, or -1 if p is not
// arena-owned or h does not name a live allocator.
func Mbucket(h Handle, p unsafe.Pointer) int32 {
	entry, ok := lookup(h)
	if !ok {
		return -1
	}
	return int32(entry.alloc.BucketOf(p))
}

func lookup(h Handle) (*allocatorEntry, bool) {
	v, ok := allocators.Load(h)
	if !ok {
		return nil, false
	}
	return v.(*allocatorEntry), true
}

func lookupCache(entry *allocatorEntry, ch CacheHandle) (*smalloc.ThreadCache, bool) {
	if ch == InvalidCacheHandle {
		return nil, false
	}
	v, ok := entry.caches.Load(ch)
	if !ok {
		return nil, false
	}
	return v.(*smalloc.ThreadCache), true
}
