// Package sysalloc implements the generic backing allocator the core
// dispatcher falls back to for oversize requests and uses to provision the
// bucket arena itself. It is a thin cgo wrapper that reaches for
// C.malloc/C.free directly rather than re-implementing a bump or slab
// allocator on top of make([]byte, ...).
package sysalloc

/*
#include <stdlib.h>
#include <string.h>
#include <errno.h>

static void *sm_aligned_alloc(size_t alignment, size_t size) {
	void *p = NULL;
	if (posix_memalign(&p, alignment, size) != 0) {
		return NULL;
	}
	return p;
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// naturalAlignment is the alignment libc malloc already guarantees on all
// platforms this module targets (8 bytes on 32-bit, 16 on 64-bit; 16 is
// always safe to assume conservatively).
const naturalAlignment = 16

// Allocator is a cgo-backed implementation of api.GenericAllocator.
// A nil *Allocator is the "invalid instance" sentinel api.GenericAllocator's
// IsValid contract calls for.
type Allocator struct {
	mu    sync.Mutex
	sizes map[unsafe.Pointer]int64 // requested size, keyed by returned pointer
	freed bool
}

// New creates a ready-to-use Allocator.
func New() *Allocator {
	return &Allocator{sizes: make(map[unsafe.Pointer]int64)}
}

// IsValid implements api.GenericAllocator.
func (a *Allocator) IsValid() bool {
	return a != nil && !a.freed
}

// Alloc implements api.GenericAllocator. align must be a power of two;
// behavior for non-power-of-two alignments is undefined, matching the
// contract the core dispatcher documents for its own Alloc.
func (a *Allocator) Alloc(n, align int64) unsafe.Pointer {
	if n <= 0 {
		n = 1
	}
	var p unsafe.Pointer
	if align <= naturalAlignment {
		p = C.malloc(C.size_t(n))
	} else {
		p = C.sm_aligned_alloc(C.size_t(align), C.size_t(n))
	}
	if p == nil {
		return nil
	}
	a.mu.Lock()
	a.sizes[p] = n
	a.mu.Unlock()
	return p
}

// Free implements api.GenericAllocator. Free(nil) is a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	a.mu.Lock()
	delete(a.sizes, p)
	a.mu.Unlock()
	C.free(p)
}

// Realloc implements api.GenericAllocator. When align exceeds the natural
// alignment libc's realloc provides, the resized block is copied into a
// freshly aligned allocation, since libc has no aligned-realloc primitive.
func (a *Allocator) Realloc(p unsafe.Pointer, n, align int64) unsafe.Pointer {
	if p == nil {
		return a.Alloc(n, align)
	}
	if n <= 0 {
		a.Free(p)
		return nil
	}
	if align <= naturalAlignment {
		np := C.realloc(p, C.size_t(n))
		if np == nil {
			return nil
		}
		a.mu.Lock()
		delete(a.sizes, p)
		a.sizes[np] = n
		a.mu.Unlock()
		return np
	}

	old := a.UsableSize(p)
	np := a.Alloc(n, align)
	if np == nil {
		return nil
	}
	copyLen := old
	if n < copyLen {
		copyLen = n
	}
	if copyLen > 0 {
		C.memcpy(np, p, C.size_t(copyLen))
	}
	a.Free(p)
	return np
}

// UsableSize implements api.GenericAllocator, returning the size
// originally requested at Alloc/Realloc time. Real malloc implementations
// often round up internally, but querying that (glibc's malloc_usable_size)
// is not portable across libc implementations, so this module tracks the
// requested size itself rather than depending on a glibc-only extension.
func (a *Allocator) UsableSize(p unsafe.Pointer) int64 {
	if p == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sizes[p]
}

// Destroy releases every outstanding allocation still tracked by this
// instance and marks it invalid. Callers that have already freed everything
// may skip it. smalloc's Allocator.Release does not call it (Release frees
// only the arena); a caller owning both, such as the facade package, calls
// Destroy after Release.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for p := range a.sizes {
		C.free(p)
		delete(a.sizes, p)
	}
	a.freed = true
}
