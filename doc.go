// Package smalloc implements a size-class segregated memory allocator with
// per-thread caches, aimed at latency-sensitive interactive applications
// (games, real-time media) whose allocation pattern is dominated by many
// small, short-lived blocks.
//
//   - An *Allocator may be shared by many goroutines: its bucket freelists
//     are lock-free. A *ThreadCache is not safe for concurrent use.
//   - Requests up to bucketsCount*16 bytes are served from pre-carved
//     pools ("buckets"), one per 16-byte size class. Larger requests, and
//     arena provisioning itself, are delegated to a generic backing
//     allocator (see the sysalloc package for the bundled implementation).
//   - Memory is allocated from the backing allocator once, as a single
//     arena, and sliced into buckets. Pools are never returned to the
//     backing allocator until the whole Allocator is Released.
//   - Every pointer this package hands out is 16-byte aligned. Each bucket
//     sub-region starts at a multiple of its own slot size, so every slot
//     address is a multiple of the slot size; alignment requests above 16
//     bytes are served only from buckets whose slot size is a multiple of
//     the requested alignment (see allocator.go).
//   - Transparent thread-local binding needs a stable per-thread identity,
//     which goroutines don't have. A thread cache here is instead an
//     explicit *ThreadCache value the caller obtains from ThreadCacheCreate
//     and threads through every *Cached call itself; nothing is bound to a
//     goroutine behind the scenes.
package smalloc
