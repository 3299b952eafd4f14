//go:build !debug

package smalloc

// initblock is a no-op in production builds: the backing allocator already
// hands back unspecified bytes, and zeroing every slot on every Alloc would
// cost real throughput for no correctness benefit (callers must not rely on
// zero-initialized memory from this allocator).
func initblock(block uintptr, size int64) {}
