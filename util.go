package smalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// cachelineSize is the hardware cache-line size used to pad hot atomics
// against false sharing and to align the arena base. golang.org/x/sys/cpu
// reports a per-architecture value (128 on some ARM64 parts, 64 on amd64);
// fall back to 64, the common case, if that value is ever reported as
// something degenerate.
var cachelineSize = func() int64 {
	padSize := int64(unsafe.Sizeof(cpu.CacheLinePad{}))
	if padSize > 0 && (padSize&(padSize-1)) == 0 {
		return padSize
	}
	return 64
}()

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
