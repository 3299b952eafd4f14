//go:build debug

package smalloc

import "unsafe"

// poisonByte fills freshly handed-out slots with a recognizable byte
// pattern in debug builds, so use-before-init bugs in the embedding
// application surface as visibly wrong data instead of innocuous zeros.
const poisonByte = 0xff

func initblock(block uintptr, size int64) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(block)), size)
	for i := range dst {
		dst[i] = poisonByte
	}
}
