package smalloc

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/arenapool/smalloc/lib"
)

// bucket owns one size class: a contiguous sub-region of the shared arena,
// sliced into equal-sized slots, with a lock-free LIFO freelist threaded
// through the slots themselves: arena-backed, tagged-index ABA defense, CAS
// retry loop. The bucket's storage is carved out of one shared arena
// allocation instead of each pool calling C.malloc independently, since
// bucket sizing and count are fixed upfront rather than grown on demand.
type bucket struct {
	head      atomic.Uint64
	globalTag atomic.Uint32
	_         cpu.CacheLinePad // keep head/globalTag off neighboring buckets' cachelines

	base     uintptr // first byte of this bucket's sub-region
	end      uintptr // one past the last byte of this bucket's sub-region
	slotSize int64   // S_i
	nslots   int64   // N_i

	stats lib.BucketStats
}

// initBucket carves a bucket's freelist out of [base, base+slotSize*nslots)
// and links every slot into it in order: slot 0 at the head, each slot
// pointing to the next, the last slot pointing to the empty sentinel.
func initBucket(b *bucket, base uintptr, slotSize, nslots int64) {
	b.base = base
	b.slotSize = slotSize
	b.nslots = nslots
	b.end = base + uintptr(slotSize*nslots)
	b.globalTag.Store(0)

	for i := int64(0); i < nslots; i++ {
		slot := base + uintptr(i*slotSize)
		var next uint64
		if i == nslots-1 {
			next = taggedIndexInvalid
		} else {
			next = packTagged(uint32(i), uint32((i+1)*slotSize))
		}
		*(*uint64)(unsafe.Pointer(slot)) = next
	}
	if nslots == 0 {
		b.head.Store(taggedIndexInvalid)
		return
	}
	b.head.Store(packTagged(0, 0))
}

// Slabsize returns the bucket's slot size.
func (b *bucket) Slabsize() int64 { return b.slotSize }

// IsMine reports whether p falls inside this bucket's sub-region.
func (b *bucket) IsMine(p unsafe.Pointer) bool {
	v := uintptr(p)
	return v >= b.base && v < b.end
}

// Alloc pops the head slot of the lock-free LIFO
// stack, retrying the CAS until it wins or observes the stack empty. No
// ordering stronger than the default sequentially-consistent semantics
// Go's sync/atomic already provides is required.
func (b *bucket) Alloc() (unsafe.Pointer, bool) {
	for {
		old := b.head.Load()
		if old == taggedIndexInvalid {
			b.stats.Miss.Add(1)
			return nil, false
		}
		_, offset := unpackTagged(old)
		p := b.base + uintptr(offset)
		next := *(*uint64)(unsafe.Pointer(p))
		if b.head.CompareAndSwap(old, next) {
			initblock(p, b.slotSize)
			b.stats.Hit.Add(1)
			return unsafe.Pointer(p), true
		}
	}
}

// FreeInterval prepends a pre-linked chain of
// slots [head...tail] onto the freelist in a single CAS, the same
// "prepend chain" operation single-slot frees and thread-cache batch
// flushes both go through. tail's next field must be writable; every slot
// in the chain except tail must already store a tagged index referencing
// the next slot in the chain.
func (b *bucket) FreeInterval(head, tail unsafe.Pointer) {
	tag := b.globalTag.Add(1) - 1
	node := packTagged(tag, uint32(uintptr(head)-b.base))

	for {
		old := b.head.Load()
		*(*uint64)(unsafe.Pointer(tail)) = old
		if b.head.CompareAndSwap(old, node) {
			b.stats.Free.Add(1)
			return
		}
	}
}
