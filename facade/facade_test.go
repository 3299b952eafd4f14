package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenapool/smalloc"
)

func TestMallocFreeRoundtrip(t *testing.T) {
	h := AllocatorCreate(8, 4096)
	defer AllocatorDestroy(h)

	p := Malloc(h, InvalidCacheHandle, 24, 8)
	require.NotNil(t, p, "expected a non-nil allocation")
	assert.EqualValues(t, 1, Mbucket(h, p))
	assert.EqualValues(t, 32, Msize(h, p))
	Free(h, InvalidCacheHandle, p)
}

func TestMallocWithThreadCache(t *testing.T) {
	h := AllocatorCreate(8, 4096)
	defer AllocatorDestroy(h)

	ch := ThreadCacheCreate(h, smalloc.CacheWarm, 0)
	defer ThreadCacheDestroy(h, ch)

	p := Malloc(h, ch, 16, 16)
	require.NotNil(t, p, "expected a non-nil cached allocation")
	Free(h, ch, p)
}

func TestHandleHygieneAfterAllocatorDestroy(t *testing.T) {
	h := AllocatorCreate(8, 4096)
	ch := ThreadCacheCreate(h, smalloc.CacheCold, 0)
	p := Malloc(h, ch, 16, 16)
	require.NotNil(t, p, "expected a non-nil allocation before destroy")

	AllocatorDestroy(h)

	assert.Nil(t, Malloc(h, ch, 16, 16), "Malloc against a destroyed handle")
	assert.EqualValues(t, 0, Msize(h, p), "Msize against a destroyed handle")
	assert.EqualValues(t, -1, Mbucket(h, p), "Mbucket against a destroyed handle")
	Free(h, ch, p)            // must not panic
	AllocatorDestroy(h)       // double-destroy must not panic
	ThreadCacheDestroy(h, ch) // destroying a cache on a dead handle must not panic
}

func TestInvalidHandleIsNeverIssued(t *testing.T) {
	h := AllocatorCreate(8, 4096)
	defer AllocatorDestroy(h)
	assert.NotEqual(t, InvalidHandle, h)

	ch := ThreadCacheCreate(h, smalloc.CacheCold, 0)
	defer ThreadCacheDestroy(h, ch)
	assert.NotEqual(t, InvalidCacheHandle, ch)
}

func TestThreadCacheCreateAgainstStaleHandle(t *testing.T) {
	h := AllocatorCreate(8, 4096)
	AllocatorDestroy(h)

	ch := ThreadCacheCreate(h, smalloc.CacheCold, 0)
	assert.Equal(t, InvalidCacheHandle, ch)
}
