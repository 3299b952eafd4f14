package smalloc

import "errors"

// ErrOutOfMemory is wrapped by the error New panics with when the backing
// allocator cannot provide the arena. Out-of-memory after construction is
// reported as a nil pointer from Alloc/Realloc, not as this error.
var ErrOutOfMemory = errors.New("smalloc: out of memory")

// ErrReleased names use of an Allocator or ThreadCache after it has been
// released or destroyed. No operation in this package checks for such use
// or returns this error.
var ErrReleased = errors.New("smalloc: use after release")
