package heap

import (
	"fmt"

	ffiruntime "github.com/wippyai/ffi-runtime"
)

// Allocation records one block handed out by an allocator.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Tracker wraps an allocator and records every request, so tests can assert
// exact request sizes, matched frees and leaks.
type Tracker struct {
	inner    ffiruntime.Allocator
	live     map[uint32]Allocation
	history  []Allocation
	freed    []Allocation
	mismatch []error
}

// NewTracker wraps inner.
func NewTracker(inner ffiruntime.Allocator) *Tracker {
	return &Tracker{
		inner: inner,
		live:  make(map[uint32]Allocation),
	}
}

func (t *Tracker) Alloc(size, align uint32) (uint32, error) {
	ptr, err := t.inner.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	a := Allocation{Ptr: ptr, Size: size, Align: align}
	t.live[ptr] = a
	t.history = append(t.history, a)
	return ptr, nil
}

func (t *Tracker) Free(ptr, size, align uint32) {
	a, ok := t.live[ptr]
	switch {
	case !ok:
		t.mismatch = append(t.mismatch, fmt.Errorf("free of unknown block 0x%x (size %d)", ptr, size))
	case a.Size != size:
		t.mismatch = append(t.mismatch, fmt.Errorf("free of block 0x%x with size %d, allocated %d", ptr, size, a.Size))
	}
	delete(t.live, ptr)
	t.freed = append(t.freed, Allocation{Ptr: ptr, Size: size, Align: align})
	t.inner.Free(ptr, size, align)
}

// Live returns the number of blocks not yet freed.
func (t *Tracker) Live() int {
	return len(t.live)
}

// LiveBytes returns the total size of blocks not yet freed.
func (t *Tracker) LiveBytes() uint64 {
	var n uint64
	for _, a := range t.live {
		n += uint64(a.Size)
	}
	return n
}

// LastAlloc returns the most recent allocation request.
func (t *Tracker) LastAlloc() (Allocation, bool) {
	if len(t.history) == 0 {
		return Allocation{}, false
	}
	return t.history[len(t.history)-1], true
}

// LastFree returns the most recent free request.
func (t *Tracker) LastFree() (Allocation, bool) {
	if len(t.freed) == 0 {
		return Allocation{}, false
	}
	return t.freed[len(t.freed)-1], true
}

// Err returns the first mismatched free, if any.
func (t *Tracker) Err() error {
	if len(t.mismatch) == 0 {
		return nil
	}
	return t.mismatch[0]
}

// Reset forgets history while keeping live blocks.
func (t *Tracker) Reset() {
	t.history = t.history[:0]
	t.freed = t.freed[:0]
	t.mismatch = t.mismatch[:0]
}
