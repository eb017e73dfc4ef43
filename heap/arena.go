package heap

import (
	"encoding/binary"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
)

// Memory is a growable flat address space.
type Memory interface {
	ffiruntime.Memory
	ffiruntime.MemorySizer
	ffiruntime.Grower
}

// Arena is a Go-slice backed Memory that grows in pages up to a limit.
type Arena struct {
	data     []byte
	maxPages uint32
}

// NewArena creates an arena of initial pages that may grow to maxPages.
// A zero maxPages means the full 4 GiB address space.
func NewArena(pages, maxPages uint32) *Arena {
	if maxPages == 0 || maxPages > 65536 {
		maxPages = 65536
	}
	return &Arena{
		data:     make([]byte, uint64(pages)*ffiruntime.PageSize),
		maxPages: maxPages,
	}
}

// Size returns the current size in bytes. A full 4 GiB arena reports 0xffffffff.
func (a *Arena) Size() uint32 {
	if uint64(len(a.data)) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(len(a.data))
}

// Grow extends the arena by delta pages and returns the previous page count.
func (a *Arena) Grow(delta uint32) (uint32, bool) {
	prev := uint32(uint64(len(a.data)) / ffiruntime.PageSize)
	if uint64(prev)+uint64(delta) > uint64(a.maxPages) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	grown := make([]byte, (uint64(prev)+uint64(delta))*ffiruntime.PageSize)
	copy(grown, a.data)
	a.data = grown
	return prev, true
}

func (a *Arena) span(offset, length uint32, phase errors.Phase) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(a.data)) {
		return nil, errors.OutOfBounds(phase, offset, length)
	}
	return a.data[offset:end], nil
}

// Read returns a view of length bytes at offset. The view aliases the arena.
func (a *Arena) Read(offset uint32, length uint32) ([]byte, error) {
	return a.span(offset, length, errors.PhaseGet)
}

// Write copies data to offset.
func (a *Arena) Write(offset uint32, data []byte) error {
	b, err := a.span(offset, uint32(len(data)), errors.PhaseSet)
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (a *Arena) ReadU8(offset uint32) (uint8, error) {
	b, err := a.span(offset, 1, errors.PhaseGet)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (a *Arena) ReadU16(offset uint32) (uint16, error) {
	b, err := a.span(offset, 2, errors.PhaseGet)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (a *Arena) ReadU32(offset uint32) (uint32, error) {
	b, err := a.span(offset, 4, errors.PhaseGet)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (a *Arena) ReadU64(offset uint32) (uint64, error) {
	b, err := a.span(offset, 8, errors.PhaseGet)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (a *Arena) WriteU8(offset uint32, value uint8) error {
	b, err := a.span(offset, 1, errors.PhaseSet)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (a *Arena) WriteU16(offset uint32, value uint16) error {
	b, err := a.span(offset, 2, errors.PhaseSet)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (a *Arena) WriteU32(offset uint32, value uint32) error {
	b, err := a.span(offset, 4, errors.PhaseSet)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (a *Arena) WriteU64(offset uint32, value uint64) error {
	b, err := a.span(offset, 8, errors.PhaseSet)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
