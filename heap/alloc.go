package heap

import (
	"sort"

	"golang.org/x/exp/slices"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
)

// reserved keeps address 0 (NULL) and its neighbourhood out of circulation.
const reserved = 16

type block struct {
	addr uint32
	size uint32
}

// Stats summarizes allocator activity.
type Stats struct {
	Allocs   uint64
	Frees    uint64
	InUse    uint64
	Top      uint32
	FreeRuns int
}

// Allocator is a first-fit free-list allocator over a growable Memory.
// Freed blocks are coalesced with their neighbours; a block ending at the
// bump pointer is returned to it.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	mem   Memory
	free  []block
	top   uint32
	stats Stats
}

// NewAllocator creates an allocator that owns all of mem above a small reserved prefix.
func NewAllocator(mem Memory) *Allocator {
	return &Allocator{mem: mem, top: reserved}
}

// Memory returns the managed memory.
func (a *Allocator) Memory() Memory {
	return a.mem
}

func alignUp(v uint64, align uint32) uint64 {
	m := uint64(align) - 1
	return (v + m) &^ m
}

// Alloc returns size bytes aligned to align, which must be a power of two.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "alignment must be a power of two")
	}
	if size == 0 {
		size = 1
	}

	for i, b := range a.free {
		start := alignUp(uint64(b.addr), align)
		end := uint64(b.addr) + uint64(b.size)
		if start+uint64(size) > end {
			continue
		}
		a.take(i, uint32(start), size)
		a.stats.Allocs++
		a.stats.InUse += uint64(size)
		return uint32(start), nil
	}

	start := alignUp(uint64(a.top), align)
	end := start + uint64(size)
	if end > uint64(^uint32(0)) {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}
	if end > uint64(a.mem.Size()) {
		need := (end - uint64(a.mem.Size()) + ffiruntime.PageSize - 1) / ffiruntime.PageSize
		if _, ok := a.mem.Grow(uint32(need)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
		}
	}
	if uint32(start) > a.top {
		a.insert(block{addr: a.top, size: uint32(start) - a.top})
	}
	a.top = uint32(end)
	a.stats.Allocs++
	a.stats.InUse += uint64(size)
	return uint32(start), nil
}

// take carves [start, start+size) out of free block i.
func (a *Allocator) take(i int, start, size uint32) {
	b := a.free[i]
	head := block{addr: b.addr, size: start - b.addr}
	tail := block{addr: start + size, size: b.addr + b.size - (start + size)}

	a.free = slices.Delete(a.free, i, i+1)
	if tail.size > 0 {
		a.insert(tail)
	}
	if head.size > 0 {
		a.insert(head)
	}
}

// Free returns a block. size must match the size passed to Alloc.
func (a *Allocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	if size == 0 {
		size = 1
	}
	a.stats.Frees++
	a.stats.InUse -= uint64(size)
	a.insert(block{addr: ptr, size: size})
}

func (a *Allocator) insert(nb block) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].addr >= nb.addr })
	a.free = slices.Insert(a.free, i, nb)

	if i+1 < len(a.free) && a.free[i].addr+a.free[i].size == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = slices.Delete(a.free, i+1, i+2)
	}
	if i > 0 && a.free[i-1].addr+a.free[i-1].size == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = slices.Delete(a.free, i, i+1)
	}
	if last := len(a.free) - 1; last >= 0 && a.free[last].addr+a.free[last].size == a.top {
		a.top = a.free[last].addr
		a.free = a.free[:last]
	}
}

// Stats returns a snapshot of allocator counters.
func (a *Allocator) Stats() Stats {
	s := a.stats
	s.Top = a.top
	s.FreeRuns = len(a.free)
	return s
}
