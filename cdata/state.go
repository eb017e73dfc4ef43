package cdata

import (
	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/cconv"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/gc"
	"github.com/wippyai/ffi-runtime/heap"
)

// Options configures a State. Zero fields are filled with defaults.
type Options struct {
	// Memory backs every object. Defaults to a growable arena.
	Memory heap.Memory

	// Allocator hands out blocks of Memory. Defaults to a free-list
	// allocator over Memory. A custom allocator must serve the same memory.
	Allocator ffiruntime.Allocator

	// Finalizers holds finalizer callbacks. Defaults to an enabled table.
	Finalizers *gc.FinalizerTable

	// InitialPages and MaxPages size the default arena. MaxPages 0 means
	// the full 32-bit address space.
	InitialPages uint32
	MaxPages     uint32
}

// DefaultOptions returns the default State configuration.
func DefaultOptions() Options {
	return Options{
		InitialPages: 1,
	}
}

// State owns the objects of one runtime: their memory, the collector root
// list and the finalizer table.
//
// State is not safe for concurrent use. The host must serialize every call.
type State struct {
	reg   *ctype.Registry
	mem   heap.Memory
	alloc ffiruntime.Allocator
	gc    *gc.Collector
	fin   *gc.FinalizerTable
	conv  *cconv.Converter
}

// New creates a State over the type registry reg.
func New(reg *ctype.Registry, opts Options) *State {
	mem := opts.Memory
	if mem == nil {
		pages := opts.InitialPages
		if pages == 0 {
			pages = 1
		}
		mem = heap.NewArena(pages, opts.MaxPages)
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = heap.NewAllocator(mem)
	}
	fin := opts.Finalizers
	if fin == nil {
		fin = gc.NewFinalizerTable()
	}

	s := &State{
		reg:   reg,
		mem:   mem,
		alloc: alloc,
		gc:    gc.NewCollector(mem),
		fin:   fin,
	}
	s.conv = cconv.New(reg, mem, s)
	return s
}

// NewWithDefaults creates a State with default options.
func NewWithDefaults(reg *ctype.Registry) *State {
	return New(reg, DefaultOptions())
}

// Registry returns the type registry.
func (s *State) Registry() *ctype.Registry {
	return s.reg
}

// Memory returns the backing memory.
func (s *State) Memory() heap.Memory {
	return s.mem
}

// Collector returns the root list and finalizer queue.
func (s *State) Collector() *gc.Collector {
	return s.gc
}

// Finalizers returns the finalizer table.
func (s *State) Finalizers() *gc.FinalizerTable {
	return s.fin
}

// Converter returns the byte converter bound to this State.
func (s *State) Converter() *cconv.Converter {
	return s.conv
}
