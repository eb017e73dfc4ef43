// Package ffiruntime is a foreign data engine for embedding in dynamically
// typed runtimes.
//
// Scripts allocate, index, read and write values whose memory layout is
// described by C types rather than by the runtime's own value model. The
// engine resolves a nested type description (pointer, array, struct,
// bitfield, qualifier wrapper, reference) down to one address and one
// terminal type, enforces const correctness and converts between raw bytes
// and tagged values.
//
// # Architecture Overview
//
//	ffiruntime/          Root package with core Memory and Allocator interfaces
//	├── ctype/           Type registry: descriptors, struct layout, WIT import
//	├── heap/            Linear memories (slice arena, wazero) and the allocator
//	├── gc/              Root list, mark colors, finalizer queue and table
//	├── cconv/           Conversion between raw memory and dynamic values
//	├── cdata/           Object allocation, index resolution, get and set
//	├── embed/           Native call boundary: push, check and resolve types
//	├── value/           Tagged dynamic values
//	├── errors/          Structured error types for debugging
//	├── internal/decl/   YAML type declarations
//	└── cmd/cdata/       Command line inspector
//
// # Quick Start
//
//	reg := ctype.New()
//	pt, _ := reg.NewStruct("point").
//	    Field("x", ctype.IDInt32).
//	    Field("y", ctype.IDDouble).
//	    Build()
//
//	st := cdata.NewWithDefaults(reg)
//	cd, err := st.New(pt, reg.Size(pt))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := st.IndexSet(cd, value.Str("y"), value.Num(2.5)); err != nil {
//	    log.Fatal(err)
//	}
//	y, _ := st.IndexGet(cd, value.Str("y"))
//
// # Memory Backends
//
// A State works on any Memory. heap.Arena keeps objects in a Go slice;
// heap.WazeroMemory places them in the linear memory of a wazero module so
// that guest code can share them.
//
// # Errors
//
// All errors are *errors.Error values carrying a phase and a kind. Test
// them with errors.Is against the package sentinels, for example
// errors.ErrWriteToConst. A key that matches nothing is not an error for
// Index: it is reported through Ref.Status.
package ffiruntime
