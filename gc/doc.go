// Package gc holds the collector state the cdata allocator cooperates with:
// the root list, mark colors, the finalizer queue and the finalizer table.
//
// Every object starts with a common header in foreign memory:
//
//	+0  u32  next    root list / finalizer queue link
//	+4  u8   marked  White0, White1, Black, Finalized, CDataFin, CDataVar
//	+5  u8   gct     object type tag
//
// Marking and sweeping belong to the host collector. This package only
// provides the linking and coloring primitives and the deferred
// finalization queue, drained with NextFinalizer.
package gc
