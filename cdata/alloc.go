package cdata

import (
	"math"

	"go.uber.org/zap"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/gc"
	"github.com/wippyai/ffi-runtime/value"
)

// Object layout.
//
//	h-8  u16 offset   variable objects only: h minus block start
//	h-6  u16 extra    block size minus payload length
//	h-4  u32 len      payload length
//	h+0  u32 next     gc link
//	h+4  u8  marked
//	h+5  u8  gct
//	h+6  u16 ctypeid
//	h+8  payload
const (
	HeaderSize    = 8
	VarHeaderSize = 8

	offCTypeID = 6

	// Side header fields, counted down from the object header.
	offVarOfs = 8
	offVarExt = 6
	offVarLen = 4

	// GCTCData tags cdata objects in the gc header.
	GCTCData uint8 = 10

	memAlign = 1 << ctype.MemAlign
)

// Data returns the payload address of cd.
func (s *State) Data(cd value.CData) uint32 {
	return uint32(cd) + HeaderSize
}

// TypeID returns the type id stored in the header of cd.
func (s *State) TypeID(cd value.CData) (ctype.ID, error) {
	id, err := s.mem.ReadU16(uint32(cd) + offCTypeID)
	return ctype.ID(id), err
}

// IsVariable reports whether cd was allocated with a variable-size header.
func (s *State) IsVariable(cd value.CData) (bool, error) {
	m, err := s.gc.Marked(cd)
	return m&gc.CDataVar != 0, err
}

// Len returns the payload length of cd.
func (s *State) Len(cd value.CData) (uint32, error) {
	v, err := s.IsVariable(cd)
	if err != nil {
		return 0, err
	}
	if v {
		return s.mem.ReadU32(uint32(cd) - offVarLen)
	}
	id, err := s.TypeID(cd)
	if err != nil {
		return 0, err
	}
	return s.fixedSize(id)
}

// fixedSize is the payload size of a fixed object of type id. Types
// without a size are functions or externs and hold a pointer.
func (s *State) fixedSize(id ctype.ID) (uint32, error) {
	d := s.reg.Raw(id)
	if !d.Kind.HasSize() {
		if d.Kind != ctype.KindFunc && d.Kind != ctype.KindExtern {
			return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidData).
				CType(s.reg.Repr(id)).
				Detail("fixed object of sizeless kind %s", d.Kind).
				Build()
		}
		return ffiruntime.PtrSize, nil
	}
	if d.Size == ctype.SizeInvalid {
		return 0, errors.InvalidSize(errors.PhaseAlloc, s.reg.Repr(id))
	}
	return d.Size, nil
}

func (s *State) allocFailed(err error, id ctype.ID, size uint32) error {
	return errors.New(errors.PhaseAlloc, errors.KindAllocation).
		CType(s.reg.Repr(id)).
		Detail("cannot allocate %d bytes", size).
		Cause(err).
		Build()
}

// link zeroes the payload, stamps the type id and puts cd at the head of
// the root list.
func (s *State) link(cd value.CData, id ctype.ID, size uint32) error {
	if id >= ctype.MaxTypes {
		return errors.New(errors.PhaseAlloc, errors.KindCapacity).
			Detail("type id %d does not fit the object header", id).
			Build()
	}
	if size > 0 {
		if err := s.mem.Write(s.Data(cd), make([]byte, size)); err != nil {
			return err
		}
	}
	if err := s.mem.WriteU16(uint32(cd)+offCTypeID, uint16(id)); err != nil {
		return err
	}
	return s.gc.Link(cd, GCTCData)
}

// New allocates a zeroed object of type id with size bytes of payload.
// When size equals the fixed size of id the object gets a fixed header.
// Otherwise it is allocated as a variable object so that Free can release
// exactly what was allocated.
func (s *State) New(id ctype.ID, size uint32) (value.CData, error) {
	if fixed, err := s.fixedSize(id); err != nil || fixed != size {
		return s.NewVariable(id, size, ctype.MemAlign)
	}
	if size > math.MaxUint32-HeaderSize {
		return 0, errors.InvalidSize(errors.PhaseAlloc, s.reg.Repr(id))
	}
	p, err := s.alloc.Alloc(HeaderSize+size, memAlign)
	if err != nil {
		return 0, s.allocFailed(err, id, HeaderSize+size)
	}
	cd := value.CData(p)
	if err := s.link(cd, id, size); err != nil {
		s.alloc.Free(p, HeaderSize+size, memAlign)
		return 0, err
	}
	Logger().Debug("cdata new",
		zap.Uint32("addr", p),
		zap.String("ctype", s.reg.Repr(id)),
		zap.Uint32("size", size))
	return cd, nil
}

// NewReference boxes addr as a reference to id. The reference type is
// interned on demand.
func (s *State) NewReference(addr uint32, id ctype.ID) (value.CData, error) {
	rid, err := s.reg.Ref(id)
	if err != nil {
		return 0, err
	}
	cd, err := s.New(rid, ffiruntime.PtrSize)
	if err != nil {
		return 0, err
	}
	if err := s.mem.WriteU32(s.Data(cd), addr); err != nil {
		return 0, err
	}
	return cd, nil
}

// NewVariable allocates a zeroed object of type id with size bytes of
// payload aligned to 2^align. The header sits right below the payload and
// a side header below it records how to recover the block.
func (s *State) NewVariable(id ctype.ID, size uint32, align uint8) (value.CData, error) {
	extra := uint64(VarHeaderSize + HeaderSize)
	if align > ctype.MemAlign {
		extra += uint64(1)<<align - memAlign
	}
	// The header offset is bounded by extra - HeaderSize.
	if extra-HeaderSize >= 1<<16 {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			CType(s.reg.Repr(id)).
			Detail("alignment 2^%d exceeds the variable header range", align).
			Build()
	}
	total := extra + uint64(size)
	if total > math.MaxUint32 {
		return 0, errors.InvalidSize(errors.PhaseAlloc, s.reg.Repr(id))
	}

	p, err := s.alloc.Alloc(uint32(total), memAlign)
	if err != nil {
		return 0, s.allocFailed(err, id, uint32(total))
	}
	almask := uint32(1)<<align - 1
	adata := p + VarHeaderSize + HeaderSize
	h := (adata+almask)&^almask - HeaderSize
	cd := value.CData(h)

	err = s.mem.WriteU16(h-offVarOfs, uint16(h-p))
	if err == nil {
		err = s.mem.WriteU16(h-offVarExt, uint16(extra))
	}
	if err == nil {
		err = s.mem.WriteU32(h-offVarLen, size)
	}
	if err == nil {
		err = s.link(cd, id, size)
	}
	if err == nil {
		err = s.gc.SetMarked(cd, s.gc.CurrentWhite()|gc.CDataVar)
	}
	if err != nil {
		_, _ = s.gc.Unlink(cd)
		s.alloc.Free(p, uint32(total), memAlign)
		return 0, err
	}
	Logger().Debug("cdata new variable",
		zap.Uint32("addr", h),
		zap.Uint32("block", p),
		zap.String("ctype", s.reg.Repr(id)),
		zap.Uint32("size", size),
		zap.Uint8("align", align))
	return cd, nil
}

// NewSized allocates an object of type id with size bytes of payload,
// choosing a variable object for variable-length arrays and types aligned
// beyond the default allocation alignment.
func (s *State) NewSized(id ctype.ID, size uint32) (value.CData, error) {
	align := s.reg.Align(id)
	if s.reg.Raw(id).Flags&ctype.FlagVLA == 0 && align <= ctype.MemAlign {
		return s.New(id, size)
	}
	return s.NewVariable(id, size, align)
}

// Free releases cd. An object with a registered finalizer is not released:
// it is moved to the finalizer queue and released by RunFinalizers.
func (s *State) Free(cd value.CData) error {
	m, err := s.gc.Marked(cd)
	if err != nil {
		return err
	}
	if m&gc.CDataFin != 0 && m&gc.Finalized != 0 {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Detail("object 0x%08x is already queued for finalization", uint32(cd)).
			Build()
	}
	ok, err := s.gc.Unlink(cd)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Detail("object 0x%08x is not live", uint32(cd)).
			Build()
	}

	if m&gc.CDataFin != 0 {
		if err := s.gc.MakeWhite(cd); err != nil {
			return err
		}
		if err := s.gc.MarkFinalized(cd); err != nil {
			return err
		}
		Logger().Debug("cdata queued for finalization", zap.Uint32("addr", uint32(cd)))
		return s.gc.EnqueueFinalizer(cd)
	}

	h := uint32(cd)
	if m&gc.CDataVar != 0 {
		ofs, err := s.mem.ReadU16(h - offVarOfs)
		if err != nil {
			return err
		}
		ext, err := s.mem.ReadU16(h - offVarExt)
		if err != nil {
			return err
		}
		n, err := s.mem.ReadU32(h - offVarLen)
		if err != nil {
			return err
		}
		s.alloc.Free(h-uint32(ofs), uint32(ext)+n, memAlign)
		Logger().Debug("cdata free variable", zap.Uint32("addr", h), zap.Uint32("size", uint32(ext)+n))
		return nil
	}

	id, err := s.TypeID(cd)
	if err != nil {
		return err
	}
	size, err := s.fixedSize(id)
	if err != nil {
		return err
	}
	s.alloc.Free(h, HeaderSize+size, memAlign)
	Logger().Debug("cdata free", zap.Uint32("addr", h), zap.Uint32("size", HeaderSize+size))
	return nil
}

// SetFinalizer returns the finalizer slot for cd and flags cd for
// finalization. When the finalizer table is disabled it returns a shared
// dummy slot and leaves cd unflagged; writes to the dummy are discarded.
func (s *State) SetFinalizer(cd value.CData) (*value.Value, error) {
	slot, ok := s.fin.Register(cd)
	if !ok {
		return s.fin.Dummy(), nil
	}
	m, err := s.gc.Marked(cd)
	if err != nil {
		return nil, err
	}
	if err := s.gc.SetMarked(cd, m|gc.CDataFin); err != nil {
		return nil, err
	}
	return slot, nil
}

// FinalizerFunc invokes the finalizer fn stored for cd.
type FinalizerFunc func(fn value.Value, cd value.CData) error

// CallHost runs finalizers stored as Go functions with value.Host.
// Other finalizer values are ignored.
func CallHost(fn value.Value, cd value.CData) error {
	switch f := fn.H.(type) {
	case func(value.CData):
		f(cd)
	case func(value.CData) error:
		return f(cd)
	}
	return nil
}

// RunFinalizers drains the finalizer queue. Each object gets its finalizer
// called once through call (CallHost when nil) and is then released.
// It returns the number of objects released.
func (s *State) RunFinalizers(call FinalizerFunc) (int, error) {
	if call == nil {
		call = CallHost
	}
	n := 0
	err := s.gc.DrainFinalizers(func(cd value.CData) error {
		if fn, ok := s.fin.Remove(cd); ok && !fn.IsNil() {
			if err := call(fn, cd); err != nil {
				Logger().Warn("finalizer failed", zap.Uint32("addr", uint32(cd)), zap.Error(err))
			}
		}
		n++
		return s.Free(cd)
	})
	return n, err
}
