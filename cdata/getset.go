package cdata

import (
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

func (s *State) badTerminal(phase errors.Phase, t ctype.ID) error {
	return errors.New(phase, errors.KindInvalidData).
		CType(s.reg.Repr(t)).
		Detail("cannot access memory through a %s descriptor", s.reg.Get(t).Kind).
		Build()
}

// Get reads the location described by the terminal type t at addr. The bool
// result reports whether the value is a newly boxed object, which the host
// collector must treat as a fresh allocation.
func (s *State) Get(t ctype.ID, addr uint32) (value.Value, bool, error) {
	d := s.reg.Get(t)
	switch d.Kind {
	case ctype.KindConstval:
		return s.constant(d), false, nil
	case ctype.KindBitfield:
		v, err := s.conv.GetBitfield(d, addr)
		return v, false, err
	case ctype.KindPtr, ctype.KindArray, ctype.KindField:
	default:
		return value.Nil(), false, s.badTerminal(errors.PhaseGet, t)
	}

	sid := d.Child
	sd := s.reg.Get(sid)
	if sd.Kind == ctype.KindRef {
		var err error
		if addr, err = s.mem.ReadU32(addr); err != nil {
			return value.Nil(), false, err
		}
		sid = sd.Child
	}
	return s.conv.ToValue(sid, addr)
}

// constant decodes a constant value. Constants are stored sign- or
// zero-extended to 32 bits; unsigned ones beyond the int32 range come back
// as numbers.
func (s *State) constant(d *ctype.Descriptor) value.Value {
	if s.reg.RawChild(d).Flags&ctype.FlagUnsigned != 0 && d.Value < 0 {
		return value.Num(float64(uint32(d.Value)))
	}
	return value.Int(int64(d.Value))
}

// Set converts v and stores it at the location described by the terminal
// type t at addr. q carries the qualifiers collected by Index. Writes to
// constants and to const-qualified locations fail with a write_to_const error.
func (s *State) Set(t ctype.ID, addr uint32, v value.Value, q ctype.Qual) error {
	d := s.reg.Get(t)
	switch d.Kind {
	case ctype.KindConstval:
		return errors.WriteToConst(errors.PhaseSet, s.reg.Repr(t))
	case ctype.KindBitfield:
		if (d.Flags.Qual() | q).Const() {
			return errors.WriteToConst(errors.PhaseSet, s.reg.Repr(t))
		}
		return s.conv.SetBitfield(d, addr, v)
	case ctype.KindPtr, ctype.KindArray, ctype.KindField:
	default:
		return s.badTerminal(errors.PhaseSet, t)
	}

	did := d.Child
	dd := s.reg.Get(did)
	if dd.Kind == ctype.KindRef {
		var err error
		if addr, err = s.mem.ReadU32(addr); err != nil {
			return err
		}
		did = dd.Child
		dd = s.reg.Get(did)
	}
	for dd.Kind == ctype.KindAttrib || dd.Kind == ctype.KindTypedef {
		if dd.IsQual() {
			q |= ctype.Qual(dd.Attr)
		}
		did = dd.Child
		dd = s.reg.Get(did)
	}
	if !dd.Kind.HasSize() || dd.Kind == ctype.KindVoid {
		return s.badTerminal(errors.PhaseSet, did)
	}
	if (dd.Flags.Qual() | q).Const() {
		return errors.WriteToConst(errors.PhaseSet, s.reg.Repr(did))
	}
	return s.conv.FromValue(did, addr, v)
}

func (s *State) missing(r Ref, key value.Value) error {
	return errors.FieldUnknown(errors.PhaseIndex, s.reg.Repr(r.Type), key.String())
}

// IndexGet resolves key against cd and reads the result. A failed lookup is
// reported as a field_unknown error.
func (s *State) IndexGet(cd value.CData, key value.Value) (value.Value, error) {
	r, err := s.Index(cd, key)
	if err != nil {
		return value.Nil(), err
	}
	if !r.Ok() {
		return value.Nil(), s.missing(r, key)
	}
	v, _, err := s.Get(r.Type, r.Addr)
	return v, err
}

// IndexSet resolves key against cd and stores v there. A failed lookup is
// reported as a field_unknown error.
func (s *State) IndexSet(cd value.CData, key value.Value, v value.Value) error {
	r, err := s.Index(cd, key)
	if err != nil {
		return err
	}
	if !r.Ok() {
		return s.missing(r, key)
	}
	return s.Set(r.Type, r.Addr, v, r.Qual)
}
