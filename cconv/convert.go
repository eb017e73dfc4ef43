package cconv

import (
	"math"

	"golang.org/x/exp/slices"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

// Boxer creates and inspects boxed foreign-data objects on behalf of the
// converter.
type Boxer interface {
	// New allocates a zeroed fixed-size object of type id.
	New(id ctype.ID, size uint32) (value.CData, error)
	// NewReference boxes the address addr as a reference to id.
	NewReference(addr uint32, id ctype.ID) (value.CData, error)
	TypeID(cd value.CData) (ctype.ID, error)
	Data(cd value.CData) uint32
}

// Converter moves values between foreign memory and dynamic values.
type Converter struct {
	Reg *ctype.Registry
	Mem ffiruntime.Memory
	Box Boxer
}

// New creates a converter.
func New(reg *ctype.Registry, mem ffiruntime.Memory, box Boxer) *Converter {
	return &Converter{Reg: reg, Mem: mem, Box: box}
}

func (c *Converter) mismatch(v value.Value, to ctype.ID) error {
	from := v.Kind.String()
	if v.Kind == value.KindCData {
		if id, err := c.Box.TypeID(v.C); err == nil {
			from = c.Reg.Repr(id)
		}
	}
	return errors.TypeMismatch(errors.PhaseConvert, nil, from, c.Reg.Repr(to))
}

// copyBytes copies n bytes between possibly overlapping ranges.
func (c *Converter) copyBytes(dst, src, n uint32) error {
	if n == 0 || dst == src {
		return nil
	}
	buf, err := c.Mem.Read(src, n)
	if err != nil {
		return err
	}
	return c.Mem.Write(dst, slices.Clone(buf))
}

// source resolves a boxed value to its type and data address, following a
// reference box to its referent.
func (c *Converter) source(cd value.CData) (ctype.ID, *ctype.Descriptor, uint32, error) {
	id, err := c.Box.TypeID(cd)
	if err != nil {
		return ctype.IDNone, nil, 0, err
	}
	data := c.Box.Data(cd)
	d := c.Reg.Raw(id)
	if d.Kind == ctype.KindRef {
		p, err := c.Mem.ReadU32(data)
		if err != nil {
			return ctype.IDNone, nil, 0, err
		}
		id, data = d.Child, p
		d = c.Reg.Raw(id)
	}
	return id, d, data, nil
}

// scalarOf extracts a number from v for a store into a numeric type to.
func (c *Converter) scalarOf(v value.Value, to ctype.ID) (scalar, error) {
	switch v.Kind {
	case value.KindBool:
		if v.B {
			return scalar{i: 1}, nil
		}
		return scalar{}, nil
	case value.KindInt:
		return scalar{i: v.I}, nil
	case value.KindNum:
		return scalar{f: v.N, float: true}, nil
	case value.KindCData:
		_, d, data, err := c.source(v.C)
		if err != nil {
			return scalar{}, err
		}
		if d.Kind == ctype.KindEnum {
			d = c.Reg.RawChild(d)
		}
		if d.Kind == ctype.KindNum {
			return c.loadNum(d, data)
		}
	}
	return scalar{}, c.mismatch(v, to)
}

// ToValue converts the object of type id at addr to a dynamic value.
// Integers up to 32 bits, floats and bools are returned directly. Structs
// and plain arrays are returned as references to addr. Everything else is
// copied into a new box. The bool result reports whether a box was created.
func (c *Converter) ToValue(id ctype.ID, addr uint32) (value.Value, bool, error) {
	d := c.Reg.Raw(id)
	switch d.Kind {
	case ctype.KindNum:
		switch {
		case d.Flags&ctype.FlagBool != 0:
			b, err := c.Mem.ReadU8(addr)
			return value.Bool(b != 0), false, err
		case d.Flags&ctype.FlagFloat != 0:
			f, err := c.loadFloat(addr, d.Size)
			return value.Num(f), false, err
		case d.Size <= 4:
			i, err := c.loadInt(addr, d.Size, d.Flags&ctype.FlagUnsigned != 0)
			return value.Int(i), false, err
		}
	case ctype.KindStruct:
		cd, err := c.Box.NewReference(addr, id)
		return value.Box(cd), err == nil, err
	case ctype.KindArray:
		if d.Flags&(ctype.FlagVector|ctype.FlagComplex) == 0 {
			cd, err := c.Box.NewReference(addr, id)
			return value.Box(cd), err == nil, err
		}
	}

	size := c.Reg.Size(id)
	if size == ctype.SizeInvalid {
		return value.Nil(), false, errors.InvalidSize(errors.PhaseConvert, c.Reg.Repr(id))
	}
	cd, err := c.Box.New(id, size)
	if err != nil {
		return value.Nil(), false, err
	}
	if err := c.copyBytes(c.Box.Data(cd), addr, size); err != nil {
		return value.Nil(), false, err
	}
	return value.Box(cd), true, nil
}

// FromValue converts v and stores it as type id at addr.
func (c *Converter) FromValue(id ctype.ID, addr uint32, v value.Value) error {
	d := c.Reg.Raw(id)
	switch d.Kind {
	case ctype.KindNum:
		s, err := c.scalarOf(v, id)
		if err != nil {
			return err
		}
		return c.storeNum(d, addr, s)
	case ctype.KindEnum:
		if v.Kind == value.KindStr {
			m, ok := c.Reg.Member(d, v.S)
			if !ok || m.Kind != ctype.KindConstval {
				return errors.New(errors.PhaseConvert, errors.KindInvalidInput).
					CType(c.Reg.Repr(id)).
					Detail("invalid enum value %q", v.S).
					Build()
			}
			return c.storeInt(addr, d.Size, uint64(int64(m.Value)))
		}
		s, err := c.scalarOf(v, id)
		if err != nil {
			return err
		}
		return c.storeNum(c.Reg.RawChild(d), addr, s)
	case ctype.KindPtr:
		return c.storePtr(d, id, addr, v)
	case ctype.KindArray:
		return c.storeArray(d, id, addr, v)
	case ctype.KindStruct:
		return c.storeSame(id, addr, v)
	}
	return c.mismatch(v, id)
}

// storeSame copies a boxed value of the same raw type.
func (c *Converter) storeSame(id ctype.ID, addr uint32, v value.Value) error {
	if v.Kind == value.KindCData {
		sid, _, data, err := c.source(v.C)
		if err != nil {
			return err
		}
		if c.Reg.RawID(sid) == c.Reg.RawID(id) {
			return c.copyBytes(addr, data, c.Reg.Size(id))
		}
	}
	return c.mismatch(v, id)
}

func (c *Converter) storePtr(d *ctype.Descriptor, id ctype.ID, addr uint32, v value.Value) error {
	switch v.Kind {
	case value.KindNil:
		return c.Mem.WriteU32(addr, 0)
	case value.KindCData:
	default:
		return c.mismatch(v, id)
	}

	sid, sd, data, err := c.source(v.C)
	if err != nil {
		return err
	}
	var p uint32
	var elem ctype.ID
	switch {
	case sd.Kind == ctype.KindPtr:
		if p, err = c.Mem.ReadU32(data); err != nil {
			return err
		}
		elem = sd.Child
	case sd.Kind == ctype.KindArray && !sd.IsVector() && !sd.IsComplex():
		p, elem = data, sd.Child
	case sd.Kind == ctype.KindStruct || sd.Kind == ctype.KindFunc:
		p, elem = data, sid
	default:
		return c.mismatch(v, id)
	}
	if !c.compatible(d.Child, elem) {
		return c.mismatch(v, id)
	}
	return c.Mem.WriteU32(addr, p)
}

// compatible reports whether a pointer to src may be stored in a pointer to
// dst without a cast: either side is void, or both name the same type and
// no const qualifier is discarded.
func (c *Converter) compatible(dst, src ctype.ID) bool {
	if c.Reg.Quals(src).Const() && !c.Reg.Quals(dst).Const() {
		return false
	}
	dr, sr := c.Reg.Raw(dst), c.Reg.Raw(src)
	if dr.Kind == ctype.KindVoid || sr.Kind == ctype.KindVoid {
		return true
	}
	return c.Reg.RawID(dst) == c.Reg.RawID(src)
}

func (c *Converter) storeArray(d *ctype.Descriptor, id ctype.ID, addr uint32, v value.Value) error {
	if d.IsComplex() && v.Kind != value.KindCData {
		s, err := c.scalarOf(v, id)
		if err != nil {
			return err
		}
		ed := c.Reg.RawChild(d)
		if err := c.storeFloat(addr, ed.Size, s.toFloat()); err != nil {
			return err
		}
		return c.storeFloat(addr+ed.Size, ed.Size, 0)
	}

	if v.Kind == value.KindStr && !d.IsVector() && !d.IsComplex() {
		ed := c.Reg.RawChild(d)
		if ed.IsInteger() && ed.Size == 1 {
			buf := append([]byte(v.S), 0)
			if d.Size != ctype.SizeInvalid && uint64(len(buf)) > uint64(d.Size) {
				buf = buf[:d.Size]
			}
			return c.Mem.Write(addr, buf)
		}
	}
	return c.storeSame(id, addr, v)
}

// IndexKey narrows an integer or enum box to a pointer-sized signed index.
// It reports false when the box holds anything else.
func (c *Converter) IndexKey(cd value.CData) (int64, bool, error) {
	_, d, data, err := c.source(cd)
	if err != nil {
		return 0, false, err
	}
	if d.Kind == ctype.KindEnum {
		d = c.Reg.RawChild(d)
	}
	if !d.IsInteger() {
		return 0, false, nil
	}
	i, err := c.loadInt(data, d.Size, d.Flags&ctype.FlagUnsigned != 0)
	if err != nil {
		return 0, false, err
	}
	return int64(int32(i)), true, nil
}

// ToNumber returns the numeric content of a box holding a number, an enum
// or a pointer. Pointers yield their address. Unsigned 64-bit values that do
// not fit an int64 are returned as Num.
func (c *Converter) ToNumber(cd value.CData) (value.Value, bool, error) {
	_, d, data, err := c.source(cd)
	if err != nil {
		return value.Nil(), false, err
	}
	switch d.Kind {
	case ctype.KindEnum:
		d = c.Reg.RawChild(d)
	case ctype.KindPtr:
		p, err := c.Mem.ReadU32(data)
		return value.Int(int64(p)), err == nil, err
	}
	if d.Kind != ctype.KindNum {
		return value.Nil(), false, nil
	}
	if d.Flags&ctype.FlagBool != 0 {
		b, err := c.Mem.ReadU8(data)
		return value.Bool(b != 0), err == nil, err
	}
	s, err := c.loadNum(d, data)
	if err != nil {
		return value.Nil(), false, err
	}
	switch {
	case s.float:
		return value.Num(s.f), true, nil
	case s.unsigned && uint64(s.i) > math.MaxInt64:
		return value.Num(float64(uint64(s.i))), true, nil
	}
	return value.Int(s.i), true, nil
}
