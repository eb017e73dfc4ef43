package cconv

import (
	"math"

	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

func (c *Converter) checkBitfield(d *ctype.Descriptor) error {
	if uint32(d.BitPos)+uint32(d.BitSize) > d.Size*8 || d.BitSize == 0 {
		return errors.New(errors.PhaseConvert, errors.KindInvalidData).
			CType(c.Reg.Repr(d.Child)).
			Detail("bitfield %d:%d crosses its %d-byte container", d.BitPos, d.BitSize, d.Size).
			Build()
	}
	return nil
}

// GetBitfield unpacks the bitfield d from its container at addr.
// Signed fields are sign-extended; bool fields yield a Bool.
func (c *Converter) GetBitfield(d *ctype.Descriptor, addr uint32) (value.Value, error) {
	if err := c.checkBitfield(d); err != nil {
		return value.Nil(), err
	}
	raw, err := c.loadInt(addr, d.Size, true)
	if err != nil {
		return value.Nil(), err
	}
	val := uint64(raw)
	pos, bsz := uint(d.BitPos), uint(d.BitSize)

	if d.Flags&ctype.FlagBool != 0 {
		return value.Bool((val>>pos)&1 != 0), nil
	}
	shift := 64 - bsz
	if d.Flags&ctype.FlagUnsigned == 0 {
		return value.Int(int64(val<<(shift-pos)) >> shift), nil
	}
	u := (val << (shift - pos)) >> shift
	if u > math.MaxInt64 {
		return value.Num(float64(u)), nil
	}
	return value.Int(int64(u)), nil
}

// SetBitfield converts v and packs it into the bitfield d at addr, leaving
// the other bits of the container untouched. Excess high bits are dropped.
func (c *Converter) SetBitfield(d *ctype.Descriptor, addr uint32, v value.Value) error {
	if err := c.checkBitfield(d); err != nil {
		return err
	}
	s, err := c.scalarOf(v, d.Child)
	if err != nil {
		return err
	}

	pos := uint(d.BitPos)
	mask := (^uint64(0) >> (64 - uint(d.BitSize))) << pos
	var bits uint64
	if d.Flags&ctype.FlagBool != 0 {
		if s.nonzero() {
			bits = 1 << pos
		}
	} else {
		bits = (s.bits(8, d.Flags&ctype.FlagUnsigned != 0) << pos) & mask
	}

	cur, err := c.loadInt(addr, d.Size, true)
	if err != nil {
		return err
	}
	return c.storeInt(addr, d.Size, uint64(cur)&^mask|bits)
}
