package cconv

import (
	"math"

	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
)

// loadInt reads a size-byte integer and extends it to 64 bits.
func (c *Converter) loadInt(addr, size uint32, unsigned bool) (int64, error) {
	switch size {
	case 1:
		v, err := c.Mem.ReadU8(addr)
		if unsigned {
			return int64(v), err
		}
		return int64(int8(v)), err
	case 2:
		v, err := c.Mem.ReadU16(addr)
		if unsigned {
			return int64(v), err
		}
		return int64(int16(v)), err
	case 4:
		v, err := c.Mem.ReadU32(addr)
		if unsigned {
			return int64(v), err
		}
		return int64(int32(v)), err
	case 8:
		v, err := c.Mem.ReadU64(addr)
		return int64(v), err
	}
	return 0, errors.New(errors.PhaseConvert, errors.KindInvalidData).
		Detail("unsupported integer size %d", size).
		Build()
}

// storeInt writes the low size bytes of bits.
func (c *Converter) storeInt(addr, size uint32, bits uint64) error {
	switch size {
	case 1:
		return c.Mem.WriteU8(addr, uint8(bits))
	case 2:
		return c.Mem.WriteU16(addr, uint16(bits))
	case 4:
		return c.Mem.WriteU32(addr, uint32(bits))
	case 8:
		return c.Mem.WriteU64(addr, bits)
	}
	return errors.New(errors.PhaseConvert, errors.KindInvalidData).
		Detail("unsupported integer size %d", size).
		Build()
}

func (c *Converter) loadFloat(addr, size uint32) (float64, error) {
	if size == 4 {
		v, err := c.Mem.ReadU32(addr)
		return float64(math.Float32frombits(v)), err
	}
	v, err := c.Mem.ReadU64(addr)
	return math.Float64frombits(v), err
}

func (c *Converter) storeFloat(addr, size uint32, f float64) error {
	if size == 4 {
		return c.Mem.WriteU32(addr, math.Float32bits(float32(f)))
	}
	return c.Mem.WriteU64(addr, math.Float64bits(f))
}

// scalar is a number taken from a dynamic value before it is narrowed to
// its destination type.
type scalar struct {
	i        int64
	f        float64
	float    bool
	unsigned bool // i holds a uint64 bit pattern
}

func (s scalar) bits(size uint32, unsigned bool) uint64 {
	if !s.float {
		return uint64(s.i)
	}
	if size == 8 && unsigned && s.f >= math.MaxInt64 {
		return uint64(s.f)
	}
	return uint64(int64(s.f))
}

func (s scalar) toFloat() float64 {
	switch {
	case s.float:
		return s.f
	case s.unsigned:
		return float64(uint64(s.i))
	default:
		return float64(s.i)
	}
}

func (s scalar) nonzero() bool {
	if s.float {
		return s.f != 0
	}
	return s.i != 0
}

// storeNum writes s into the numeric descriptor d at addr.
func (c *Converter) storeNum(d *ctype.Descriptor, addr uint32, s scalar) error {
	switch {
	case d.Flags&ctype.FlagBool != 0:
		var b uint64
		if s.nonzero() {
			b = 1
		}
		return c.storeInt(addr, d.Size, b)
	case d.Flags&ctype.FlagFloat != 0:
		return c.storeFloat(addr, d.Size, s.toFloat())
	default:
		return c.storeInt(addr, d.Size, s.bits(d.Size, d.Flags&ctype.FlagUnsigned != 0))
	}
}

// loadNum reads the numeric descriptor d at addr as a scalar.
func (c *Converter) loadNum(d *ctype.Descriptor, addr uint32) (scalar, error) {
	if d.Flags&ctype.FlagFloat != 0 {
		f, err := c.loadFloat(addr, d.Size)
		return scalar{f: f, float: true}, err
	}
	unsigned := d.Flags&ctype.FlagUnsigned != 0
	i, err := c.loadInt(addr, d.Size, unsigned)
	return scalar{i: i, unsigned: unsigned && d.Size == 8}, err
}
