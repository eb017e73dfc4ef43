package ctype

import ffiruntime "github.com/wippyai/ffi-runtime"

// ID addresses a descriptor in a Registry. ID 0 is never a valid type.
type ID uint32

// Kind is the descriptor tag.
type Kind uint8

const (
	KindNum Kind = iota
	KindStruct
	KindPtr
	KindArray
	KindVoid
	KindEnum
	KindRef
	KindFunc
	KindTypedef
	KindAttrib
	KindField
	KindBitfield
	KindConstval
	KindExtern
)

var kindNames = [...]string{
	KindNum:      "num",
	KindStruct:   "struct",
	KindPtr:      "ptr",
	KindArray:    "array",
	KindVoid:     "void",
	KindEnum:     "enum",
	KindRef:      "ref",
	KindFunc:     "func",
	KindTypedef:  "typedef",
	KindAttrib:   "attrib",
	KindField:    "field",
	KindBitfield: "bitfield",
	KindConstval: "constval",
	KindExtern:   "extern",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// HasSize reports whether descriptors of this kind carry a byte size.
func (k Kind) HasSize() bool {
	return k <= KindRef
}

// Flags refine a kind. The low two bits double as qualifier bits.
type Flags uint32

const (
	FlagConst Flags = 1 << iota
	FlagVolatile
	FlagUnsigned
	FlagFloat
	FlagBool
	FlagUnion
	FlagVector
	FlagComplex
	FlagVLA
)

// Qual returns the qualifier bits carried in f.
func (f Flags) Qual() Qual {
	return Qual(f & (FlagConst | FlagVolatile))
}

// Qual is the const/volatile accumulator threaded through type chain walks.
type Qual uint8

const (
	QualConst Qual = 1 << iota
	QualVolatile
)

// Const reports whether the const bit is set.
func (q Qual) Const() bool { return q&QualConst != 0 }

func (q Qual) String() string {
	switch q & (QualConst | QualVolatile) {
	case QualConst:
		return "const"
	case QualVolatile:
		return "volatile"
	case QualConst | QualVolatile:
		return "const volatile"
	default:
		return ""
	}
}

// AttribKind selects what an attribute wrapper carries.
type AttribKind uint8

const (
	AttribQual    AttribKind = iota // Value holds Qual bits
	AttribAlign                     // Value holds log2 alignment
	AttribSubtype                   // anonymous struct/union member, Offset holds its position
)

const (
	// SizeInvalid marks a descriptor without a known size.
	SizeInvalid = ^uint32(0)

	// MaxTypes bounds the registry; object headers store type ids in 16 bits.
	MaxTypes = 1 << 16

	// PtrSize is the size of pointer and reference descriptors.
	PtrSize = ffiruntime.PtrSize

	// MemAlign is the log2 alignment every allocation already satisfies.
	MemAlign = 3
)
