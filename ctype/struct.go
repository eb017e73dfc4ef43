package ctype

import (
	"github.com/wippyai/ffi-runtime/errors"
)

// StructBuilder lays out a struct or union with C rules.
// Errors are sticky and reported by Build.
type StructBuilder struct {
	reg      *Registry
	err      error
	d        Descriptor
	bits     uint64
	maxAlign uint8
}

// NewStruct starts a struct declaration. An empty name declares an anonymous struct.
func (r *Registry) NewStruct(name string) *StructBuilder {
	return &StructBuilder{
		reg: r,
		d:   Descriptor{Kind: KindStruct, Name: name, index: make(map[string]int)},
	}
}

// NewUnion starts a union declaration.
func (r *Registry) NewUnion(name string) *StructBuilder {
	b := r.NewStruct(name)
	b.d.Flags |= FlagUnion
	return b
}

func (b *StructBuilder) union() bool {
	return b.d.Flags&FlagUnion != 0
}

func (b *StructBuilder) add(m Descriptor) {
	if b.err != nil {
		return
	}
	if m.Name != "" {
		if _, dup := b.d.index[m.Name]; dup {
			b.err = errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
				CType(b.spelling()).
				Detail("duplicate field %q", m.Name).
				Build()
			return
		}
	}
	id, err := b.reg.Intern(m)
	if err != nil {
		b.err = err
		return
	}
	if m.Name != "" {
		b.d.index[m.Name] = len(b.d.Members)
	}
	b.d.Members = append(b.d.Members, id)
}

// place reserves size bytes at 2^align and returns the byte offset.
func (b *StructBuilder) place(size uint32, align uint8) uint32 {
	if align > b.maxAlign {
		b.maxAlign = align
	}
	if b.union() {
		if end := uint64(size) * 8; end > b.bits {
			b.bits = end
		}
		return 0
	}
	unit := uint64(8) << align
	b.bits = (b.bits + unit - 1) &^ (unit - 1)
	ofs := uint32(b.bits / 8)
	b.bits += uint64(size) * 8
	return ofs
}

// Field appends a named member of type typ.
func (b *StructBuilder) Field(name string, typ ID) *StructBuilder {
	if b.err != nil {
		return b
	}
	size := b.reg.Size(typ)
	if size == SizeInvalid {
		b.err = errors.InvalidSize(errors.PhaseRegistry, b.reg.Repr(typ))
		return b
	}
	ofs := b.place(size, b.reg.Align(typ))
	b.add(Descriptor{Kind: KindField, Name: name, Child: typ, Offset: ofs, Size: size})
	return b
}

// Bitfield appends a bitfield of width bits backed by the integer type base.
// Qualifiers on base become the bitfield's own qualifiers.
func (b *StructBuilder) Bitfield(name string, base ID, width uint8) *StructBuilder {
	if b.err != nil {
		return b
	}
	bd := b.reg.Raw(base)
	if bd.Kind == KindEnum {
		bd = b.reg.RawChild(bd)
	}
	if bd.Kind != KindNum || bd.Flags&FlagFloat != 0 {
		b.err = errors.InvalidInput(errors.PhaseRegistry, "bitfield base must be an integer or bool")
		return b
	}
	cbits := uint64(bd.Size) * 8
	if width == 0 || uint64(width) > cbits {
		b.err = errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			CType(b.reg.Repr(base)).
			Detail("bad bitfield width %d", width).
			Build()
		return b
	}
	if bd.Align > b.maxAlign {
		b.maxAlign = bd.Align
	}

	var pos uint64
	if b.union() {
		if cbits > b.bits {
			b.bits = cbits
		}
	} else {
		if b.bits%cbits+uint64(width) > cbits {
			b.bits = (b.bits + cbits - 1) / cbits * cbits
		}
		pos = b.bits
		b.bits += uint64(width)
	}

	flags := (bd.Flags & (FlagUnsigned | FlagBool)) | Flags(b.reg.Quals(base))
	b.add(Descriptor{
		Kind:    KindBitfield,
		Name:    name,
		Child:   b.reg.RawID(base),
		Flags:   flags,
		Size:    bd.Size,
		Offset:  uint32(pos/cbits) * bd.Size,
		BitPos:  uint8(pos % cbits),
		BitSize: width,
	})
	return b
}

// Const appends a named compile-time constant of integer type typ. It takes no storage.
func (b *StructBuilder) Const(name string, value int32, typ ID) *StructBuilder {
	if b.err != nil {
		return b
	}
	td := b.reg.Raw(typ)
	if !td.IsInteger() || td.Size > 4 {
		b.err = errors.InvalidInput(errors.PhaseRegistry, "constant must have an integer type of at most 32 bits")
		return b
	}
	b.add(Descriptor{Kind: KindConstval, Name: name, Child: typ, Value: value, Size: td.Size})
	return b
}

// Embed appends an anonymous struct or union member whose fields are
// reachable by name from the enclosing struct.
func (b *StructBuilder) Embed(typ ID) *StructBuilder {
	if b.err != nil {
		return b
	}
	if b.reg.Raw(typ).Kind != KindStruct {
		b.err = errors.InvalidInput(errors.PhaseRegistry, "anonymous member must be a struct or union")
		return b
	}
	size := b.reg.Size(typ)
	ofs := b.place(size, b.reg.Align(typ))
	b.add(Descriptor{Kind: KindAttrib, Attrib: AttribSubtype, Child: typ, Offset: ofs, Size: size})
	return b
}

// Build interns the struct and binds "struct <name>" (or "union <name>") when named.
func (b *StructBuilder) Build() (ID, error) {
	if b.err != nil {
		return IDNone, b.err
	}
	unit := uint64(8) << b.maxAlign
	b.bits = (b.bits + unit - 1) &^ (unit - 1)
	b.d.Size = uint32(b.bits / 8)
	b.d.Align = b.maxAlign

	id, err := b.reg.Intern(b.d)
	if err != nil {
		return IDNone, err
	}
	if b.d.Name != "" {
		b.reg.Define(b.spelling(), id)
	}
	return id, nil
}

func (b *StructBuilder) spelling() string {
	if b.union() {
		return "union " + b.d.Name
	}
	return "struct " + b.d.Name
}
