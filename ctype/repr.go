package ctype

import (
	"strconv"
	"strings"
)

// Repr spells id as a C-like declaration for diagnostics.
func (r *Registry) Repr(id ID) string {
	if int(id) >= len(r.types) {
		return "<invalid ctype " + strconv.FormatUint(uint64(id), 10) + ">"
	}
	var b strings.Builder
	r.repr(&b, id, 0)
	return strings.TrimSpace(b.String())
}

func (r *Registry) repr(b *strings.Builder, id ID, depth int) {
	d := r.types[id]
	if depth > 32 {
		b.WriteString("...")
		return
	}
	switch d.Kind {
	case KindNum, KindVoid:
		b.WriteString(d.Name)
	case KindStruct:
		if d.Flags&FlagUnion != 0 {
			b.WriteString("union")
		} else {
			b.WriteString("struct")
		}
		if d.Name != "" {
			b.WriteByte(' ')
			b.WriteString(d.Name)
		}
	case KindEnum:
		b.WriteString("enum")
		if d.Name != "" {
			b.WriteByte(' ')
			b.WriteString(d.Name)
		}
	case KindTypedef:
		b.WriteString(d.Name)
	case KindPtr:
		r.repr(b, d.Child, depth+1)
		b.WriteString(" *")
	case KindRef:
		r.repr(b, d.Child, depth+1)
		b.WriteString(" &")
	case KindArray:
		switch {
		case d.IsComplex():
			b.WriteString("complex ")
			r.repr(b, d.Child, depth+1)
		case d.Flags&FlagVLA != 0:
			r.repr(b, d.Child, depth+1)
			b.WriteString(" [?]")
		default:
			r.repr(b, d.Child, depth+1)
			esz := r.Size(d.Child)
			n := uint32(0)
			if esz != 0 && esz != SizeInvalid && d.Size != SizeInvalid {
				n = d.Size / esz
			}
			if d.IsVector() {
				b.WriteString(" __attribute__((vector_size(")
				b.WriteString(strconv.FormatUint(uint64(d.Size), 10))
				b.WriteString(")))")
			} else {
				b.WriteString(" [")
				b.WriteString(strconv.FormatUint(uint64(n), 10))
				b.WriteByte(']')
			}
		}
	case KindAttrib:
		switch d.Attrib {
		case AttribQual:
			b.WriteString(Qual(d.Attr).String())
			b.WriteByte(' ')
		case AttribAlign:
			b.WriteString("__attribute__((aligned(")
			b.WriteString(strconv.FormatUint(uint64(1)<<d.Attr, 10))
			b.WriteString("))) ")
		}
		r.repr(b, d.Child, depth+1)
	case KindField:
		r.repr(b, d.Child, depth+1)
	case KindBitfield:
		if q := d.Flags.Qual(); q != 0 {
			b.WriteString(q.String())
			b.WriteByte(' ')
		}
		r.repr(b, d.Child, depth+1)
		b.WriteString(" : ")
		b.WriteString(strconv.Itoa(int(d.BitSize)))
	case KindConstval:
		b.WriteString("const ")
		r.repr(b, d.Child, depth+1)
	case KindFunc:
		r.repr(b, d.Child, depth+1)
		b.WriteString(" (")
		b.WriteString(d.Name)
		b.WriteString(")()")
	case KindExtern:
		b.WriteString("extern ")
		r.repr(b, d.Child, depth+1)
	default:
		b.WriteString(d.Kind.String())
	}
}
