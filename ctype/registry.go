package ctype

import (
	"golang.org/x/exp/slices"

	"github.com/wippyai/ffi-runtime/errors"
)

// Builtin type ids. They are interned by New in this order.
const (
	IDNone ID = iota
	IDVoid
	IDBool
	IDChar
	IDInt8
	IDUInt8
	IDInt16
	IDUInt16
	IDInt32
	IDUInt32
	IDInt64
	IDUInt64
	IDFloat
	IDDouble
	IDComplexFloat
	IDComplexDouble
	IDPtrVoid
	IDConstChar
	IDPtrConstChar
	IDCTypeID
)

// IDIntPSZ is the pointer-sized signed integer used to narrow index keys.
const IDIntPSZ = IDInt32

// Descriptor describes one C type. Descriptors are immutable once interned;
// callers must not modify a *Descriptor obtained from a Registry.
type Descriptor struct {
	index   map[string]int
	Name    string
	Members []ID
	Size    uint32
	Offset  uint32
	Value   int32
	Child   ID
	Flags   Flags
	Kind    Kind
	Attrib  AttribKind
	Attr    uint32
	Align   uint8
	BitPos  uint8
	BitSize uint8
}

// IsPointer reports pointer-like kinds: plain pointers and all array flavors.
func (d *Descriptor) IsPointer() bool {
	return d.Kind == KindPtr || d.Kind == KindArray
}

// IsComplex reports a complex number, laid out as a two-element array.
func (d *Descriptor) IsComplex() bool {
	return d.Kind == KindArray && d.Flags&FlagComplex != 0
}

// IsVector reports a SIMD-style vector array.
func (d *Descriptor) IsVector() bool {
	return d.Kind == KindArray && d.Flags&FlagVector != 0
}

// IsInteger reports a non-float, non-bool numeric type.
func (d *Descriptor) IsInteger() bool {
	return d.Kind == KindNum && d.Flags&(FlagFloat|FlagBool) == 0
}

// IsQual reports a qualifier attribute wrapper.
func (d *Descriptor) IsQual() bool {
	return d.Kind == KindAttrib && d.Attrib == AttribQual
}

// Registry is an arena of descriptors addressed by ID.
//
// Registry is not safe for concurrent mutation.
type Registry struct {
	types  []*Descriptor
	intern map[internKey]ID
	names  map[string]ID
}

type internKey struct {
	name    string
	size    uint32
	offset  uint32
	child   ID
	value   int32
	attr    uint32
	flags   Flags
	kind    Kind
	attrib  AttribKind
	align   uint8
	bitPos  uint8
	bitSize uint8
}

// New creates a registry holding the builtin types.
func New() *Registry {
	r := &Registry{
		types:  make([]*Descriptor, 0, 64),
		intern: make(map[internKey]ID),
		names:  make(map[string]ID),
	}

	builtins := [...]Descriptor{
		IDNone:          {Kind: KindVoid, Size: SizeInvalid, Name: "<none>"},
		IDVoid:          {Kind: KindVoid, Size: SizeInvalid, Name: "void"},
		IDBool:          {Kind: KindNum, Flags: FlagBool | FlagUnsigned, Size: 1, Name: "bool"},
		IDChar:          {Kind: KindNum, Size: 1, Name: "char"},
		IDInt8:          {Kind: KindNum, Size: 1, Name: "int8_t"},
		IDUInt8:         {Kind: KindNum, Flags: FlagUnsigned, Size: 1, Name: "uint8_t"},
		IDInt16:         {Kind: KindNum, Size: 2, Align: 1, Name: "int16_t"},
		IDUInt16:        {Kind: KindNum, Flags: FlagUnsigned, Size: 2, Align: 1, Name: "uint16_t"},
		IDInt32:         {Kind: KindNum, Size: 4, Align: 2, Name: "int32_t"},
		IDUInt32:        {Kind: KindNum, Flags: FlagUnsigned, Size: 4, Align: 2, Name: "uint32_t"},
		IDInt64:         {Kind: KindNum, Size: 8, Align: 3, Name: "int64_t"},
		IDUInt64:        {Kind: KindNum, Flags: FlagUnsigned, Size: 8, Align: 3, Name: "uint64_t"},
		IDFloat:         {Kind: KindNum, Flags: FlagFloat, Size: 4, Align: 2, Name: "float"},
		IDDouble:        {Kind: KindNum, Flags: FlagFloat, Size: 8, Align: 3, Name: "double"},
		IDComplexFloat:  {Kind: KindArray, Flags: FlagComplex, Size: 8, Align: 2, Child: IDFloat},
		IDComplexDouble: {Kind: KindArray, Flags: FlagComplex, Size: 16, Align: 3, Child: IDDouble},
		IDPtrVoid:       {Kind: KindPtr, Size: PtrSize, Align: 2, Child: IDVoid},
		IDConstChar:     {Kind: KindAttrib, Attrib: AttribQual, Attr: uint32(QualConst), Child: IDChar},
		IDPtrConstChar:  {Kind: KindPtr, Size: PtrSize, Align: 2, Child: IDConstChar},
		IDCTypeID:       {Kind: KindNum, Flags: FlagUnsigned, Size: 4, Align: 2, Name: "ctype"},
	}
	for i := range builtins {
		d := builtins[i]
		id := ID(len(r.types))
		r.types = append(r.types, &d)
		if i != int(IDNone) && i != int(IDCTypeID) {
			r.intern[keyOf(&d)] = id
		}
		if d.Name != "" && i != int(IDNone) {
			r.names[d.Name] = id
		}
	}
	for name, id := range builtinAliases {
		r.names[name] = id
	}
	return r
}

var builtinAliases = map[string]ID{
	"signed char":        IDInt8,
	"unsigned char":      IDUInt8,
	"short":              IDInt16,
	"unsigned short":     IDUInt16,
	"int":                IDInt32,
	"unsigned int":       IDUInt32,
	"unsigned":           IDUInt32,
	"long long":          IDInt64,
	"unsigned long long": IDUInt64,
	"intptr_t":           IDInt32,
	"uintptr_t":          IDUInt32,
	"size_t":             IDUInt32,
	"complex float":      IDComplexFloat,
	"complex double":     IDComplexDouble,
	"complex":            IDComplexDouble,
	"void *":             IDPtrVoid,
	"const char *":       IDPtrConstChar,
}

func keyOf(d *Descriptor) internKey {
	return internKey{
		kind:    d.Kind,
		flags:   d.Flags,
		size:    d.Size,
		child:   d.Child,
		attrib:  d.Attrib,
		attr:    d.Attr,
		value:   d.Value,
		name:    d.Name,
		offset:  d.Offset,
		align:   d.Align,
		bitPos:  d.BitPos,
		bitSize: d.BitSize,
	}
}

// Len returns the number of interned descriptors, builtins included.
func (r *Registry) Len() int {
	return len(r.types)
}

// Get returns the descriptor for id, or nil if id is out of range.
func (r *Registry) Get(id ID) *Descriptor {
	if int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// Valid reports whether id addresses an interned descriptor other than IDNone.
func (r *Registry) Valid(id ID) bool {
	return id != IDNone && int(id) < len(r.types)
}

// Child returns the child descriptor of d.
func (r *Registry) Child(d *Descriptor) *Descriptor {
	return r.types[d.Child]
}

// Raw skips typedefs and attribute wrappers.
func (r *Registry) Raw(id ID) *Descriptor {
	d := r.types[id]
	for d.Kind == KindAttrib || d.Kind == KindTypedef {
		d = r.types[d.Child]
	}
	return d
}

// RawID is Raw returning the id of the underlying descriptor.
func (r *Registry) RawID(id ID) ID {
	for {
		d := r.types[id]
		if d.Kind != KindAttrib && d.Kind != KindTypedef {
			return id
		}
		id = d.Child
	}
}

// RawChild returns Raw of d's child.
func (r *Registry) RawChild(d *Descriptor) *Descriptor {
	return r.Raw(d.Child)
}

// Size returns the byte size of id, or SizeInvalid.
func (r *Registry) Size(id ID) uint32 {
	d := r.Raw(id)
	if !d.Kind.HasSize() {
		return SizeInvalid
	}
	return d.Size
}

// Align returns the log2 alignment of id, honouring align attributes.
func (r *Registry) Align(id ID) uint8 {
	var extra uint8
	d := r.types[id]
	for d.Kind == KindAttrib || d.Kind == KindTypedef {
		if d.Kind == KindAttrib && d.Attrib == AttribAlign && uint8(d.Attr) > extra {
			extra = uint8(d.Attr)
		}
		d = r.types[d.Child]
	}
	if extra > d.Align {
		return extra
	}
	return d.Align
}

// Quals collects qualifier bits from the attribute wrappers at the head of id's chain.
func (r *Registry) Quals(id ID) Qual {
	var q Qual
	d := r.types[id]
	for d.Kind == KindAttrib || d.Kind == KindTypedef {
		if d.IsQual() {
			q |= Qual(d.Attr)
		}
		d = r.types[d.Child]
	}
	return q
}

// Intern stores d, or returns the id of an identical descriptor already interned.
// Structs, unions, enums and functions are never deduplicated.
func (r *Registry) Intern(d Descriptor) (ID, error) {
	if d.Kind == KindRef {
		if !r.Valid(d.Child) {
			return IDNone, errors.InvalidInput(errors.PhaseRegistry, "reference to invalid type")
		}
		if r.Raw(d.Child).Kind == KindRef {
			return IDNone, errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
				CType(r.Repr(d.Child)).
				Detail("reference to reference").
				Build()
		}
	}

	dedup := d.Kind != KindStruct && d.Kind != KindEnum && d.Kind != KindFunc && len(d.Members) == 0
	if dedup {
		if id, ok := r.intern[keyOf(&d)]; ok {
			return id, nil
		}
	}

	if len(r.types) >= MaxTypes {
		return IDNone, errors.New(errors.PhaseRegistry, errors.KindCapacity).
			Detail("table overflow (%d types)", MaxTypes).
			Build()
	}

	id := ID(len(r.types))
	nd := d
	r.types = append(r.types, &nd)
	if dedup {
		r.intern[keyOf(&nd)] = id
	}
	return id, nil
}

// Define binds name to id. Redefinition replaces the previous binding.
func (r *Registry) Define(name string, id ID) {
	r.names[name] = id
}

// Lookup resolves a name bound by Define or by a named builtin.
func (r *Registry) Lookup(name string) (ID, bool) {
	id, ok := r.names[name]
	return id, ok
}

// Names returns every bound name in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Pointer interns a pointer to child.
func (r *Registry) Pointer(child ID) (ID, error) {
	return r.Intern(Descriptor{Kind: KindPtr, Size: PtrSize, Align: 2, Child: child})
}

// Ref interns a reference to child. References to references are rejected.
func (r *Registry) Ref(child ID) (ID, error) {
	return r.Intern(Descriptor{Kind: KindRef, Size: PtrSize, Align: 2, Child: child})
}

// Array interns an array of n elements. A negative n declares a variable-length array.
func (r *Registry) Array(elem ID, n int) (ID, error) {
	d := Descriptor{Kind: KindArray, Child: elem, Align: r.Align(elem)}
	esz := r.Size(elem)
	switch {
	case n < 0:
		d.Flags |= FlagVLA
		d.Size = SizeInvalid
	case esz == SizeInvalid:
		d.Size = SizeInvalid
	default:
		total := uint64(esz) * uint64(n)
		if total >= uint64(SizeInvalid) {
			return IDNone, errors.InvalidSize(errors.PhaseRegistry, r.Repr(elem))
		}
		d.Size = uint32(total)
	}
	return r.Intern(d)
}

// Vector interns a vector of n elements, aligned to its full size.
func (r *Registry) Vector(elem ID, n int) (ID, error) {
	esz := r.Size(elem)
	if esz == SizeInvalid || n <= 0 || n&(n-1) != 0 {
		return IDNone, errors.InvalidInput(errors.PhaseRegistry, "vector needs a sized element and a power-of-two length")
	}
	size := esz * uint32(n)
	return r.Intern(Descriptor{Kind: KindArray, Flags: FlagVector, Child: elem, Size: size, Align: log2(size)})
}

// Complex interns a complex number over a floating point element type.
func (r *Registry) Complex(elem ID) (ID, error) {
	ed := r.Raw(elem)
	if ed.Kind != KindNum || ed.Flags&FlagFloat == 0 {
		return IDNone, errors.InvalidInput(errors.PhaseRegistry, "complex needs a floating point element")
	}
	return r.Intern(Descriptor{Kind: KindArray, Flags: FlagComplex, Child: elem, Size: 2 * ed.Size, Align: ed.Align})
}

// Qualified wraps child in a qualifier attribute. A zero q returns child unchanged.
func (r *Registry) Qualified(child ID, q Qual) (ID, error) {
	if q == 0 {
		return child, nil
	}
	return r.Intern(Descriptor{Kind: KindAttrib, Attrib: AttribQual, Attr: uint32(q), Child: child})
}

// Aligned wraps child in an alignment attribute of 2^align bytes.
func (r *Registry) Aligned(child ID, align uint8) (ID, error) {
	return r.Intern(Descriptor{Kind: KindAttrib, Attrib: AttribAlign, Attr: uint32(align), Child: child})
}

// Typedef interns a named alias and binds the name.
func (r *Registry) Typedef(name string, child ID) (ID, error) {
	id, err := r.Intern(Descriptor{Kind: KindTypedef, Name: name, Child: child})
	if err != nil {
		return IDNone, err
	}
	r.Define(name, id)
	return id, nil
}

// Func interns an opaque function type. Functions have no size.
func (r *Registry) Func(name string, result ID) (ID, error) {
	return r.Intern(Descriptor{Kind: KindFunc, Name: name, Child: result, Size: SizeInvalid})
}

// Extern interns an extern symbol declaration of type child.
func (r *Registry) Extern(name string, child ID) (ID, error) {
	return r.Intern(Descriptor{Kind: KindExtern, Name: name, Child: child, Size: SizeInvalid})
}

// EnumConst is one enumerator.
type EnumConst struct {
	Name  string
	Value int32
}

// Enum interns an enum over the integer type base with the given enumerators.
// The enumerators become Constval members of the enum.
func (r *Registry) Enum(name string, base ID, consts []EnumConst) (ID, error) {
	bd := r.Raw(base)
	if !bd.IsInteger() || bd.Size > 4 {
		return IDNone, errors.InvalidInput(errors.PhaseRegistry, "enum base must be an integer of at most 32 bits")
	}
	d := Descriptor{Kind: KindEnum, Name: name, Child: base, Size: bd.Size, Align: bd.Align, Flags: bd.Flags & FlagUnsigned}
	d.index = make(map[string]int, len(consts))
	for _, c := range consts {
		cid, err := r.Intern(Descriptor{Kind: KindConstval, Name: c.Name, Child: base, Value: c.Value, Size: bd.Size})
		if err != nil {
			return IDNone, err
		}
		d.index[c.Name] = len(d.Members)
		d.Members = append(d.Members, cid)
	}
	id, err := r.Intern(d)
	if err != nil {
		return IDNone, err
	}
	if name != "" {
		r.Define("enum "+name, id)
	}
	return id, nil
}

// Member looks up a direct member of a struct or enum by name.
func (r *Registry) Member(d *Descriptor, name string) (*Descriptor, bool) {
	if i, ok := d.index[name]; ok {
		return r.types[d.Members[i]], true
	}
	return nil, false
}

// FieldQ looks up name in struct d, descending into anonymous members.
// It returns the member descriptor, its byte offset from the start of d and
// the qualifiers collected from anonymous member wrappers along the way.
func (r *Registry) FieldQ(d *Descriptor, name string) (*Descriptor, uint32, Qual, bool) {
	id, ofs, q, ok := r.FieldQID(d, name)
	if !ok {
		return nil, 0, 0, false
	}
	return r.types[id], ofs, q, true
}

// FieldQID is FieldQ returning the member's id.
func (r *Registry) FieldQID(d *Descriptor, name string) (ID, uint32, Qual, bool) {
	if i, ok := d.index[name]; ok {
		id := d.Members[i]
		return id, r.types[id].Offset, 0, true
	}
	for _, mid := range d.Members {
		m := r.types[mid]
		if m.Kind != KindAttrib || m.Attrib != AttribSubtype {
			continue
		}
		var q Qual
		sub := r.types[m.Child]
		for sub.Kind == KindAttrib || sub.Kind == KindTypedef {
			if sub.IsQual() {
				q |= Qual(sub.Attr)
			}
			sub = r.types[sub.Child]
		}
		if id, ofs, fq, ok := r.FieldQID(sub, name); ok {
			return id, ofs + m.Offset, q | fq, true
		}
	}
	return IDNone, 0, 0, false
}

// Field is FieldQ without qualifier collection.
func (r *Registry) Field(d *Descriptor, name string) (*Descriptor, uint32, bool) {
	f, ofs, _, ok := r.FieldQ(d, name)
	return f, ofs, ok
}

func log2(n uint32) uint8 {
	var l uint8
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
