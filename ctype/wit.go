package ctype

import (
	"fmt"
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-runtime/errors"
)

// WITImporter maps WIT types onto C descriptors laid out by the canonical ABI.
// For the supported subset the canonical ABI layout coincides with natural C layout.
type WITImporter struct {
	reg   *Registry
	cache map[*wit.TypeDef]ID
	str   ID
}

// NewWITImporter returns an importer interning into r.
func NewWITImporter(r *Registry) *WITImporter {
	return &WITImporter{reg: r, cache: make(map[*wit.TypeDef]ID)}
}

// ImportWIT is a one-shot convenience around WITImporter.Import.
func (r *Registry) ImportWIT(t wit.Type) (ID, error) {
	return NewWITImporter(r).Import(t)
}

// Import interns t and every type it references.
// Named typedefs are bound as "struct <name>" or "enum <name>".
func (w *WITImporter) Import(t wit.Type) (ID, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return IDBool, nil
	case wit.U8:
		return IDUInt8, nil
	case wit.S8:
		return IDInt8, nil
	case wit.U16:
		return IDUInt16, nil
	case wit.S16:
		return IDInt16, nil
	case wit.U32, wit.Char:
		return IDUInt32, nil
	case wit.S32:
		return IDInt32, nil
	case wit.U64:
		return IDUInt64, nil
	case wit.S64:
		return IDInt64, nil
	case wit.F32:
		return IDFloat, nil
	case wit.F64:
		return IDDouble, nil
	case wit.String:
		return w.stringType()
	case *wit.TypeDef:
		return w.typeDef(typ)
	default:
		return IDNone, errors.InvalidInput(errors.PhaseRegistry, fmt.Sprintf("unsupported WIT type %T", t))
	}
}

func (w *WITImporter) typeDef(t *wit.TypeDef) (ID, error) {
	if id, ok := w.cache[t]; ok {
		return id, nil
	}

	name := ""
	if t.Name != nil {
		name = *t.Name
	}

	var (
		id  ID
		err error
	)
	switch kind := t.Kind.(type) {
	case *wit.Record:
		id, err = w.record(name, kind)
	case *wit.Tuple:
		id, err = w.tuple(name, kind)
	case *wit.Enum:
		id, err = w.enum(name, kind)
	case *wit.Flags:
		id, err = w.flags(name, kind)
	case *wit.Option:
		id, err = w.option(name, kind)
	case *wit.List:
		id, err = w.list(name, kind)
	case wit.Type:
		id, err = w.Import(kind)
		if err == nil && name != "" {
			id, err = w.reg.Typedef(name, id)
		}
	default:
		err = errors.InvalidInput(errors.PhaseRegistry, fmt.Sprintf("unsupported WIT type definition %T", t.Kind))
	}
	if err != nil {
		return IDNone, err
	}

	w.cache[t] = id
	return id, nil
}

func (w *WITImporter) record(name string, r *wit.Record) (ID, error) {
	b := w.reg.NewStruct(name)
	for _, f := range r.Fields {
		ft, err := w.Import(f.Type)
		if err != nil {
			return IDNone, err
		}
		b.Field(f.Name, ft)
	}
	return b.Build()
}

func (w *WITImporter) tuple(name string, t *wit.Tuple) (ID, error) {
	b := w.reg.NewStruct(name)
	for i, typ := range t.Types {
		ft, err := w.Import(typ)
		if err != nil {
			return IDNone, err
		}
		b.Field("f"+strconv.Itoa(i), ft)
	}
	return b.Build()
}

func discriminant(n int) ID {
	switch {
	case n <= 1<<8:
		return IDUInt8
	case n <= 1<<16:
		return IDUInt16
	default:
		return IDUInt32
	}
}

func (w *WITImporter) enum(name string, e *wit.Enum) (ID, error) {
	consts := make([]EnumConst, len(e.Cases))
	for i, c := range e.Cases {
		consts[i] = EnumConst{Name: c.Name, Value: int32(i)}
	}
	return w.reg.Enum(name, discriminant(len(e.Cases)), consts)
}

func (w *WITImporter) flags(name string, f *wit.Flags) (ID, error) {
	var base ID
	switch n := len(f.Flags); {
	case n <= 8:
		base = IDUInt8
	case n <= 16:
		base = IDUInt16
	case n <= 32:
		base = IDUInt32
	default:
		return IDNone, errors.InvalidInput(errors.PhaseRegistry, "flags wider than 32 bits are not supported")
	}
	b := w.reg.NewStruct(name)
	for _, fl := range f.Flags {
		b.Bitfield(fl.Name, base, 1)
	}
	return b.Build()
}

func (w *WITImporter) option(name string, o *wit.Option) (ID, error) {
	inner, err := w.Import(o.Type)
	if err != nil {
		return IDNone, err
	}
	return w.reg.NewStruct(name).
		Field("is_some", IDBool).
		Field("value", inner).
		Build()
}

func (w *WITImporter) list(name string, l *wit.List) (ID, error) {
	elem, err := w.Import(l.Type)
	if err != nil {
		return IDNone, err
	}
	ptr, err := w.reg.Pointer(elem)
	if err != nil {
		return IDNone, err
	}
	return w.reg.NewStruct(name).
		Field("ptr", ptr).
		Field("len", IDUInt32).
		Build()
}

func (w *WITImporter) stringType() (ID, error) {
	if w.str != IDNone {
		return w.str, nil
	}
	ptr, err := w.reg.Pointer(IDConstChar)
	if err != nil {
		return IDNone, err
	}
	id, err := w.reg.NewStruct("").
		Field("ptr", ptr).
		Field("len", IDUInt32).
		Build()
	if err != nil {
		return IDNone, err
	}
	w.str = id
	return id, nil
}
