// Package decl loads C type declarations from YAML into a registry.
//
//	types:
//	  - struct: point
//	    fields:
//	      - {name: x, type: int}
//	      - {name: y, type: double}
//	      - {name: flags, type: unsigned, bits: 3}
//	      - {name: MAX, type: int, const: 100}
//	      - {embed: struct header}
//	  - typedef: point_t
//	    type: struct point *
//	  - enum: color
//	    values: [{name: RED}, {name: GREEN, value: 4}]
//
// Type expressions are a base name from the registry, optionally prefixed
// with const or volatile, followed by any number of '*' and '[N]' suffixes.
// '[]' declares a variable-length array.
package decl

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
)

// File is a declaration document.
type File struct {
	Types []Decl `yaml:"types"`
}

// Decl declares one named type. Exactly one of Struct, Union, Typedef and
// Enum is set.
type Decl struct {
	Struct  string      `yaml:"struct"`
	Union   string      `yaml:"union"`
	Typedef string      `yaml:"typedef"`
	Enum    string      `yaml:"enum"`
	Type    string      `yaml:"type"`
	Fields  []Field     `yaml:"fields"`
	Values  []EnumValue `yaml:"values"`
}

// Field is a struct or union member.
type Field struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Bits  uint8  `yaml:"bits"`
	Const *int32 `yaml:"const"`
	Embed string `yaml:"embed"`
}

// EnumValue is an enumerator. A missing value continues from the previous one.
type EnumValue struct {
	Name  string `yaml:"name"`
	Value *int32 `yaml:"value"`
}

// LoadFile reads path and declares its types in reg.
func LoadFile(reg *ctype.Registry, path string) ([]ctype.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read declarations")
	}
	return Load(reg, data)
}

// Load parses a YAML declaration document and declares its types in reg in
// order. It returns the ids of the declared types.
func Load(reg *ctype.Registry, data []byte) ([]ctype.ID, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "parse declarations")
	}
	ids := make([]ctype.ID, 0, len(f.Types))
	for i := range f.Types {
		id, err := Declare(reg, &f.Types[i])
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Declare declares d in reg.
func Declare(reg *ctype.Registry, d *Decl) (ctype.ID, error) {
	switch {
	case d.Struct != "":
		return declareStruct(reg, reg.NewStruct(d.Struct), d.Struct, d.Fields)
	case d.Union != "":
		return declareStruct(reg, reg.NewUnion(d.Union), d.Union, d.Fields)
	case d.Typedef != "":
		child, err := ParseType(reg, d.Type)
		if err != nil {
			return ctype.IDNone, withPath(err, d.Typedef)
		}
		return reg.Typedef(d.Typedef, child)
	case d.Enum != "":
		return declareEnum(reg, d)
	}
	return ctype.IDNone, errors.InvalidInput(errors.PhaseLoad, "declaration names no struct, union, typedef or enum")
}

func declareStruct(reg *ctype.Registry, b *ctype.StructBuilder, name string, fields []Field) (ctype.ID, error) {
	for _, f := range fields {
		if f.Embed != "" {
			t, err := ParseType(reg, f.Embed)
			if err != nil {
				return ctype.IDNone, withPath(err, name)
			}
			b.Embed(t)
			continue
		}
		t, err := ParseType(reg, f.Type)
		if err != nil {
			return ctype.IDNone, withPath(err, name, f.Name)
		}
		switch {
		case f.Const != nil:
			b.Const(f.Name, *f.Const, t)
		case f.Bits > 0:
			b.Bitfield(f.Name, t, f.Bits)
		default:
			b.Field(f.Name, t)
		}
	}
	id, err := b.Build()
	if err != nil {
		return ctype.IDNone, withPath(err, name)
	}
	return id, nil
}

func declareEnum(reg *ctype.Registry, d *Decl) (ctype.ID, error) {
	base := ctype.IDInt32
	if d.Type != "" {
		var err error
		if base, err = ParseType(reg, d.Type); err != nil {
			return ctype.IDNone, withPath(err, d.Enum)
		}
	}
	consts := make([]ctype.EnumConst, len(d.Values))
	var next int32
	for i, v := range d.Values {
		if v.Value != nil {
			next = *v.Value
		}
		consts[i] = ctype.EnumConst{Name: v.Name, Value: next}
		next++
	}
	return reg.Enum(d.Enum, base, consts)
}

// ParseType resolves a type expression such as "const char *" or
// "struct point [4]" against reg.
func ParseType(reg *ctype.Registry, expr string) (ctype.ID, error) {
	s := strings.TrimSpace(expr)
	cut := strings.IndexAny(s, "*[")
	if cut < 0 {
		cut = len(s)
	}
	head, tail := s[:cut], s[cut:]

	var q ctype.Qual
	words := strings.Fields(head)
	base := words[:0]
	for _, w := range words {
		switch w {
		case "const":
			q |= ctype.QualConst
		case "volatile":
			q |= ctype.QualVolatile
		default:
			base = append(base, w)
		}
	}
	name := strings.Join(base, " ")
	if name == "" {
		return ctype.IDNone, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("type expression %q has no base type", expr).
			Build()
	}
	id, ok := reg.Lookup(name)
	if !ok {
		return ctype.IDNone, errors.NotFound(errors.PhaseLoad, "C type", name)
	}
	id, err := reg.Qualified(id, q)
	if err != nil {
		return ctype.IDNone, err
	}

	var dims []int
	for tail = strings.TrimSpace(tail); tail != ""; tail = strings.TrimSpace(tail) {
		switch tail[0] {
		case '*':
			if len(dims) > 0 {
				return ctype.IDNone, badSuffix(expr)
			}
			if id, err = reg.Pointer(id); err != nil {
				return ctype.IDNone, err
			}
			tail = tail[1:]
		case '[':
			end := strings.IndexByte(tail, ']')
			if end < 0 {
				return ctype.IDNone, badSuffix(expr)
			}
			n := -1
			if inner := strings.TrimSpace(tail[1:end]); inner != "" {
				if n, err = strconv.Atoi(inner); err != nil || n < 0 {
					return ctype.IDNone, badSuffix(expr)
				}
			}
			dims = append(dims, n)
			tail = tail[end+1:]
		default:
			return ctype.IDNone, badSuffix(expr)
		}
	}
	// int [2][3] is two arrays of three ints.
	for i := len(dims) - 1; i >= 0; i-- {
		if id, err = reg.Array(id, dims[i]); err != nil {
			return ctype.IDNone, err
		}
	}
	return id, nil
}

func badSuffix(expr string) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
		Detail("malformed type expression %q", expr).
		Build()
}

func withPath(err error, path ...string) error {
	var e *errors.Error
	if errors.As(err, &e) && len(e.Path) == 0 {
		c := *e
		c.Path = path
		return &c
	}
	return err
}
