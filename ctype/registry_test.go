package ctype

import (
	"errors"
	"testing"

	cerrors "github.com/wippyai/ffi-runtime/errors"
)

func TestBuiltins(t *testing.T) {
	r := New()

	tests := []struct {
		id    ID
		size  uint32
		align uint8
		repr  string
	}{
		{IDBool, 1, 0, "bool"},
		{IDInt8, 1, 0, "int8_t"},
		{IDUInt16, 2, 1, "uint16_t"},
		{IDInt32, 4, 2, "int32_t"},
		{IDUInt64, 8, 3, "uint64_t"},
		{IDFloat, 4, 2, "float"},
		{IDDouble, 8, 3, "double"},
		{IDComplexDouble, 16, 3, "complex double"},
		{IDPtrVoid, 4, 2, "void *"},
		{IDPtrConstChar, 4, 2, "const char *"},
		{IDVoid, SizeInvalid, 0, "void"},
	}
	for _, tc := range tests {
		t.Run(tc.repr, func(t *testing.T) {
			if got := r.Size(tc.id); got != tc.size {
				t.Errorf("size: got %d, want %d", got, tc.size)
			}
			if got := r.Align(tc.id); got != tc.align {
				t.Errorf("align: got %d, want %d", got, tc.align)
			}
			if got := r.Repr(tc.id); got != tc.repr {
				t.Errorf("repr: got %q, want %q", got, tc.repr)
			}
		})
	}

	if id, ok := r.Lookup("int"); !ok || id != IDInt32 {
		t.Errorf("Lookup(int): got %d, %v", id, ok)
	}
	if r.Valid(IDNone) {
		t.Error("IDNone must not be valid")
	}
}

func TestIntern_Dedup(t *testing.T) {
	r := New()

	p1, err := r.Pointer(IDInt32)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := r.Pointer(IDInt32)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Errorf("pointer not deduplicated: %d vs %d", p1, p2)
	}

	q1, _ := r.Qualified(IDFloat, QualConst)
	q2, _ := r.Qualified(IDFloat, QualConst)
	if q1 != q2 {
		t.Errorf("qualifier not deduplicated: %d vs %d", q1, q2)
	}
	if same, _ := r.Qualified(IDFloat, 0); same != IDFloat {
		t.Errorf("zero qualifier should return child, got %d", same)
	}

	s1, _ := r.NewStruct("a").Build()
	s2, _ := r.NewStruct("a").Build()
	if s1 == s2 {
		t.Error("structs must never be deduplicated")
	}
}

func TestIntern_RefToRefRejected(t *testing.T) {
	r := New()

	ref, err := r.Ref(IDInt32)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Ref(ref)
	if err == nil {
		t.Fatal("expected reference to reference to fail")
	}
	var e *cerrors.Error
	if !errors.As(err, &e) || e.Kind != cerrors.KindInvalidInput {
		t.Errorf("unexpected error: %v", err)
	}

	// Hidden behind a qualifier is still a reference.
	cref, _ := r.Qualified(ref, QualConst)
	if _, err := r.Ref(cref); err == nil {
		t.Error("expected qualified reference to reference to fail")
	}
}

func TestIntern_Capacity(t *testing.T) {
	r := New()
	var err error
	for i := r.Len(); i <= MaxTypes; i++ {
		if _, err = r.NewStruct("").Build(); err != nil {
			break
		}
	}
	if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseRegistry, Kind: cerrors.KindCapacity}) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if r.Len() != MaxTypes {
		t.Errorf("len: got %d, want %d", r.Len(), MaxTypes)
	}
}

func TestArray(t *testing.T) {
	r := New()

	arr, err := r.Array(IDInt32, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Size(arr); got != 40 {
		t.Errorf("size: got %d, want 40", got)
	}
	if got := r.Align(arr); got != 2 {
		t.Errorf("align: got %d, want 2", got)
	}
	if got := r.Repr(arr); got != "int32_t [10]" {
		t.Errorf("repr: got %q", got)
	}

	vla, _ := r.Array(IDInt32, -1)
	if r.Size(vla) != SizeInvalid {
		t.Error("VLA must have no size")
	}
	voids, _ := r.Array(IDVoid, 4)
	if r.Size(voids) != SizeInvalid {
		t.Error("array of void must have no size")
	}
}

func TestVectorAndComplex(t *testing.T) {
	r := New()

	v, err := r.Vector(IDFloat, 4)
	if err != nil {
		t.Fatal(err)
	}
	d := r.Get(v)
	if !d.IsVector() || d.Size != 16 || d.Align != 4 {
		t.Errorf("vector: %+v", d)
	}
	if _, err := r.Vector(IDFloat, 3); err == nil {
		t.Error("non power-of-two vector should fail")
	}

	c, err := r.Complex(IDFloat)
	if err != nil {
		t.Fatal(err)
	}
	if c != IDComplexFloat {
		t.Errorf("complex float should dedup to builtin, got %d", c)
	}
	if _, err := r.Complex(IDInt32); err == nil {
		t.Error("complex over int should fail")
	}
}

func TestAlignAttribute(t *testing.T) {
	r := New()
	a, err := r.Aligned(IDInt32, 6)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Align(a); got != 6 {
		t.Errorf("align: got %d, want 6", got)
	}
	if got := r.Size(a); got != 4 {
		t.Errorf("size: got %d, want 4", got)
	}
	if got := r.Repr(a); got != "__attribute__((aligned(64))) int32_t" {
		t.Errorf("repr: got %q", got)
	}
}

func TestQuals(t *testing.T) {
	r := New()
	c, _ := r.Qualified(IDInt32, QualConst)
	cv, _ := r.Qualified(c, QualVolatile)
	td, _ := r.Typedef("cvint", cv)

	if got := r.Quals(td); got != QualConst|QualVolatile {
		t.Errorf("quals: got %v", got)
	}
	if r.RawID(td) != IDInt32 {
		t.Errorf("RawID: got %d", r.RawID(td))
	}
	if id, ok := r.Lookup("cvint"); !ok || id != td {
		t.Error("typedef not bound")
	}
}

func TestEnum(t *testing.T) {
	r := New()
	e, err := r.Enum("color", IDUInt32, []EnumConst{{"RED", 0}, {"GREEN", 1}, {"BLUE", 2}})
	if err != nil {
		t.Fatal(err)
	}
	d := r.Get(e)
	if d.Kind != KindEnum || d.Size != 4 {
		t.Fatalf("enum: %+v", d)
	}
	m, ok := r.Member(d, "BLUE")
	if !ok || m.Kind != KindConstval || m.Value != 2 {
		t.Errorf("BLUE: %+v, %v", m, ok)
	}
	if id, ok := r.Lookup("enum color"); !ok || id != e {
		t.Error("enum name not bound")
	}
	if _, err := r.Enum("bad", IDFloat, nil); err == nil {
		t.Error("float enum base should fail")
	}
}
