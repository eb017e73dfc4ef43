package embed

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/ffi-runtime/cdata"
	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/value"
)

func TestStack(t *testing.T) {
	L := NewStack(value.Int(1), value.Int(2), value.Int(3))

	tests := []struct {
		idx  int
		abs  int
		want value.Value
	}{
		{1, 1, value.Int(1)},
		{3, 3, value.Int(3)},
		{-1, 3, value.Int(3)},
		{-3, 1, value.Int(1)},
		{0, 0, value.Nil()},
		{4, 0, value.Nil()},
		{-4, 0, value.Nil()},
	}
	for _, tc := range tests {
		if got := L.Abs(tc.idx); got != tc.abs {
			t.Errorf("Abs(%d): got %d, want %d", tc.idx, got, tc.abs)
		}
		if got := L.At(tc.idx); got != tc.want {
			t.Errorf("At(%d): got %v, want %v", tc.idx, got, tc.want)
		}
	}

	L.Push(value.Str("top"))
	if L.Len() != 4 || L.At(-1) != value.Str("top") {
		t.Errorf("after push: len %d, top %v", L.Len(), L.At(-1))
	}
	if v := L.Pop(); v != value.Str("top") || L.Len() != 3 {
		t.Errorf("pop: got %v, len %d", v, L.Len())
	}
	if v := NewStack().Pop(); !v.IsNil() {
		t.Errorf("pop on empty frame: got %v", v)
	}
}

func TestPushNewValue(t *testing.T) {
	st := cdata.NewWithDefaults(ctype.New())
	h := New(st, nil)
	pt, _ := st.Registry().NewStruct("pt").Field("x", ctype.IDInt32).Field("y", ctype.IDInt32).Build()

	L := NewStack()
	addr, err := h.PushNewValue(L, pt, 8)
	if err != nil {
		t.Fatal(err)
	}
	if L.Len() != 1 || !L.At(-1).IsCData() {
		t.Fatalf("frame: %v", L.At(-1))
	}
	cd := L.At(-1).C
	if st.Data(cd) != addr {
		t.Errorf("address: got %#x, want %#x", addr, st.Data(cd))
	}
	if err := st.Memory().WriteU32(addr+4, 9); err != nil {
		t.Fatal(err)
	}
	if v, _ := st.IndexGet(cd, value.Str("y")); v != value.Int(9) {
		t.Errorf("y: got %v", v)
	}

	// A larger payload than the type needs gets a variable object.
	addr, err = h.PushNewValue(L, ctype.IDUInt8, 32)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := st.Len(L.At(-1).C); n != 32 {
		t.Errorf("variable payload: got %d", n)
	}
	b, _ := st.Memory().Read(addr, 32)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestCheckValueArgument(t *testing.T) {
	st := cdata.NewWithDefaults(ctype.New())
	h := New(st, nil)
	cd, _ := st.New(ctype.IDDouble, 8)
	L := NewStack(value.Int(1), value.Box(cd))

	addr, id, err := h.CheckValueArgument(L, 2, "double")
	if err != nil {
		t.Fatal(err)
	}
	if addr != st.Data(cd) || id != ctype.IDDouble {
		t.Errorf("got %#x %d", addr, id)
	}
	if _, _, err := h.CheckValueArgument(L, -1, "double"); err != nil {
		t.Errorf("negative index: %v", err)
	}

	_, _, err = h.CheckValueArgument(L, 1, "struct pt")
	if !errors.Is(err, errors.ErrWrongArgumentType) {
		t.Fatalf("got %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "expected cdata `struct pt' as argument #1") {
		t.Errorf("message: %s", msg)
	}

	_, _, err = h.CheckValueArgument(L, -2, "int")
	if err == nil || !strings.Contains(err.Error(), "argument #1") {
		t.Errorf("negative index position: %v", err)
	}
	if _, _, err := h.CheckValueArgument(L, 5, "int"); !errors.Is(err, errors.ErrWrongArgumentType) {
		t.Errorf("missing argument: %v", err)
	}
}

func TestResolveNamedType(t *testing.T) {
	st := cdata.NewWithDefaults(ctype.New())
	pt, _ := st.Registry().NewStruct("pt").Field("x", ctype.IDInt32).Build()
	h := New(st, nil)
	L := NewStack()

	id, err := h.ResolveNamedType(L, "struct pt")
	if err != nil || id != pt {
		t.Errorf("struct pt: got %d %v, want %d", id, err, pt)
	}
	if id, err := h.ResolveNamedType(L, "int"); err != nil || id != ctype.IDInt32 {
		t.Errorf("int: got %d %v", id, err)
	}

	_, err = h.ResolveNamedType(L, "struct nope")
	if !errors.Is(err, errors.ErrTypeResolution) {
		t.Fatalf("unknown name: got %v", err)
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("cause not kept: %v", err)
	}
}

func TestResolveNamedType_FreesTypeObjects(t *testing.T) {
	st := cdata.NewWithDefaults(ctype.New())
	h := New(st, nil)
	L := NewStack()

	before := st.Collector().Len()
	for i := 0; i < 100; i++ {
		if _, err := h.ResolveNamedType(L, "int32_t"); err != nil {
			t.Fatal(err)
		}
	}
	if got := st.Collector().Len(); got != before {
		t.Errorf("live objects: got %d, want %d", got, before)
	}
	if L.Len() != 0 {
		t.Errorf("frame: got %d slots", L.Len())
	}

	// Type objects from a caller supplied lookup belong to the caller.
	own := New(st, RegistryTypeOf(st))
	if _, err := own.ResolveNamedType(L, "int32_t"); err != nil {
		t.Fatal(err)
	}
	if got := st.Collector().Len(); got != before+1 {
		t.Errorf("caller owned type object: got %d live, want %d", got, before+1)
	}
}

func TestResolveNamedType_Callback(t *testing.T) {
	st := cdata.NewWithDefaults(ctype.New())
	inst, _ := st.New(ctype.IDInt16, 2)
	boom := stderrors.New("boom")

	h := New(st, func(L *Stack, name string) (value.Value, error) {
		switch name {
		case "instance":
			return value.Box(inst), nil
		case "number":
			return value.Int(3), nil
		}
		return value.Nil(), boom
	})
	L := NewStack()

	if id, err := h.ResolveNamedType(L, "instance"); err != nil || id != ctype.IDInt16 {
		t.Errorf("cdata instance: got %d %v", id, err)
	}
	if _, err := h.ResolveNamedType(L, "number"); !errors.Is(err, errors.ErrTypeResolution) {
		t.Errorf("non-cdata result: got %v", err)
	}
	_, err := h.ResolveNamedType(L, "other")
	if !errors.Is(err, errors.ErrTypeResolution) || !stderrors.Is(err, boom) {
		t.Errorf("callback failure: got %v", err)
	}
}
