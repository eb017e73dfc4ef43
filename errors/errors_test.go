package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseSet,
				Kind:   KindWriteToConst,
				Path:   []string{"p", "x"},
				CType:  "const float",
				Detail: "attempt to write to constant location",
			},
			contains: []string{"[set]", "write_to_const", "p.x", "'const float'", "constant location"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseGet,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[get]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEmbed,
		Kind:  KindTypeResolution,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseIndex,
		Kind:  KindInvalidSize,
		CType: "void *",
	}

	if !errors.Is(err, &Error{Phase: PhaseIndex, Kind: KindInvalidSize}) {
		t.Error("same phase and kind should match")
	}
	if errors.Is(err, &Error{Phase: PhaseSet, Kind: KindInvalidSize}) {
		t.Error("different phase should not match")
	}
	if !errors.Is(err, ErrInvalidSize) {
		t.Error("phase-less sentinel should match on kind")
	}
	if errors.Is(err, ErrWriteToConst) {
		t.Error("different kind should not match sentinel")
	}
}

func TestError_As(t *testing.T) {
	var wrapped error = Wrap(PhaseSet, KindTypeMismatch, WriteToConst(PhaseSet, "int"), "store")

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatal("errors.As failed")
	}
	if e.Kind != KindTypeMismatch {
		t.Errorf("kind: got %s", e.Kind)
	}
	if !errors.Is(wrapped, ErrWriteToConst) {
		t.Error("cause should match ErrWriteToConst")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseIndex, KindFieldUnknown).
		Path("s", "missing").
		CType("struct point").
		Value("missing").
		Detail("no field %q", "missing").
		Build()

	if err.Phase != PhaseIndex || err.Kind != KindFieldUnknown {
		t.Errorf("phase/kind: got %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 2 || err.Path[1] != "missing" {
		t.Errorf("path: got %v", err.Path)
	}
	if err.Detail != `no field "missing"` {
		t.Errorf("detail: got %q", err.Detail)
	}
	if err.Value != "missing" {
		t.Errorf("value: got %v", err.Value)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		want string
	}{
		{"invalid size", InvalidSize(PhaseIndex, "void"), KindInvalidSize, "unknown"},
		{"write to const", WriteToConst(PhaseSet, "const int"), KindWriteToConst, "constant location"},
		{"wrong argument", WrongArgumentType("struct foo", 2), KindWrongArgumentType, "expected cdata `struct foo' as argument #2"},
		{"type resolution", TypeResolution("struct nope", nil), KindTypeResolution, `"struct nope"`},
		{"type mismatch", TypeMismatch(PhaseConvert, nil, "string", "int"), KindTypeMismatch, "cannot convert 'string' to 'int'"},
		{"allocation", AllocationFailed(PhaseAlloc, 16, 8), KindAllocation, "16 bytes"},
		{"field unknown", FieldUnknown(PhaseIndex, "struct s", `"y"`), KindFieldUnknown, `key "y"`},
		{"out of bounds", OutOfBounds(PhaseGet, 0x10, 4), KindOutOfBounds, "0x00000010"},
		{"overflow", Overflow(PhaseConvert, 300, "uint8_t"), KindOverflow, "300"},
		{"not found", NotFound(PhaseLoad, "type", "x"), KindNotFound, `type "x" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("message %q does not contain %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestIsAsHelpers(t *testing.T) {
	err := Wrap(PhaseAlloc, KindAllocation, InvalidInput(PhaseAlloc, "bad align"), "alloc failed")
	if !Is(err, ErrAllocation) {
		t.Error("Is should match the outer kind")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is should reach the cause")
	}
	if Is(err, ErrCapacity) {
		t.Error("Is matched an unrelated kind")
	}
	var e *Error
	if !As(err, &e) || e.Kind != KindAllocation {
		t.Errorf("As: got %v", e)
	}
}
