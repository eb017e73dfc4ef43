package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegistry Phase = "registry" // type interning
	PhaseAlloc    Phase = "alloc"    // object allocation and release
	PhaseIndex    Phase = "index"    // type chain resolution
	PhaseGet      Phase = "get"      // memory to value
	PhaseSet      Phase = "set"      // value to memory
	PhaseConvert  Phase = "convert"  // scalar conversion
	PhaseEmbed    Phase = "embed"    // host embedding boundary
	PhaseLoad     Phase = "load"     // declaration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidSize       Kind = "invalid_size"
	KindWriteToConst      Kind = "write_to_const"
	KindWrongArgumentType Kind = "wrong_argument_type"
	KindTypeResolution    Kind = "type_resolution"
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidInput      Kind = "invalid_input"
	KindAllocation        Kind = "allocation"
	KindFieldUnknown      Kind = "field_unknown"
	KindNotFound          Kind = "not_found"
	KindOverflow          Kind = "overflow"
	KindCapacity          Kind = "capacity"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	CType  string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.CType != "" {
		b.WriteString(": ctype '")
		b.WriteString(e.CType)
		b.WriteByte('\'')
	}

	if e.Detail != "" {
		if e.CType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks that do not care about the phase.
var (
	ErrInvalidSize       = &Error{Kind: KindInvalidSize}
	ErrWriteToConst      = &Error{Kind: KindWriteToConst}
	ErrWrongArgumentType = &Error{Kind: KindWrongArgumentType}
	ErrTypeResolution    = &Error{Kind: KindTypeResolution}
	ErrFieldUnknown      = &Error{Kind: KindFieldUnknown}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrOutOfBounds       = &Error{Kind: KindOutOfBounds}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInvalidData       = &Error{Kind: KindInvalidData}
	ErrAllocation        = &Error{Kind: KindAllocation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrCapacity          = &Error{Kind: KindCapacity}
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the access path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// CType sets the C type spelling
func (b *Builder) CType(t string) *Builder {
	b.err.CType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// InvalidSize reports indexing through an element type without a known size.
func InvalidSize(phase Phase, ctype string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidSize,
		CType:  ctype,
		Detail: "size of C type is unknown or too large",
	}
}

// WriteToConst reports a store into a const-qualified or read-only location.
func WriteToConst(phase Phase, ctype string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWriteToConst,
		CType:  ctype,
		Detail: "attempt to write to constant location",
	}
}

// WrongArgumentType reports a call argument that is not the expected cdata.
func WrongArgumentType(ctype string, position int) *Error {
	return &Error{
		Phase:  PhaseEmbed,
		Kind:   KindWrongArgumentType,
		CType:  ctype,
		Detail: fmt.Sprintf("expected cdata `%s' as argument #%d", ctype, position),
		Value:  position,
	}
}

// TypeResolution reports a failed named type lookup.
func TypeResolution(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseEmbed,
		Kind:   KindTypeResolution,
		Detail: fmt.Sprintf("cannot resolve C type %q", name),
		Cause:  cause,
	}
}

// TypeMismatch creates a conversion type mismatch error
func TypeMismatch(phase Phase, path []string, from, to string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		CType:  to,
		Detail: fmt.Sprintf("cannot convert '%s' to '%s'", from, to),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, ctype string, key string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		CType:  ctype,
		Detail: fmt.Sprintf("cannot index with key %s", key),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, addr uint32, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at 0x%08x out of bounds", length, addr),
		Value:  addr,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		CType:  target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
