// Package errors provides structured error types for the ffi-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the access path, the C type spelling and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSet, errors.KindWriteToConst).
//		Path("p", "x").
//		CType("const float").
//		Detail("attempt to write to constant location").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.WriteToConst(errors.PhaseSet, "const int")
//	err := errors.InvalidSize(errors.PhaseIndex, "void *")
//
// Phase-less sentinels match on kind alone:
//
//	if errors.Is(err, errors.ErrWriteToConst) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
