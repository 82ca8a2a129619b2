// Package errors provides structured error types for the calculator.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending name, a location path and a cause chain.
//
// These errors describe API misuse and plugin failures. Numeric failures such as
// division by zero never produce an error value; the engine shows "Error" on the
// display instead.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhasePlugin, errors.KindInvalidSignature).
//		Path("trig", "sinh").
//		Detail("want func(f64) -> f64").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidToken("x", "digit or decimal point")
//	err := errors.UnknownFunction("cosh")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
