package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInput    Phase = "input"    // key and token handling
	PhaseEvaluate Phase = "evaluate" // function lookup and evaluation
	PhasePlugin   Phase = "plugin"   // plugin loading and binding
	PhaseConfig   Phase = "config"   // option and flag validation
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidToken     Kind = "invalid_token"
	KindUnknownOperator  Kind = "unknown_operator"
	KindUnknownFunction  Kind = "unknown_function"
	KindUnknownKey       Kind = "unknown_key"
	KindDuplicate        Kind = "duplicate"
	KindInvalidSignature Kind = "invalid_signature"
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindLoad             Kind = "load"
	KindInstantiation    Kind = "instantiation"
	KindOutOfRange       Kind = "out_of_range"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Name   string
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

	if e.Name != "" {
		b.WriteString(": ")
		b.WriteString(fmt.Sprintf("%q", e.Name))
	}

	if e.Detail != "" {
		if e.Name != "" {
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Path sets the location path, e.g. plugin and function name
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Name sets the offending key, token or function name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
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

// Convenience constructors for common error patterns

// InvalidToken creates an error for a token that cannot be entered into the buffer
func InvalidToken(token, want string) *Error {
	return &Error{
		Phase:  PhaseInput,
		Kind:   KindInvalidToken,
		Name:   token,
		Detail: "expected " + want,
	}
}

// UnknownOperator creates an error for an operator outside the supported set
func UnknownOperator(op any) *Error {
	return &Error{
		Phase:  PhaseInput,
		Kind:   KindUnknownOperator,
		Detail: fmt.Sprintf("operator %v is not supported", op),
		Value:  op,
	}
}

// UnknownFunction creates an error for a unary function that is not registered
func UnknownFunction(name string) *Error {
	return &Error{
		Phase:  PhaseEvaluate,
		Kind:   KindUnknownFunction,
		Name:   name,
		Detail: "no such function",
	}
}

// UnknownKey creates an error for a key name with no binding
func UnknownKey(name string) *Error {
	return &Error{
		Phase: PhaseInput,
		Kind:  KindUnknownKey,
		Name:  name,
	}
}

// Duplicate creates an error for a name that is already registered
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Name:   name,
		Detail: what + " already registered",
	}
}

// InvalidSignature creates an error for a plugin function with an unusable signature
func InvalidSignature(path []string, detail string) *Error {
	return &Error{
		Phase:  PhasePlugin,
		Kind:   KindInvalidSignature,
		Path:   path,
		Detail: detail,
	}
}

// OutOfRange creates an error for a configuration value outside its bounds
func OutOfRange(name string, value any, lo, hi int) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindOutOfRange,
		Name:   name,
		Detail: fmt.Sprintf("value %v outside [%d, %d]", value, lo, hi),
		Value:  value,
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// Instantiation creates a plugin instantiation error
func Instantiation(name string, cause error) *Error {
	return &Error{
		Phase:  PhasePlugin,
		Kind:   KindInstantiation,
		Path:   []string{name},
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a plugin loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhasePlugin,
		Kind:   KindLoad,
		Detail: detail,
		Cause:  cause,
	}
}
