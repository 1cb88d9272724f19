package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode      Phase = "decode"      // binary decode
	PhaseValidate    Phase = "validate"    // structural validation
	PhaseCompile     Phase = "compile"     // native compilation
	PhaseInstantiate Phase = "instantiate" // module instantiation
	PhaseResolve     Phase = "resolve"     // export lookup
	PhaseCall        Phase = "call"        // compiled-path invocation
	PhaseInterpret   Phase = "interpret"   // reference interpreter execution
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindNotFound       Kind = "not_found"
	KindWrongKind      Kind = "wrong_kind"
	KindNotInitialized Kind = "not_initialized"
	KindInstantiation  Kind = "instantiation"
	KindTrap           Kind = "trap"
	KindHostFault      Kind = "host_fault"
	KindStackExhausted Kind = "stack_exhausted"
	KindBudgetExceeded Kind = "budget_exceeded"
)

// Error is the structured error type used throughout the harness
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
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

	if e.Detail != "" {
		b.WriteString(": ")
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

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Decode creates a binary decode error
func Decode(cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Detail: "decode module",
		Cause:  cause,
	}
}

// Validation creates a structural validation error
func Validation(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Compile creates a native compilation error
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidData,
		Detail: "compile module",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
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

// WrongKind reports an export that exists but is not callable
func WrongKind(name string, kind string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindWrongKind,
		Detail: fmt.Sprintf("export %q is a %s, not a function", name, kind),
		Value:  kind,
	}
}

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Trap creates a VM trap error
func Trap(detail string) *Error {
	return &Error{
		Phase:  PhaseInterpret,
		Kind:   KindTrap,
		Detail: detail,
	}
}

// HostFault creates a call-time host fault error
func HostFault(cause error) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindHostFault,
		Cause: cause,
	}
}

// StackExhausted reports interpreter call-stack exhaustion
func StackExhausted(depth int) *Error {
	return &Error{
		Phase:  PhaseInterpret,
		Kind:   KindStackExhausted,
		Detail: fmt.Sprintf("call depth %d exceeds limit", depth),
		Value:  depth,
	}
}

// BudgetExceeded reports step budget exhaustion
func BudgetExceeded(steps int) *Error {
	return &Error{
		Phase:  PhaseInterpret,
		Kind:   KindBudgetExceeded,
		Detail: fmt.Sprintf("no terminal state after %d steps", steps),
		Value:  steps,
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
