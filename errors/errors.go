package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which store operation (or harness stage) raised the error
type Phase string

const (
	PhaseStrong   Phase = "strong"   // allocate / copy / clear of strong handles
	PhaseWeak     Phase = "weak"     // makeWeak / clearWeak / resolve
	PhaseSlot     Phase = "slot"     // assignment into an object's slots
	PhaseInspect  Phase = "inspect"  // read-only queries
	PhaseScenario Phase = "scenario" // scenario step execution
	PhaseParse    Phase = "parse"    // scenario document parsing
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownHandle Kind = "unknown_handle"
	KindUseAfterFree  Kind = "use_after_free"
	KindInvalidInput  Kind = "invalid_input"
	KindInvalidData   Kind = "invalid_data"
	KindNotFound      Kind = "not_found"
	KindExpectation   Kind = "expectation"
)

// Sentinels for errors.Is. They carry no phase, so they match any phase.
var (
	ErrUnknownHandle = &Error{Kind: KindUnknownHandle}
	ErrUseAfterFree  = &Error{Kind: KindUseAfterFree}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Label  string
	Detail string
	Path   []string
	Handle uint64
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

	if e.Handle != 0 {
		fmt.Fprintf(&b, " handle %#x", e.Handle)
		if e.Label != "" {
			b.WriteString(" (")
			b.WriteString(e.Label)
			b.WriteByte(')')
		}
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

// Is reports whether target matches this error.
// Kind must be equal; Phase is compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
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

// Path sets the location path (scenario name, step index, ...)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Handle sets the offending handle identifier and the object's label
func (b *Builder) Handle(id uint64, label string) *Builder {
	b.err.Handle = id
	b.err.Label = label
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

// UnknownHandle reports an identifier that was never allocated or was purged
func UnknownHandle(phase Phase, id uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownHandle,
		Handle: id,
		Detail: "no such record in store",
	}
}

// UseAfterFree reports an operation on an object whose strong count is already zero
func UseAfterFree(phase Phase, id uint64, label, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUseAfterFree,
		Handle: id,
		Label:  label,
		Detail: fmt.Sprintf("%s on finalized object", op),
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
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

// Expectation reports a scenario outcome that differs from the declared one
func Expectation(path []string, want, got any) *Error {
	return &Error{
		Phase:  PhaseScenario,
		Kind:   KindExpectation,
		Path:   path,
		Detail: fmt.Sprintf("want %v, got %v", want, got),
		Value:  got,
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

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
