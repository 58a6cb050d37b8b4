// Package errs classifies failures of the install pipeline so the
// orchestrator can decide whether a failure is isolated to one tool or
// aborts the whole run.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindIntegrity
	KindArchive
	KindSubprocess
	KindEnvironment
	KindConfiguration
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindIntegrity:
		return "integrity"
	case KindArchive:
		return "archive"
	case KindSubprocess:
		return "subprocess"
	case KindEnvironment:
		return "environment"
	case KindConfiguration:
		return "configuration"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrCancelled is returned when the user declines a confirmation prompt.
var ErrCancelled = errors.New("operation cancelled by user")

// Error is a classified failure. Tool and Op are optional context.
type Error struct {
	Kind Kind
	Tool string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Tool != "" {
		msg += " [" + e.Tool + "]"
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and context.
func New(kind Kind, tool, op string, err error) error {
	return &Error{Kind: kind, Tool: tool, Op: op, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, tool, op, format string, a ...any) error {
	return &Error{Kind: kind, Tool: tool, Op: op, Err: fmt.Errorf(format, a...)}
}

// WithTool fills in the tool name of a classified error that has none.
func WithTool(err error, tool string) error {
	var e *Error
	if errors.As(err, &e) && e.Tool == "" {
		e.Tool = tool
	}
	return err
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsFatal reports whether err must abort the whole run instead of being
// isolated to a single tool.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindEnvironment, KindConfiguration, KindCancelled:
		return true
	}
	return false
}
