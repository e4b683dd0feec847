package summary

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	ErrConfigMissing ErrorKind = iota
	ErrConfigInvalid
	ErrNarrativeTimeout
	ErrUpstreamHTTP
	ErrIncompleteSummary
	ErrTaskAborted
	ErrTaskCancelled
	ErrValidation
	ErrUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfigMissing:
		return "ConfigMissing"
	case ErrConfigInvalid:
		return "ConfigInvalid"
	case ErrNarrativeTimeout:
		return "NarrativeTimeout"
	case ErrUpstreamHTTP:
		return "UpstreamHTTP"
	case ErrIncompleteSummary:
		return "IncompleteSummary"
	case ErrTaskAborted:
		return "TaskAborted"
	case ErrTaskCancelled:
		return "TaskCancelled"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Error is the typed error carried through the summarization core. The message
// keeps the most specific detail available (HTTP status and body snippet over a
// generic network failure) because the caller surfaces it verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err is (or wraps) a summary Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}
