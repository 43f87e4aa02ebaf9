package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies failures so callers can map them to exit codes and HTTP
// statuses without inspecting messages.
type Kind int

const (
	// KindUnknown is any error outside the taxonomy.
	KindUnknown Kind = iota
	// KindConfig means required configuration or credentials are missing.
	KindConfig
	// KindIO means a file or document container could not be read or written.
	KindIO
	// KindProcessing means a remote conversation ended in a failed or unknown state.
	KindProcessing
	// KindParse means a model response was not the expected list of strings.
	KindParse
	// KindQuery means a knowledge-base query failed remotely.
	KindQuery
	// KindMerge means a rewritten document body was rejected.
	KindMerge
	// KindTimeout means polling a remote operation exceeded its deadline.
	KindTimeout
	// KindValidation means request input was rejected before any remote call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindIO:
		return "IOError"
	case KindProcessing:
		return "ProcessingError"
	case KindParse:
		return "ParseError"
	case KindQuery:
		return "QueryError"
	case KindMerge:
		return "MergeError"
	case KindTimeout:
		return "Timeout"
	case KindValidation:
		return "ValidationError"
	default:
		return "UnknownError"
	}
}

// ExitCode returns the process exit status for errors of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfig:
		return 2
	case KindIO:
		return 3
	case KindProcessing:
		return 4
	case KindParse:
		return 5
	case KindQuery:
		return 6
	case KindMerge:
		return 7
	case KindTimeout:
		return 8
	case KindValidation:
		return 9
	default:
		return 1
	}
}

// Error is a classified failure. Detail carries the remote-provided message
// when there is one and then stands in for the cause's text.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Detail != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Detail
	}
	if e.Err != nil && e.Detail == "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns a classified error with no underlying cause.
func NewError(kind Kind, op, detail string) error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Errorf is NewError with a formatted detail.
func Errorf(kind Kind, op, format string, args ...any) error {
	return NewError(kind, op, fmt.Sprintf(format, args...))
}

// WrapError classifies err. A nil err returns nil. An err that is already
// classified keeps its kind and gains op as context.
func WrapError(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return eris.Wrap(err, op)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// remoteRejection is implemented by errors that carry a remote service's
// answer to a request it refused.
type remoteRejection interface {
	RemoteDetail() string
}

// WrapRemote classifies a refusal from a remote service as kind, with the
// service's answer as Detail. Transport failures and open circuits stay
// unclassified, wrapped with op.
func WrapRemote(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return eris.Wrap(err, op)
	}
	var rr remoteRejection
	if errors.As(err, &rr) {
		return &Error{Kind: kind, Op: op, Detail: rr.RemoteDetail(), Err: err}
	}
	return eris.Wrap(err, op)
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// DetailOf returns the Detail of the classified error in err's chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
