// Package apperror carries the error taxonomy shared by the service layers.
// Every error that reaches the HTTP boundary is classified by Kind, never by
// inspecting its message.
package apperror

import (
	"context"
	stdhttp "net/http"

	"github.com/rotisserie/eris"
)

// Kind tags an error with the category the transport maps to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindTimeout
	KindConflict
	KindUpstream
	KindUnavailable
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindUnavailable:
		return "unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Status returns the HTTP status associated with the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return stdhttp.StatusBadRequest
	case KindNotFound:
		return stdhttp.StatusNotFound
	case KindTimeout:
		return stdhttp.StatusRequestTimeout
	case KindConflict:
		return stdhttp.StatusConflict
	case KindUpstream:
		return stdhttp.StatusBadGateway
	case KindUnavailable:
		return stdhttp.StatusServiceUnavailable
	case KindCanceled:
		// nginx's "client closed request"; nobody is listening anyway.
		return 499
	default:
		return stdhttp.StatusInternalServerError
	}
}

// Error is a classified failure. Code is the stable string clients match on,
// Detail the human readable explanation and Fields any extra context that is
// safe to return to the caller.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Fields map[string]any
	cause  error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// With attaches a context field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// New builds a classified error.
func New(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

func Validation(code, detail string) *Error {
	return New(KindValidation, code, detail)
}

func NotFound(code, detail string) *Error {
	return New(KindNotFound, code, detail)
}

func Timeout(code, detail string) *Error {
	return New(KindTimeout, code, detail)
}

func Conflict(code, detail string) *Error {
	return New(KindConflict, code, detail)
}

func Upstream(code, detail string) *Error {
	return New(KindUpstream, code, detail)
}

func Unavailable(code, detail string) *Error {
	return New(KindUnavailable, code, detail)
}

func Internal(code, detail string) *Error {
	return New(KindInternal, code, detail)
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if eris.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf classifies err. Unclassified context errors are mapped to Timeout
// and Canceled; anything else is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	if eris.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if eris.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
