package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedContent is returned by providers that cannot express a content
// block of the request, such as an image sent to a text-only backend.
var ErrUnsupportedContent = errors.New("llm: unsupported content block")

// ErrorKind classifies a [TransportError].
type ErrorKind int

const (
	// ErrorOther covers every transport or HTTP-level failure that is not a
	// timeout.
	ErrorOther ErrorKind = iota

	// ErrorTimeout means the request did not complete within its deadline.
	ErrorTimeout
)

// String returns the human-readable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorTimeout:
		return "timeout"
	case ErrorOther:
		return "other"
	default:
		return "unknown"
	}
}

// TransportError is the typed failure of a single request/response exchange.
type TransportError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Provider names the backend that failed.
	Provider string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: %s transport error from %s: %v", e.Kind, e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a [TransportError] of kind [ErrorTimeout].
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == ErrorTimeout
}

// Classify wraps err in a [TransportError]. reqCtx is the per-request context:
// if its deadline expired the error is a timeout, whatever the backend
// reported. An err that already is a TransportError is returned unchanged.
func Classify(reqCtx context.Context, provider string, err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	kind := ErrorOther
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		kind = ErrorTimeout
	}
	return &TransportError{Kind: kind, Provider: provider, Err: err}
}
