// ABOUTME: Tagged error variants for the bridge's error taxonomy.
// ABOUTME: Classifies failures as protocol, validation, backend, or transport errors.

package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/luminal-data/tablebridge/internal/backend"
)

// Kind classifies a bridge error.
type Kind int

// Error kinds. Protocol and validation errors are client-caused and never
// retried; backend errors surface the store's failure to the caller;
// transport errors tear down the session and are logged only.
const (
	KindProtocol Kind = iota
	KindValidation
	KindBackend
	KindTransport
)

// String returns the wire-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol error"
	case KindValidation:
		return "validation error"
	case KindBackend:
		return "backend error"
	case KindTransport:
		return "transport error"
	default:
		return "unknown error"
	}
}

// Error is a tagged bridge error carrying its classification and cause.
// It is converted to the wire Failure representation only at the
// dispatch boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Classify wraps an error raised by a tool handler into a tagged Error.
// Backend sentinel errors map onto their taxonomy kinds; anything
// unrecognized is treated as a backend failure.
func Classify(err error) *Error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}

	kind := KindBackend
	switch {
	case errors.Is(err, backend.ErrInvalidTableName):
		kind = KindValidation
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, backend.ErrQueryFailed):
		kind = KindBackend
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindTransport
	}

	return &Error{Kind: kind, Message: err.Error(), Cause: err}
}
