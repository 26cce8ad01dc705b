package dolls

import (
	"errors"
)

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
	ErrUpstream   = errors.New("upstream error")
)

// Error carries a caller-safe Message. Err holds the internal cause and is
// only meant for logs.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func storageError(msg string, err error) error {
	return &Error{Kind: ErrStorage, Message: msg, Err: err}
}

func upstreamError(msg string, err error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Err: err}
}

// Message returns the caller-safe text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
