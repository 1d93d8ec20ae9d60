package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error annotates a Firestore failure with repository semantics.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports whether the error represents a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the document already exists or a precondition failed.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// WrapError annotates Firestore errors. Context cancellations pass through unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	e := &Error{op: op, err: err}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.NotFound:
		e.notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		e.conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		e.unavailable = true
	}
	return e
}
