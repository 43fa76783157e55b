package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can tell permanent
// input errors from retryable upstream errors.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindSegmentation ErrorKind = "segmentation"
	KindEmbedding    ErrorKind = "embedding"
	KindVectorSearch ErrorKind = "vector_search"
	KindGeneration   ErrorKind = "generation"
)

// Error tags a failure with its kind and the operation that produced
// it. The original cause is reachable through Unwrap.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the operation that failed. An already
// tagged error keeps its original kind.
func E(kind ErrorKind, op string, err error) error {
	var tagged *Error
	if errors.As(err, &tagged) {
		kind = tagged.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsTimeout reports whether a failure was caused by a deadline, e.g. a
// generation call that ran past the caller's timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
