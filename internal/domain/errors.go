// Package domain contains the core entities of the gateway: object metadata,
// listing results, and the closed set of errors the protocol layer maps onto
// S3 responses.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business rule violations. They are distinct from
// infrastructure errors (storage engine, network), which surface to clients
// as internal errors.

var (
	// ErrNoSuchBucket indicates the addressed bucket does not exist.
	ErrNoSuchBucket = errors.New("no such bucket")

	// ErrNoSuchKey indicates the addressed object does not exist.
	ErrNoSuchKey = errors.New("no such key")

	// ErrBucketNotEmpty indicates the bucket still holds objects and cannot
	// be deleted.
	ErrBucketNotEmpty = errors.New("bucket is not empty")

	// ErrCorruptObjectMeta indicates a stored metadata record does not decode
	// into its four fields.
	ErrCorruptObjectMeta = errors.New("corrupt object metadata")
)

// InvalidInputError reports a request field that failed validation, such as a
// name containing a NUL byte or a continuation token that does not decode.
type InvalidInputError struct {
	// Field is the offending input: "bucket", "key", "continuation-token".
	Field string

	// Reason describes what was wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidInput creates an InvalidInputError for a field.
func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
