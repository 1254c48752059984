package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ConstraintViolationError reports a unique-index collision on insert
// or update. When raised from a path that pre-deduplicates (the catalog
// importer), it indicates a programming-invariant failure rather than a
// user error.
type ConstraintViolationError struct {
	Collection string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("unique constraint violation on %s: %v", e.Collection, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation reports whether err is a unique-index collision.
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolationError
	return errors.As(err, &cv)
}

// WrapConstraint converts driver-level unique-constraint failures into
// a ConstraintViolationError, passing other errors through unchanged.
func WrapConstraint(collection string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return &ConstraintViolationError{Collection: collection, Err: err}
	}
	return err
}
