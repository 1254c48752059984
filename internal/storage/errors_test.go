package storage

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapConstraint(t *testing.T) {
	unique := errors.New("UNIQUE constraint failed: cards.name_lowercase")

	wrapped := WrapConstraint("cards", unique)
	if !IsConstraintViolation(wrapped) {
		t.Error("unique failure should wrap to a ConstraintViolationError")
	}
	if !errors.Is(wrapped, unique) {
		t.Error("wrapped error should unwrap to the driver error")
	}

	var cv *ConstraintViolationError
	if !errors.As(wrapped, &cv) || cv.Collection != "cards" {
		t.Errorf("Collection = %q, want %q", cv.Collection, "cards")
	}
}

func TestWrapConstraintPassthrough(t *testing.T) {
	plain := errors.New("disk I/O error")
	if got := WrapConstraint("cards", plain); got != plain {
		t.Errorf("WrapConstraint() = %v, want the original error", got)
	}
	if IsConstraintViolation(plain) {
		t.Error("plain error should not report as a constraint violation")
	}
	if WrapConstraint("cards", nil) != nil {
		t.Error("WrapConstraint(nil) should stay nil")
	}
}

func TestIsConstraintViolationThroughWrapping(t *testing.T) {
	inner := WrapConstraint("tags", errors.New("UNIQUE constraint failed: tags.name"))
	outer := fmt.Errorf("failed to save tag: %w", inner)
	if !IsConstraintViolation(outer) {
		t.Error("constraint violation should be detected through fmt.Errorf wrapping")
	}
}
