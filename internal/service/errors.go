package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vedran77/whiteboard/pkg/validator"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrValidation   = errors.New("validation failed")
	ErrStorage      = errors.New("storage failure")

	// ErrConnectionNotCleared means the membership is gone but the user row
	// still points at its old connection.
	ErrConnectionNotCleared = errors.New("user connection not cleared")
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
