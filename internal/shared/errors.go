package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates caller-correctable input errors.
	ErrValidation = errors.New("validation failed")
)

// ValidationError names a single invalid or missing field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects every field failure found by one check pass.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Field == "" {
			parts = append(parts, e.Reason)
			continue
		}
		parts = append(parts, e.Field+" "+e.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes ValidationErrors match ErrValidation.
func (errs ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a failure for field.
func (errs *ValidationErrors) Add(field, reason string) {
	*errs = append(*errs, Invalid(field, reason))
}

// Err returns nil when nothing was collected.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Fields flattens any validation error into its field list.
func Fields(err error) []*ValidationError {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return []*ValidationError{one}
	}
	return nil
}
