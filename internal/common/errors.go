// Package common defines shared constants and sentinel errors used across
// client and server layers of stagepass. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrTransientStore is returned when the store timed out or reported a
	// retryable conflict. Callers may retry the whole operation.
	ErrTransientStore = errors.New("store temporarily unavailable")

	// Auth errors.
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrExpiredOrInvalid   = errors.New("refresh token expired or invalid")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// FieldViolation is a single failed field constraint.
type FieldViolation struct {
	Field   string
	Message string
}

// Violations is an aggregated, field-sorted set of FieldViolation.
type Violations []FieldViolation

// Add appends a violation and keeps the set sorted by field name.
func (v *Violations) Add(field, message string) {
	*v = append(*v, FieldViolation{Field: field, Message: message})
	sort.SliceStable(*v, func(i, j int) bool { return (*v)[i].Field < (*v)[j].Field })
}

// Has reports whether field has at least one violation.
func (v Violations) Has(field string) bool {
	for _, fv := range v {
		if fv.Field == field {
			return true
		}
	}
	return false
}

// Map groups messages by field, the shape used in HTTP responses.
func (v Violations) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, fv := range v {
		if prev, ok := m[fv.Field]; ok {
			m[fv.Field] = prev + "; " + fv.Message
			continue
		}
		m[fv.Field] = fv.Message
	}
	return m
}

// ValidationError carries every violation found while validating one request.
type ValidationError struct {
	Violations Violations
}

// NewValidationError returns nil when v is empty.
func NewValidationError(v Violations) error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: v}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, fv := range e.Violations {
		parts = append(parts, fv.Field+": "+fv.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
