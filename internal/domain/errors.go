package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated indicates an operation needs a signed-in session.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrOutOfStock is raised client-side before a mutation that stock cannot satisfy.
	ErrOutOfStock = errors.New("out of stock")
	// ErrPaymentVerification marks a failed server-side payment signature check.
	ErrPaymentVerification = errors.New("payment verification failed")
	// ErrNotFound reports a resource missing from a backend response.
	ErrNotFound = errors.New("not found")
)

// ValidationError collects per-field violations detected before any network call.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns nil when no fields were recorded.
func NewValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message recorded for name.
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}
