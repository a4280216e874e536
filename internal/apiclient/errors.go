package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

const genericFailureMessage = "Request failed"

// RequestError is any failed backend call not classified as an authentication failure.
// Status is zero when the request never produced a response.
type RequestError struct {
	Status  int
	Message string
	Body    domain.Raw
	Err     error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// Unwrap exposes the transport error, if any.
func (e *RequestError) Unwrap() error { return e.Err }

// AuthenticationError reports rejected credentials or an invalid/expired token.
type AuthenticationError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.Status, e.Message)
}

// IsAuthFailure reports whether err carries HTTP 401 or 403.
func IsAuthFailure(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// StatusOf extracts the HTTP status from a client error, or zero.
func StatusOf(err error) int {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// Message returns the display-ready backend message carried by err, falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	return err.Error()
}

func errorFromEnvelope(status int, body domain.Raw) error {
	message := ""
	if body != nil {
		message = body.String("message", "error", "msg")
	}
	if message == "" && status >= http.StatusBadRequest {
		message = http.StatusText(status)
	}
	if message == "" {
		message = genericFailureMessage
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthenticationError{Status: status, Message: message}
	}
	return &RequestError{Status: status, Message: message, Body: body}
}
