package service

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the server rejects the credentials or token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrNotFound is returned when the target of an operation does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError carries a message produced by the task service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// Unwrap maps the HTTP status onto the package sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// Message returns the server-provided message in err, or fallback when the
// failure did not come from the server.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
