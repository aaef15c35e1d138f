package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// unknownErrorMessage is used when an error response carries no "message" field.
const unknownErrorMessage = "Unknown error"

// ConfigError is returned by New when the client cannot be constructed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid client configuration (%s): %s", e.Field, e.Reason)
}

// AuthError represents a failed login or token refresh.
type AuthError struct {
	Op     string // "login" or "refresh"
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication error (%s): %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Op, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents an error response (status >= 400) from the TrackVia API.
type APIError struct {
	Message    string
	Method     string
	Endpoint   string
	StatusCode int
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
}

// UnexpectedResponseError is returned when a response body is neither JSON nor
// one of the expected non-JSON shapes (204 empty, 2xx binary).
type UnexpectedResponseError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Snippet    string
}

func (e *UnexpectedResponseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s %s: unexpected response (status %d, empty body)", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected response (status %d): %s", e.Method, e.Endpoint, e.StatusCode, e.Snippet)
}

// IsAuthError checks if the error is an authentication error.
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsConfigError checks if the error is a client configuration error.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsTokenExpired reports whether err is the service's "access token expired" rejection.
func IsTokenExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized && strings.Contains(apiErr.Message, tokenExpiredMessage)
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
