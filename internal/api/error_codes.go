package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

const (
	ErrBadRequest   ErrorCode = "bad_request"
	ErrUnauthorized ErrorCode = "unauthorized"
	ErrTokenExpired ErrorCode = "token_expired"
	ErrForbidden    ErrorCode = "forbidden"
	ErrNotFound     ErrorCode = "not_found"
	ErrConflict     ErrorCode = "conflict"
	ErrValidation   ErrorCode = "validation_failed"
	ErrServerError  ErrorCode = "server_error"
	// ErrUnexpected marks a response body the client could not interpret.
	ErrUnexpected ErrorCode = "unexpected_response"
	ErrConfig     ErrorCode = "config"
	ErrNetwork    ErrorCode = "network"
	ErrUnknown    ErrorCode = "unknown"
)

// IsRetryable returns true if errors with this code may succeed on retry.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrServerError, ErrNetwork:
		return true
	default:
		return false
	}
}

// Suggestion returns a human-readable hint for resolving this error.
func (c ErrorCode) Suggestion() string {
	switch c {
	case ErrUnauthorized, ErrTokenExpired:
		return "Run 'tv auth login' to authenticate"
	case ErrForbidden:
		return "Check that the user key and account have access to this view"
	case ErrNotFound:
		return "Verify the view and record IDs ('tv views list')"
	case ErrValidation, ErrBadRequest:
		return "Check the field names and values against the view structure"
	case ErrConflict:
		return "The record may have changed; fetch it again and retry"
	case ErrServerError:
		return "TrackVia returned a server error; try again later"
	case ErrUnexpected:
		return "The service returned a body that is not JSON; check --base-url"
	case ErrConfig:
		return "Set TRACKVIA_USER_KEY or run 'tv auth login --user-key ...'"
	case ErrNetwork:
		return "Check network connectivity and --base-url"
	default:
		return ""
	}
}

// ErrorCodeFromStatus maps an HTTP status code to an ErrorCode.
func ErrorCodeFromStatus(statusCode int) ErrorCode {
	switch statusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	case 422:
		return ErrValidation
	default:
		if statusCode >= 500 && statusCode < 600 {
			return ErrServerError
		}
		return ErrUnknown
	}
}

// StructuredError is the JSON form of an error printed by the CLI.
type StructuredError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	Suggestion string         `json:"suggestion,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *StructuredError) MarshalJSON() ([]byte, error) {
	type alias StructuredError
	return json.Marshal((*alias)(e))
}

// NewStructuredError creates a StructuredError from an ErrorCode and message.
func NewStructuredError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:       code,
		Message:    message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
	}
}

// NewValidationError reports a bad flag or argument value.
func NewValidationError(field, got string, allowed []string) *StructuredError {
	return &StructuredError{
		Code:       ErrValidation,
		Message:    fmt.Sprintf("invalid %s %q: must be one of %s", field, got, strings.Join(allowed, ", ")),
		Suggestion: fmt.Sprintf("Use one of: %s", strings.Join(allowed, ", ")),
		Context:    map[string]any{"field": field, "got": got},
	}
}

// StructuredErrorFromAPIError converts an APIError to a StructuredError.
func StructuredErrorFromAPIError(apiErr *APIError) *StructuredError {
	code := ErrorCodeFromStatus(apiErr.StatusCode)
	if IsTokenExpired(apiErr) {
		code = ErrTokenExpired
	}
	ctx := map[string]any{
		"status_code": apiErr.StatusCode,
		"method":      apiErr.Method,
		"endpoint":    apiErr.Endpoint,
	}
	if apiErr.RequestID != "" {
		ctx["request_id"] = apiErr.RequestID
	}
	return &StructuredError{
		Code:       code,
		Message:    apiErr.Message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
		Context:    ctx,
	}
}

// StructuredErrorFromError converts any error to a StructuredError.
func StructuredErrorFromError(err error) *StructuredError {
	if err == nil {
		return nil
	}

	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return StructuredErrorFromAPIError(apiErr)
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return &StructuredError{
			Code:       ErrUnauthorized,
			Message:    authErr.Error(),
			Suggestion: ErrUnauthorized.Suggestion(),
			Context:    map[string]any{"op": authErr.Op},
		}
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return &StructuredError{
			Code:       ErrConfig,
			Message:    cfgErr.Error(),
			Suggestion: ErrConfig.Suggestion(),
			Context:    map[string]any{"field": cfgErr.Field},
		}
	}

	var unexpected *UnexpectedResponseError
	if errors.As(err, &unexpected) {
		return &StructuredError{
			Code:       ErrUnexpected,
			Message:    unexpected.Error(),
			Suggestion: ErrUnexpected.Suggestion(),
			Context:    map[string]any{"status_code": unexpected.StatusCode},
		}
	}

	if IsNetworkError(err) {
		return NewStructuredError(ErrNetwork, err.Error())
	}

	return &StructuredError{
		Code:    ErrUnknown,
		Message: err.Error(),
	}
}

// IsNetworkError reports whether err is a transport failure (DNS, refused
// connection, timeout) rather than a service response.
func IsNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
