package llm

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the LLM client and providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider's API returned an empty response body.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response contained no valid choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrUnknownModel indicates a model identifier the registry cannot route.
	ErrUnknownModel = errors.New("unknown or unroutable model identifier")
	// ErrCircuitOpen indicates the circuit breaker is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ErrorType represents the category of an error returned by an LLM
// provider. It helps classify errors for standardized handling.
type ErrorType int

const (
	// ErrorTypeUnknown indicates an error of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates an authentication or authorization problem.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates that a rate limit has been exceeded.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates a malformed request or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates a requested resource (e.g. a model) was not found.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a problem on the provider's end.
	ErrorTypeServerError
	// ErrorTypeContentPolicy indicates the request was blocked by a content policy.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork indicates a client-side network problem.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates that the request timed out.
	ErrorTypeTimeout
	// ErrorTypeCanceled indicates that the request context was canceled.
	ErrorTypeCanceled
)

// ProviderError represents a structured error from an LLM provider,
// normalizing provider-specific failures into a common format.
type ProviderError struct {
	// Type classifies the error into a standard category.
	Type ErrorType
	// Provider identifies the LLM provider that produced the error.
	Provider string
	// StatusCode holds the HTTP status code, if applicable.
	StatusCode int
	// Message is a human-readable description.
	Message string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As matching.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a ProviderError with the given details.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Type:       errType,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ErrorClassifier normalizes provider errors into ProviderError values.
// Each provider implementation owns one classifier instance.
type ErrorClassifier struct {
	// Provider is the name used in classified errors.
	Provider string
}

// ClassifyHTTPError maps an HTTP status code to a categorized
// ProviderError.
func (c *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) error {
	var errType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errType = ErrorTypeAuthentication
	case statusCode == 404:
		errType = ErrorTypeNotFound
	case statusCode == 429:
		errType = ErrorTypeRateLimit
	case statusCode >= 400 && statusCode < 500:
		errType = ErrorTypeBadRequest
	case statusCode >= 500:
		errType = ErrorTypeServerError
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(c.Provider, errType, statusCode, message, err)
}

// ClassifyContextError maps context cancellation and deadline errors to
// categorized ProviderErrors.
func (c *ErrorClassifier) ClassifyContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(c.Provider, ErrorTypeTimeout, 0, "request timed out", err)
	}
	return NewProviderError(c.Provider, ErrorTypeCanceled, 0, "request canceled", err)
}

// isContextError reports whether err stems from context cancellation or
// deadline expiry.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
