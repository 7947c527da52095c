package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassTransport represents network errors, timeouts and an open circuit.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassAuth represents a missing, invalid or expired credential.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassDecode represents a body that did not match the requested type.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassClient represents 4xx client errors other than 401 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"
)

// APIError is the error returned for every failed request.
type APIError struct {
	Err        error
	ErrorClass ErrorClass
	Message    string
	StatusCode int

	// RetryAfter is the server-requested wait of a 429 response.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "spotify %s error", e.ErrorClass)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewDecodeError reports a response body that did not have the expected shape.
func NewDecodeError(message string, err error) *APIError {
	errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	return &APIError{ErrorClass: ErrorClassDecode, Message: message, Err: err}
}

// ClassOf returns the class of the first APIError in err's chain, or "".
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// StatusOf returns the HTTP status of the first APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassTransport:
		return true
	default:
		// auth, decode and other 4xx fail the same way on every attempt
		return false
	}
}

// classifyStatus maps an HTTP error status to its class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// errorBody covers the regular error object and the OAuth error shape.
type errorBody struct {
	Error json.RawMessage `json:"error"`

	Description string `json:"error_description"`
}

type regularError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// parseErrorMessage extracts the message of an error response body.
// It falls back to the status text when the body is not a known error shape.
func parseErrorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Error) > 0 {
		var regular regularError
		if err := json.Unmarshal(eb.Error, &regular); err == nil && regular.Message != "" {
			return regular.Message
		}

		var code string
		if err := json.Unmarshal(eb.Error, &code); err == nil && code != "" {
			if eb.Description != "" {
				return code + ": " + eb.Description
			}
			return code
		}
	}
	return http.StatusText(status)
}
