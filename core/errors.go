// Package core provides the request, response and error types shared by the router client.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType represents the kind of error that occurred
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a local validation failure or a 400/422 from the router
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypePermissionDenied indicates a permission error (403)
	ErrorTypePermissionDenied ErrorType = "permission_denied_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeConflict indicates a conflict error (409)
	ErrorTypeConflict ErrorType = "conflict_error"
	// ErrorTypeInternalServer indicates a router-side failure (5xx)
	ErrorTypeInternalServer ErrorType = "internal_server_error"
	// ErrorTypeAPI indicates any other non-success HTTP status
	ErrorTypeAPI ErrorType = "api_error"
	// ErrorTypeTransport indicates that no response was received
	ErrorTypeTransport ErrorType = "transport_error"
)

// RouterError is the error type returned by every operation of the client
type RouterError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int    `json:"status_code,omitempty"`
	Param      string `json:"param,omitempty"`
	// Body is the raw response body of a failed HTTP call.
	Body json.RawMessage `json:"body,omitempty"`
	// Original error for debugging
	Err error `json:"-"`

	// retryable is only set for transport failures that happened after the request was sent.
	retryable bool
}

// Error implements the error interface
func (e *RouterError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Param != "":
		return fmt.Sprintf("%s (status %d, param %s): %s", e.Type, e.StatusCode, e.Param, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
	case e.Param != "":
		return fmt.Sprintf("%s (param %s): %s", e.Type, e.Param, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap implements the error unwrapping interface
func (e *RouterError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code associated with this error.
// Errors created without a response report a default status for their type.
func (e *RouterError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermissionDenied:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTransport:
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the retry policy may attempt the request again.
// Only router-side failures (5xx) and network failures with no response qualify.
// Rate limits are not retried.
func (e *RouterError) Retryable() bool {
	switch e.Type {
	case ErrorTypeInternalServer:
		return true
	case ErrorTypeTransport:
		return e.retryable
	default:
		return false
	}
}

// NewInvalidRequestError creates a local validation error naming the offending parameter
func NewInvalidRequestError(param, message string) *RouterError {
	return &RouterError{
		Type:    ErrorTypeInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(message string) *RouterError {
	return &RouterError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(message string) *RouterError {
	return &RouterError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewInternalServerError creates a router-side failure error (5xx)
func NewInternalServerError(statusCode int, message string) *RouterError {
	return &RouterError{
		Type:       ErrorTypeInternalServer,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewTransportError creates an error for a request that was sent but never got a response.
func NewTransportError(message string, err error) *RouterError {
	return &RouterError{
		Type:      ErrorTypeTransport,
		Message:   message,
		Err:       err,
		retryable: true,
	}
}

// NewSetupError creates an error for a request that failed before it could be sent.
// It shares the transport kind but is never retried.
func NewSetupError(message string, err error) *RouterError {
	return &RouterError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewCanceledError wraps a context error. It is a transport failure that is never retried.
func NewCanceledError(err error) *RouterError {
	return &RouterError{
		Type:    ErrorTypeTransport,
		Message: "request canceled: " + err.Error(),
		Err:     err,
	}
}

// ParseHTTPError builds a RouterError from a non-success HTTP response.
// The router reports errors either as {"error": {...}} or as a flat object.
func ParseHTTPError(statusCode int, body []byte) *RouterError {
	message := http.StatusText(statusCode)
	var param string

	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		errObj := parsed.Get("error")
		if errObj.Type == gjson.String {
			message = errObj.String()
			errObj = parsed
		} else if !errObj.IsObject() {
			errObj = parsed
		}
		if m := errObj.Get("message"); m.Type == gjson.String && m.String() != "" {
			message = m.String()
		}
		param = errObj.Get("param").String()
	} else if len(body) > 0 {
		message = string(body)
	}

	err := &RouterError{
		Message:    message,
		StatusCode: statusCode,
		Param:      param,
	}
	if len(body) > 0 {
		if json.Valid(body) {
			err.Body = json.RawMessage(body)
		} else {
			quoted, _ := json.Marshal(string(body))
			err.Body = quoted
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		err.Type = ErrorTypeAuthentication
	case statusCode == http.StatusForbidden:
		err.Type = ErrorTypePermissionDenied
	case statusCode == http.StatusNotFound:
		err.Type = ErrorTypeNotFound
	case statusCode == http.StatusConflict:
		err.Type = ErrorTypeConflict
	case statusCode == http.StatusTooManyRequests:
		err.Type = ErrorTypeRateLimit
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		err.Type = ErrorTypeInvalidRequest
	case statusCode >= 500:
		err.Type = ErrorTypeInternalServer
	default:
		err.Type = ErrorTypeAPI
	}
	return err
}

// AsRouterError returns the RouterError in err's chain, if any.
func AsRouterError(err error) (*RouterError, bool) {
	var re *RouterError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsType reports whether err is a RouterError of the given type.
func IsType(err error, t ErrorType) bool {
	re, ok := AsRouterError(err)
	return ok && re.Type == t
}
