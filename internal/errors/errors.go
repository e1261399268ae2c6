// Package errors provides the coded error type shared by the gateway, the
// view controllers and the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, client-visible error code.
type ErrorCode string

const (
	// Validation errors (blocked before any backend request is issued)
	VH_VALIDATION  ErrorCode = "VH_VALIDATION"  // Field validation failed
	VH_SCHEMA      ErrorCode = "VH_SCHEMA"      // Payload rejected by JSON schema
	VH_BAD_REQUEST ErrorCode = "VH_BAD_REQUEST" // Malformed request

	// Authentication/Authorization errors
	VH_AUTHN         ErrorCode = "VH_AUTHN"         // No active session
	VH_AUTHZ         ErrorCode = "VH_AUTHZ"         // Session may not act on the resource
	VH_JWT_INVALID   ErrorCode = "VH_JWT_INVALID"   // Token failed validation
	VH_JWT_EXPIRED   ErrorCode = "VH_JWT_EXPIRED"   // Token expired
	VH_JWT_MALFORMED ErrorCode = "VH_JWT_MALFORMED" // Token could not be parsed

	// Resource errors
	VH_NOT_FOUND          ErrorCode = "VH_NOT_FOUND"
	VH_CONFLICT           ErrorCode = "VH_CONFLICT"
	VH_MEDIA_SIZE         ErrorCode = "VH_MEDIA_SIZE"
	VH_MEDIA_TYPE         ErrorCode = "VH_MEDIA_TYPE"
	VH_KYC_REQUIRED       ErrorCode = "VH_KYC_REQUIRED"
	VH_INSUFFICIENT_FUNDS ErrorCode = "VH_INSUFFICIENT_FUNDS"
	VH_BUSY               ErrorCode = "VH_BUSY" // A mutation on the same control is still in flight

	// Rate limiting
	VH_RATE_LIMIT ErrorCode = "VH_RATE_LIMIT"

	// Server errors
	VH_BACKEND     ErrorCode = "VH_BACKEND" // Remote backend rejected the request
	VH_INTERNAL    ErrorCode = "VH_INTERNAL"
	VH_UNAVAILABLE ErrorCode = "VH_UNAVAILABLE"
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Validation is shorthand for a VH_VALIDATION error without a correlation id.
func Validation(message string) *Error {
	return New(VH_VALIDATION, message, "")
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithCorrelation returns a copy of e stamped with the given correlation id.
func (e *Error) WithCorrelation(correlationID string) *Error {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or VH_INTERNAL for foreign errors
// and the empty code for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return VH_INTERNAL
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case VH_VALIDATION, VH_SCHEMA, VH_BAD_REQUEST, VH_MEDIA_SIZE, VH_MEDIA_TYPE:
		return http.StatusBadRequest
	case VH_AUTHZ, VH_KYC_REQUIRED:
		return http.StatusForbidden
	case VH_AUTHN, VH_JWT_INVALID, VH_JWT_EXPIRED, VH_JWT_MALFORMED:
		return http.StatusUnauthorized
	case VH_NOT_FOUND:
		return http.StatusNotFound
	case VH_CONFLICT, VH_BUSY:
		return http.StatusConflict
	case VH_INSUFFICIENT_FUNDS:
		return http.StatusUnprocessableEntity
	case VH_RATE_LIMIT:
		return http.StatusTooManyRequests
	case VH_BACKEND:
		return http.StatusBadGateway
	case VH_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
