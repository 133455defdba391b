package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest       ErrorCode = "bad_request"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeValidationFailed ErrorCode = "validation_failed"

	// Server errors (5xx)
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeUnavailable   ErrorCode = "service_unavailable"
)

// APIError represents a structured API error that carries error code and details
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	jsonErr, _ := json.Marshal(e)
	return string(jsonErr)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func NewBadRequestError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewNotFoundError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewValidationError(details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Details: strings.Join(details, ", "),
	}
}

// NewInternalError never carries details; internal failures are logged, not returned
func NewInternalError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeInternalError,
		Message: message,
	}
}

func NewUnavailableError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeUnavailable,
		Message: message,
	}
}

// FromError maps an executor error to an HTTP status and an API error.
// Anything but a missing entity becomes a generic internal error.
func FromError(err error, message string) (int, *APIError) {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound, NewNotFoundError(message)
	}
	return http.StatusInternalServerError, NewInternalError(message)
}
