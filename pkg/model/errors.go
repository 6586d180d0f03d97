package model

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies a REST failure.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrUnavailable ErrorCode = "UNAVAILABLE"
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the response status used for the code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the error body of a REST reply.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError rejects a request body or query.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewVehicleNotFoundError reports an id absent from the registry.
func NewVehicleNotFoundError(id int64) *APIError {
	return &APIError{Code: ErrNotFound, Message: fmt.Sprintf("vehicle %d not found", id)}
}

// NewUnavailableError reports a disabled feature.
func NewUnavailableError(msg string) *APIError {
	return &APIError{Code: ErrUnavailable, Message: msg}
}

// NewInternalError hides an unexpected failure behind msg.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// InvalidTransitionError is returned when a vehicle state transition is invalid.
type InvalidTransitionError struct {
	VehicleID int64
	From      VehicleState
	To        VehicleState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid vehicle state transition: %s → %s (vehicle %d)", e.From, e.To, e.VehicleID)
}
