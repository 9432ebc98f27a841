package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// Domain-specific errors
//
// Each variable carries the stable machine-readable code the API exposes.
// Storage error text never leaves the service layer; only these messages do.

var (
	ErrInvalidRequest = &AppError{
		Code:    "INVALID_REQUEST",
		Message: "Origin and destination must be different valid locations",
		Status:  http.StatusBadRequest,
	}
	ErrUnknownLocation = &AppError{
		Code:    "UNKNOWN_LOCATION",
		Message: "Referenced location does not exist",
		Status:  http.StatusBadRequest,
	}
	ErrLocationInactive = &AppError{
		Code:    "LOCATION_INACTIVE",
		Message: "Referenced location is disabled",
		Status:  http.StatusBadRequest,
	}
	ErrPastDeparture = &AppError{
		Code:    "PAST_DEPARTURE",
		Message: "Departure time must be in the future",
		Status:  http.StatusBadRequest,
	}
	ErrOutsideServiceHours = &AppError{
		Code:    "OUTSIDE_SERVICE_HOURS",
		Message: "Departure time is outside operating hours",
		Status:  http.StatusBadRequest,
	}
	ErrDuplicatePassenger = &AppError{
		Code:    "DUPLICATE_PASSENGER",
		Message: "You have already joined this ride",
		Status:  http.StatusBadRequest,
	}
	ErrRideFull = &AppError{
		Code:    "RIDE_FULL",
		Message: "Ride is full",
		Status:  http.StatusConflict,
	}
	ErrRideNotJoinable = &AppError{
		Code:    "RIDE_NOT_JOINABLE",
		Message: "Ride is no longer accepting passengers",
		Status:  http.StatusConflict,
	}
	ErrInvalidTransition = &AppError{
		Code:    "INVALID_TRANSITION",
		Message: "Requested status change is not allowed",
		Status:  http.StatusBadRequest,
	}
	ErrLocationInUse = &AppError{
		Code:    "LOCATION_IN_USE",
		Message: "Location is referenced by active rides",
		Status:  http.StatusConflict,
	}
	ErrDuplicateName = &AppError{
		Code:    "DUPLICATE_NAME",
		Message: "A location with this name already exists",
		Status:  http.StatusBadRequest,
	}
	ErrRideNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "Ride not found",
		Status:  http.StatusNotFound,
	}
	ErrLocationNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "Location not found",
		Status:  http.StatusNotFound,
	}
	ErrStorageUnavailable = &AppError{
		Code:    "STORAGE_UNAVAILABLE",
		Message: "Storage backend temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
	}
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
