package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes used across the chat pipeline. Identity and not-found errors
// are terminal for the current view; signing, upload and reply errors are
// recoverable and map to user-visible retry states.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeSigningFailed   = "SIGNING_FAILED"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeBusy            = "BUSY"
	CodeReplyTimeout    = "REPLY_TIMEOUT"
	CodeReplyFailed     = "REPLY_FAILED"
	CodeServerError     = "SERVER_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Retryable reports whether the caller may recover by retrying the
// operation, as opposed to identity/not-found errors which are terminal.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case CodeSigningFailed, CodeUploadFailed, CodeReplyTimeout, CodeReplyFailed, CodeBusy:
		return true
	}
	return false
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewUnauthenticatedError creates a 401 error for a missing or invalid identity
func NewUnauthenticatedError(message string) *AppError {
	return NewError(http.StatusUnauthorized, CodeUnauthenticated, message)
}

// NewNotFoundError creates a 404 error for a missing user, character or chat
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewSigningFailedError creates a retryable error for a failed URL mint
func NewSigningFailedError(message string) *AppError {
	return NewError(http.StatusBadGateway, CodeSigningFailed, message)
}

// NewUploadFailedError creates a retryable error for a failed direct PUT
func NewUploadFailedError(message string) *AppError {
	return NewError(http.StatusBadGateway, CodeUploadFailed, message)
}

// NewBusyError creates a 409 error for a send issued while a reply is outstanding
func NewBusyError(message string) *AppError {
	return NewError(http.StatusConflict, CodeBusy, message)
}

// NewReplyFailedError creates a retryable error for a failed chat round trip
func NewReplyFailedError(message string) *AppError {
	return NewError(http.StatusBadGateway, CodeReplyFailed, message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError converts any error to an AppError, passing AppErrors through
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeServerError,
		Message:    err.Error(),
	}
}

// Is checks if the target error is of type AppError with the same code
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
