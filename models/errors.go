package models

import (
	"fmt"
	"net/http"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Status  int          `json:"-"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyLiked       = "ALREADY_LIKED"
	ErrCodeNotLiked           = "NOT_LIKED"
	ErrCodeUpstream           = "UPSTREAM_FAILED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

func NewValidationError(fields []FieldError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    ErrCodeValidation,
		Message: "request validation failed",
		Errors:  fields,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NewInvalidCredentialsError is shared by the unknown-email and
// wrong-password paths so the two cannot be told apart.
func NewInvalidCredentialsError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeInvalidCredentials, Message: "Invalid credentials"}
}

func NewUserExistsError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeUserExists,
		Message: "User already exists",
		Errors:  []FieldError{{Field: "email", Message: "email is already registered"}},
	}
}

func NewForbiddenError(message string) *APIError {
	return &APIError{Status: http.StatusForbidden, Code: ErrCodeForbidden, Message: message}
}

func NewNotFoundError(what string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: what + " not found"}
}

func NewAlreadyLikedError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeAlreadyLiked, Message: "Post already liked"}
}

func NewNotLikedError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeNotLiked, Message: "Post has not yet been liked"}
}

func NewUpstreamError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeUpstream, Message: message}
}

func NewRateLimitedError() *APIError {
	return &APIError{Status: http.StatusTooManyRequests, Code: ErrCodeRateLimited, Message: "Too many requests"}
}

// NewInternalError never carries the cause; it is logged server side.
func NewInternalError() *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: "Server error"}
}
