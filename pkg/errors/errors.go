// Package errors defines the sentinel errors shared across the engine and
// an AppError type that carries an HTTP status for the service layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrEmptyCorpus     = errors.New("corpus is empty")
	ErrInvalidInput    = errors.New("invalid input")
	ErrCacheMiss       = errors.New("cache miss")
	ErrStoreQuota      = errors.New("durable store quota exceeded")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// AppError wraps a sentinel error with a human message and HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with fmt-style message formatting.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status the service layer should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrArticleNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
