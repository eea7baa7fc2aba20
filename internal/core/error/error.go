package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is returned when a key does not exist.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes relational storage failures.
	StorageErrorMessage = "storage operation failed"
	// StorageNotFoundMessage is returned when a record does not exist.
	StorageNotFoundMessage = "record not found"
	// ProviderErrorMessage describes language-model provider failures.
	ProviderErrorMessage = "language model provider failed"
	// TimeoutMessage is the generic message surfaced for expired runs.
	TimeoutMessage = "request timed out"
)

// Error kinds. Match them with errors.Is against any AppError chain.
var (
	ErrTimeout             = errors.New("timeout")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrIndexUnavailable    = errors.New("similarity index unavailable")
	ErrParse               = errors.New("parse failure")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Wrap attaches a kind to err so callers can test it with errors.Is.
func Wrap(kind, err error, status int, message string) *AppError {
	if err == nil {
		return New(kind, status, message)
	}
	return New(fmt.Errorf("%w: %w", kind, err), status, message)
}

// WrapProvider marks err as a language-model provider failure.
func WrapProvider(err error) error {
	if err == nil {
		return nil
	}
	return Wrap(ErrProviderUnavailable, err, http.StatusBadGateway, ProviderErrorMessage)
}

// Timeout builds the run-level timeout error.
func Timeout(err error) *AppError {
	return Wrap(ErrTimeout, err, http.StatusGatewayTimeout, TimeoutMessage)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
