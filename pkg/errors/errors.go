// Package errors defines the error kinds surfaced to callers of the skill
// search service and maps them onto HTTP status codes and structured bodies.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuery        = errors.New("invalid query")
	ErrUpstreamFetchFailed = errors.New("upstream fetch failed")
	ErrComputationFailed   = errors.New("computation failed")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrStorage             = errors.New("storage error")
	ErrInternal            = errors.New("internal error")
)

// Kind is the stable, caller-visible name of an error category.
type Kind string

const (
	KindInvalidQuery        Kind = "InvalidQuery"
	KindUpstreamFetchFailed Kind = "UpstreamFetchFailed"
	KindComputationFailed   Kind = "ComputationFailed"
	KindRateLimited         Kind = "RateLimited"
	KindUnauthorized        Kind = "Unauthorized"
	KindStorage             Kind = "StorageError"
	KindInternal            Kind = "Internal"
)

// AppError pairs a sentinel kind with a caller-facing message and, optionally,
// the underlying cause. errors.Is matches both the sentinel and the cause.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Err.Error(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Wrap attaches a sentinel kind to cause, using the kind's default status code.
func Wrap(sentinel error, cause error, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusFor(sentinel),
		Cause:      cause,
	}
}

func InvalidQuery(message string) *AppError {
	return New(ErrInvalidQuery, http.StatusBadRequest, message)
}

func Unauthorized(message string) *AppError {
	return New(ErrUnauthorized, http.StatusUnauthorized, message)
}

func RateLimited() *AppError {
	return New(ErrRateLimited, http.StatusTooManyRequests, "too many requests, slow down")
}

// KindOf classifies err. Unknown errors are Internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, ErrUpstreamFetchFailed):
		return KindUpstreamFetchFailed
	case errors.Is(err, ErrComputationFailed):
		return KindComputationFailed
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return statusFor(err)
}

func statusFor(err error) int {
	switch KindOf(err) {
	case KindInvalidQuery:
		return http.StatusBadRequest
	case KindUpstreamFetchFailed:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for every rejected or failed request.
type Response struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ToResponse builds the caller-facing description of err. Causes are never
// exposed, only the AppError message.
func ToResponse(err error) Response {
	kind := KindOf(err)
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Response{Kind: kind, Message: appErr.Message}
	}
	return Response{Kind: kind, Message: "internal error"}
}
