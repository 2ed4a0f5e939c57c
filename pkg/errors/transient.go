package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (connection resets, 5xx responses) with this type
// so that [IsTransient] reports them regardless of their concrete type.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// transientBackendCodes are backend error codes that describe a temporary
// condition on the database side rather than a problem with the request.
var transientBackendCodes = map[string]bool{
	"PGRST000": true, // could not connect to the database
	"PGRST001": true, // internal connection error
	"PGRST002": true, // could not build the schema cache
	"PGRST003": true, // timed out acquiring a pool connection
	"08000":    true, // connection_exception
	"08003":    true, // connection_does_not_exist
	"08006":    true, // connection_failure
	"40001":    true, // serialization_failure
	"40P01":    true, // deadlock_detected
	"53300":    true, // too_many_connections
	"57014":    true, // query_canceled (statement timeout)
	"57P03":    true, // cannot_connect_now
}

// IsTransientStatus reports whether an HTTP status code signals a temporary
// failure.
func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransientBackendCode reports whether a backend error code is in the set
// of recognized temporary conditions.
func IsTransientBackendCode(code string) bool {
	return transientBackendCodes[code]
}

// IsTransient reports whether err is worth retrying.
//
// An error is transient when it is explicitly marked [Retryable], carries a
// transient [Code] (network, timeout, rate limited, unavailable), is a
// [BackendError] with a transient code or status, or is a network-level
// failure (connection refused/reset, unexpected EOF, timeouts, DNS failures).
// Context cancellation and deadline errors are never transient: they belong
// to the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.As(err, new(*RetryableError)) {
		return true
	}
	if errors.As(err, new(*RateLimitedError)) {
		return true
	}

	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient()
	}

	switch GetCode(err) {
	case ErrCodeNetwork, ErrCodeTimeout, ErrCodeRateLimited, ErrCodeUnavailable:
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}
	if errors.As(err, new(*net.OpError)) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
