package audit

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for conditions that carry no payload.
var (
	// ErrNoJobFound means the discovery cascade found no audit job in list.html.
	ErrNoJobFound = errors.New("no audit job found in list page")

	// ErrCircuitBreakerOpen means too many recent upstream failures.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open - too many recent failures")

	// ErrOperationInProgress is kept for API completeness; in practice the
	// per-session lock makes concurrent callers wait instead of failing.
	ErrOperationInProgress = errors.New("audit operation already in progress for this session")
)

// NetworkError wraps a transport-level failure (connect, TLS, body read).
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// SessionExpiredError means the upstream bounced us to an SSO/login page.
type SessionExpiredError struct {
	RedirectURL string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired, redirected to: %s", e.RedirectURL)
}

// NoSessionError means the caller supplied no usable session cookies.
type NoSessionError struct {
	Message string
}

func (e *NoSessionError) Error() string {
	return fmt.Sprintf("no active session: %s", e.Message)
}

// UnexpectedResponseError means the upstream answered outside its observed
// protocol (wrong status, missing headers). Treated as possibly transient.
type UnexpectedResponseError struct {
	Message string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response: %s", e.Message)
}

// JobFailedError means the upstream reported a terminal job failure.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("audit job failed: %s", e.Reason)
}

// PollTimeoutError means polling hit the attempt or wall-clock limit.
type PollTimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("poll timeout after %d attempts (%.1fs elapsed)", e.Attempts, e.Elapsed.Seconds())
}

// ParseError means the fetched audit HTML did not match the expected structure.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// URLError means URL construction or resolution failed.
type URLError struct {
	Message string
}

func (e *URLError) Error() string {
	return fmt.Sprintf("url error: %s", e.Message)
}

// CookieFetchError means the external cookie supplier failed. Raised by the
// HTTP layer, classified here so the status mapping stays in one place.
type CookieFetchError struct {
	Message string
}

func (e *CookieFetchError) Error() string {
	return fmt.Sprintf("failed to fetch cookies from auth server: %s", e.Message)
}

// IsRetryable reports whether an error is potentially transient. Only
// retryable failures feed the circuit breaker: parse errors and terminal job
// failures are request-specific and must not degrade other sessions.
func IsRetryable(err error) bool {
	var (
		netErr  *NetworkError
		respErr *UnexpectedResponseError
		pollErr *PollTimeoutError
	)
	return errors.As(err, &netErr) ||
		errors.As(err, &respErr) ||
		errors.As(err, &pollErr)
}

// NeedsReauth reports whether the caller must re-authenticate before retrying.
func NeedsReauth(err error) bool {
	var (
		expErr *SessionExpiredError
		nosErr *NoSessionError
	)
	return errors.As(err, &expErr) || errors.As(err, &nosErr)
}
