package domain

import (
	"fmt"
)

// ErrorKind is the closed taxonomy of network failure classes. Every raw
// transport or status error is mapped to exactly one kind at the boundary;
// all retry decisions downstream operate on the kind alone.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNoConnection
	KindTimeout
	KindServerError
	KindAuthFailed
	KindBadRequest
	KindNotFound
	KindForbidden
	KindTooManyRequests
	KindServerUnavailable
)

// String returns a stable name for logging and metrics labels.
func (k ErrorKind) String() string {
	switch k {
	case KindNoConnection:
		return "no_connection"
	case KindTimeout:
		return "timeout"
	case KindServerError:
		return "server_error"
	case KindAuthFailed:
		return "auth_failed"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindServerUnavailable:
		return "server_unavailable"
	default:
		return "unknown"
	}
}

// Retryable reports whether operations failing with this kind may be retried.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNoConnection, KindTimeout, KindServerError, KindTooManyRequests, KindServerUnavailable:
		return true
	default:
		return false
	}
}

// RecoveryAction returns the suggested user-facing recovery step for a kind.
func (k ErrorKind) RecoveryAction() string {
	switch k {
	case KindNoConnection:
		return "check your network connection"
	case KindTimeout:
		return "retry the operation"
	case KindAuthFailed:
		return "reauthenticate with the server"
	case KindServerError, KindServerUnavailable:
		return "wait and retry"
	case KindTooManyRequests:
		return "back off before retrying"
	case KindNotFound:
		return "check the remote path"
	case KindForbidden:
		return "check your permissions"
	case KindBadRequest:
		return "check the request parameters"
	default:
		return "contact support"
	}
}

// NetworkError is a classified failure: a kind discriminant plus an optional
// status code and the raw cause. Errors compare structurally by kind.
type NetworkError struct {
	Kind       ErrorKind
	StatusCode int // 0 unless derived from a status-coded response
	Cause      error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Cause != nil:
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is matches any *NetworkError with the same kind, so callers can write
// errors.Is(err, &NetworkError{Kind: KindNotFound}).
func (e *NetworkError) Is(target error) bool {
	t, ok := target.(*NetworkError)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the classified failure may be retried.
func (e *NetworkError) Retryable() bool {
	return e.Kind.Retryable()
}

// StatusError is a raw status-coded failure produced by the remote service
// collaborator, before classification.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status %d", e.Code)
	}
	return fmt.Sprintf("remote status %d: %s", e.Code, e.Message)
}
