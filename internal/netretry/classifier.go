// Package netretry wraps fallible remote operations with policy-driven
// retries, jittered exponential backoff and deadline racing.
package netretry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/vietddude/netcache/internal/core/domain"
)

// Classify maps a raw failure to its NetworkError. Deterministic and
// side-effect-free; already-classified errors pass through unchanged so
// classification happens exactly once at the boundary.
func Classify(err error) *domain.NetworkError {
	if err == nil {
		return nil
	}

	var classified *domain.NetworkError
	if errors.As(err, &classified) {
		return classified
	}

	var status *domain.StatusError
	if errors.As(err, &status) {
		return classifyStatus(status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.NetworkError{Kind: domain.KindTimeout, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &domain.NetworkError{Kind: domain.KindUnknown, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.NetworkError{Kind: domain.KindTimeout, Cause: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &domain.NetworkError{Kind: domain.KindServerUnavailable, Cause: err}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
			syscall.EPIPE, syscall.ENOTCONN:
			return &domain.NetworkError{Kind: domain.KindNoConnection, Cause: err}
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.EHOSTDOWN:
			return &domain.NetworkError{Kind: domain.KindServerUnavailable, Cause: err}
		case syscall.ETIMEDOUT:
			return &domain.NetworkError{Kind: domain.KindTimeout, Cause: err}
		}
	}

	// Fall back to message patterns for wrapped errors that lost their type.
	s := strings.ToLower(err.Error())
	switch {
	case containsAny(s, "timed out", "timeout"):
		return &domain.NetworkError{Kind: domain.KindTimeout, Cause: err}
	case containsAny(s, "connection reset", "connection refused", "broken pipe",
		"connection lost", "not connected", "network is down"):
		return &domain.NetworkError{Kind: domain.KindNoConnection, Cause: err}
	case containsAny(s, "no such host", "network is unreachable", "host is down",
		"host unreachable"):
		return &domain.NetworkError{Kind: domain.KindServerUnavailable, Cause: err}
	case containsAny(s, "too many requests", "rate limit"):
		return &domain.NetworkError{Kind: domain.KindTooManyRequests, Cause: err}
	}

	return &domain.NetworkError{Kind: domain.KindUnknown, Cause: err}
}

func classifyStatus(status *domain.StatusError) *domain.NetworkError {
	kind := domain.KindUnknown
	switch {
	case status.Code == 400:
		kind = domain.KindBadRequest
	case status.Code == 401:
		kind = domain.KindAuthFailed
	case status.Code == 403:
		kind = domain.KindForbidden
	case status.Code == 404:
		kind = domain.KindNotFound
	case status.Code == 429:
		kind = domain.KindTooManyRequests
	case status.Code >= 500 && status.Code <= 599:
		kind = domain.KindServerError
	}
	return &domain.NetworkError{Kind: kind, StatusCode: status.Code, Cause: status}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
