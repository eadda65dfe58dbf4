package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/google/go-github/v84/github"
)

// Class is the outcome of classifying a failed outbound call.
type Class int

const (
	NonRetryable Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "non-retryable"
}

// Implemented by errors that carry the HTTP status of a failed API call.
type statusError interface {
	HTTPStatus() int
}

// Classify decides whether a failed call is worth another attempt.
// The message matching is best effort, since upstream clients report failures in different shapes.
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return NonRetryable
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return Retryable
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return Retryable
	}

	if status, msg, ok := httpStatus(err); ok && classifyStatus(status, msg) == Retryable {
		return Retryable
	}

	if isTransportError(err) {
		return Retryable
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "network") || strings.Contains(msg, "timeout") {
		return Retryable
	}
	return NonRetryable
}

func httpStatus(err error) (int, string, bool) {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode, ghErr.Message, true
	}
	var statusErr statusError
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus(), err.Error(), true
	}
	return 0, "", false
}

func classifyStatus(status int, msg string) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return Retryable
	case status >= 500 && status <= 599:
		return Retryable
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(msg), "rate limit"):
		return Retryable
	default:
		return NonRetryable
	}
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
