package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"

	"github.com/google/go-github/v84/github"
	"github.com/stretchr/testify/assert"
)

func testResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Request: &http.Request{
			Method: http.MethodGet,
			URL:    &url.URL{Scheme: "https", Host: "api.github.com", Path: "/repos/testowner/testrepo"},
		},
	}
}

func githubError(status int, msg string) error {
	return &github.ErrorResponse{
		Response: testResponse(status),
		Message:  msg,
	}
}

func TestClassify(t *testing.T) {
	tMatrix := []struct {
		Name   string
		Err    error
		Result Class
	}{
		{"Nil", nil, NonRetryable},
		{"TooManyRequests", &testStatusError{status: http.StatusTooManyRequests}, Retryable},
		{"InternalServerError", &testStatusError{status: http.StatusInternalServerError}, Retryable},
		{"ServiceUnavailable", githubError(http.StatusServiceUnavailable, "unavailable"), Retryable},
		{"ForbiddenRateLimit", githubError(http.StatusForbidden, "API rate limit exceeded for installation"), Retryable},
		{"ForbiddenSecondaryRateLimit", githubError(http.StatusForbidden, "You have exceeded a secondary rate limit"), Retryable},
		{"ForbiddenPermission", githubError(http.StatusForbidden, "Resource not accessible by integration"), NonRetryable},
		{"NotFound", githubError(http.StatusNotFound, "Not Found"), NonRetryable},
		{"RequestTimeout", &testStatusError{status: http.StatusRequestTimeout, msg: "request timeout"}, Retryable},
		{"BadRequestNetworkMessage", &testStatusError{status: http.StatusBadRequest, msg: "network is unreachable"}, Retryable},
		{"GithubErrorTimeoutMessage", githubError(http.StatusUnprocessableEntity, "Timeout waiting for upstream"), Retryable},
		{"BadRequest", &testStatusError{status: http.StatusBadRequest, msg: "Problems parsing JSON"}, NonRetryable},
		{"Unauthorized", &testStatusError{status: http.StatusUnauthorized}, NonRetryable},
		{"RateLimitError", &github.RateLimitError{Response: testResponse(http.StatusForbidden)}, Retryable},
		{"AbuseRateLimitError", &github.AbuseRateLimitError{Response: testResponse(http.StatusForbidden)}, Retryable},
		{"ConnectionReset", fmt.Errorf("read: %w", syscall.ECONNRESET), Retryable},
		{"ConnectionRefused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, Retryable},
		{"DNS", &net.DNSError{Err: "no such host", Name: "api.github.com"}, Retryable},
		{"URLTimeout", &url.Error{Op: "Get", URL: "https://api.github.com", Err: context.DeadlineExceeded}, Retryable},
		{"NetworkMessage", errors.New("Network is unreachable"), Retryable},
		{"TimeoutMessage", errors.New("request timeout"), Retryable},
		{"Canceled", context.Canceled, NonRetryable},
		{"Plain", errors.New("invalid payload"), NonRetryable},
		{"Wrapped", fmt.Errorf("failed to create check-run: %w", &testStatusError{status: http.StatusBadGateway}), Retryable},
	}

	for _, tCase := range tMatrix {
		t.Run(tCase.Name, func(t *testing.T) {
			assert.Equal(t, tCase.Result, Classify(tCase.Err))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "non-retryable", NonRetryable.String())
}
