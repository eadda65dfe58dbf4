package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heathcliff26/hookguard/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestPRClient(url string) *PRClient {
	return &PRClient{
		repoURL:     url + "/repos/testowner/testrepo",
		commit:      "testcommit",
		token:       "testtoken",
		retryPolicy: testRetryPolicy(),
		httpClient:  http.DefaultClient,
	}
}

func TestGetCheckRuns(t *testing.T) {
	assert := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/repos/testowner/testrepo/commits/testcommit/check-runs", r.URL.Path)
		assert.Equal("application/vnd.github+json", r.Header.Get("accept"))
		assert.Equal("2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal("Bearer testtoken", r.Header.Get("Authorization"))

		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"total_count": 1,
			"check_runs": [{
				"id": 123456,
				"name": "test-check",
				"head_sha": "testcommit",
				"status": "completed",
				"conclusion": "success"
			}]
		}`))
	}))
	defer s.Close()

	client := newTestPRClient(s.URL)

	checkRuns, err := client.GetCheckRuns(context.Background())
	assert.NoError(err, "Expected no error when fetching check runs")
	require.Len(t, checkRuns, 1, "Expected one check run")

	expectedRun := CheckRun{
		ID:         123456,
		Name:       "test-check",
		HeadSHA:    "testcommit",
		Status:     "completed",
		Conclusion: "success",
	}
	assert.Equal(expectedRun, checkRuns[0], "Should return the expected check run")
}

func TestCreateCheckRun(t *testing.T) {
	assert := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/repos/testowner/testrepo/check-runs", r.URL.Path)
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("Bearer testtoken", r.Header.Get("Authorization"))

		var checkRun CheckRun
		require.NoError(t, json.NewDecoder(r.Body).Decode(&checkRun))
		assert.Equal("test-check", checkRun.Name)
		assert.Equal("testcommit", checkRun.HeadSHA)
		assert.Equal("pending", checkRun.Status)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 654321,
			"name": "test-check",
			"head_sha": "testcommit",
			"status": "pending"
		}`))
	}))
	defer s.Close()

	err := newTestPRClient(s.URL).CreateCheckRun(context.Background(), "test-check")
	assert.NoError(err, "Expected no error when creating check run")
}

func TestUpdateCheckRun(t *testing.T) {
	assert := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/repos/testowner/testrepo/check-runs/654321", r.URL.Path)
		assert.Equal(http.MethodPatch, r.Method)

		var checkRun CheckRun
		require.NoError(t, json.NewDecoder(r.Body).Decode(&checkRun))
		assert.Equal(int64(654321), checkRun.ID)
		assert.Equal("completed", checkRun.Status)
		assert.Equal("success", checkRun.Conclusion)

		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	payload := CheckRun{
		ID:         654321,
		Status:     "completed",
		Conclusion: "success",
	}
	err := newTestPRClient(s.URL).UpdateCheckRun(context.Background(), payload)
	assert.NoError(err, "Expected no error when updating check run")

	err = newTestPRClient(s.URL).UpdateCheckRun(context.Background(), CheckRun{})
	assert.Error(err, "Expected error without check run ID")
}

func TestCreateCheckRunRetriesServerErrors(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var checkRun CheckRun
		require.NoError(t, json.NewDecoder(r.Body).Decode(&checkRun), "Body should be resent on every attempt")
		assert.Equal("test-check", checkRun.Name)

		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"Bad Gateway"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer s.Close()

	err := newTestPRClient(s.URL).CreateCheckRun(context.Background(), "test-check")
	assert.NoError(err)
	assert.Equal(int32(3), calls.Load())
}

func TestGetCheckRunsDoesNotRetryNotFound(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer s.Close()

	_, err := newTestPRClient(s.URL).GetCheckRuns(context.Background())
	assert.Equal(int32(1), calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "Should preserve the api error")
	assert.Equal(http.StatusNotFound, apiErr.Status)
	assert.Equal("Not Found", apiErr.Message)
}

func TestGetCheckRunsRateLimited(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for installation ID 1."}`))
	}))
	defer s.Close()

	_, err := newTestPRClient(s.URL).GetCheckRuns(context.Background())
	assert.Error(err)
	assert.Equal(int32(3), calls.Load(), "Should retry rate limited requests until retries are exhausted")
}

func TestAPIError(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("unexpected status code 500", (&APIError{Status: 500}).Error())
	assert.Equal("unexpected status code 404: Not Found", (&APIError{Status: 404, Message: "Not Found"}).Error())
	assert.Equal(429, (&APIError{Status: 429}).HTTPStatus())
	assert.Equal(retry.Retryable, retry.Classify(&APIError{Status: 503}))
}
