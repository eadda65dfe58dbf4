package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heathcliff26/hookguard/pkg/retry"
)

type PRClient struct {
	// The api url of the repository, should be provided by the webhook payload.
	// Example: https://api.github.com/repos/<owner>/<repo>
	repoURL string
	// The commit SHA for which to fetch check runs.
	commit string
	// The authentication token to use for the api call.
	token string

	retryPolicy retry.Policy
	httpClient  *http.Client
}

// Send a request with retries, a new request is built for every attempt.
func (c *PRClient) do(ctx context.Context, label, method, url string, payload any, expected int, result any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", label, err)
		}
	}

	_, err := retry.Do(ctx, c.retryPolicy, label, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request for %s: %w", label, err)
		}
		commonHeaders(req, c.token)

		res, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer res.Body.Close()

		err = checkResponse(res, expected)
		if err != nil {
			return struct{}{}, err
		}

		if result != nil {
			err = json.NewDecoder(res.Body).Decode(result)
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to decode %s response: %w", label, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// Fetch all check runs for a current pull request commit.
// API endpoint: GET /repos/{owner}/{repo}/commits/{ref}/check-runs
func (c *PRClient) GetCheckRuns(ctx context.Context) ([]CheckRun, error) {
	var runs CheckRuns
	err := c.do(ctx, "get check-runs", http.MethodGet, c.repoURL+"/commits/"+c.commit+"/check-runs", nil, http.StatusOK, &runs)
	if err != nil {
		return nil, fmt.Errorf("failed to get check-runs from api: %w", err)
	}
	return runs.CheckRuns, nil
}

// Create a check run for a specific commit.
// API endpoint: POST /repos/{owner}/{repo}/check-runs
func (c *PRClient) CreateCheckRun(ctx context.Context, name string) error {
	payload := CheckRun{
		Name:      name,
		HeadSHA:   c.commit,
		Status:    "pending",
		StartedAt: time.Now().Format(time.RFC3339),
		Output: CheckRunOutput{
			Title:   name,
			Summary: "Waiting for other checks to complete",
		},
	}

	var createdRun CheckRun
	err := c.do(ctx, "create check-run", http.MethodPost, c.repoURL+"/check-runs", payload, http.StatusCreated, &createdRun)
	if err != nil {
		return fmt.Errorf("failed to create check-run: %w", err)
	}
	slog.Debug("Check run created", slog.Int64("id", createdRun.ID))
	return nil
}

// Update an existing check runs status.
// API endpoint: PATCH /repos/{owner}/{repo}/check-runs/{check_run_id}
func (c *PRClient) UpdateCheckRun(ctx context.Context, payload CheckRun) error {
	if payload.ID == 0 {
		return fmt.Errorf("check run ID must be set to update a check run")
	}

	err := c.do(ctx, "update check-run", http.MethodPatch, fmt.Sprintf("%s/check-runs/%d", c.repoURL, payload.ID), payload, http.StatusOK, nil)
	if err != nil {
		return fmt.Errorf("failed to update check-run: %w", err)
	}
	return nil
}
