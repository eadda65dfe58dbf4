package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is returned when the GitHub API answers with an unexpected status code.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code %d", e.Status)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Status, e.Message)
}

// Used to classify failures for retries
func (e *APIError) HTTPStatus() int {
	return e.Status
}

func commonHeaders(req *http.Request, token string) {
	req.Header.Set("accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Return an APIError if the response does not have the expected status code
func checkResponse(res *http.Response, expected int) error {
	if res.StatusCode == expected {
		return nil
	}

	apiErr := &APIError{Status: res.StatusCode}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err == nil {
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) == nil {
			apiErr.Message = msg.Message
		}
	}
	return apiErr
}
