package ipfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v84/github"
)

// GitHubMetaFetcher reads the "hooks" ranges from the GitHub meta endpoint.
// API endpoint: GET /meta
type GitHubMetaFetcher struct {
	client *github.Client
}

// Create a fetcher for the given API base url, e.g. https://api.github.com.
// When httpClient is nil, http.DefaultClient is used.
func NewGitHubMetaFetcher(apiURL string, httpClient *http.Client) (*GitHubMetaFetcher, error) {
	client := github.NewClient(httpClient)
	if apiURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse api url '%s': %w", apiURL, err)
		}
		client.BaseURL = baseURL
	}
	return &GitHubMetaFetcher{client: client}, nil
}

// FetchRanges fails on transport errors and non-2xx responses.
// A response without a usable "hooks" list yields no ranges.
func (f *GitHubMetaFetcher) FetchRanges(ctx context.Context) ([]string, error) {
	req, err := f.client.NewRequest(http.MethodGet, "meta", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for meta: %w", err)
	}

	var body json.RawMessage
	_, err = f.client.Do(ctx, req, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to get meta from api: %w", err)
	}

	var meta struct {
		Hooks []string `json:"hooks"`
	}
	err = json.Unmarshal(body, &meta)
	if err != nil {
		slog.Warn("Unexpected meta response shape, ignoring hook ranges", slog.String("err", err.Error()))
		return []string{}, nil
	}
	if meta.Hooks == nil {
		return []string{}, nil
	}
	return meta.Hooks, nil
}
