package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/heathcliff26/hookguard/pkg/config"
	"github.com/heathcliff26/hookguard/pkg/retry"
)

// Name of the check run created on pull requests
const CheckRunName = "hookguard"

type GithubClient struct {
	config.GithubConfig

	retryPolicy retry.Policy
	httpClient  *http.Client
}

// Create and initialize a new GithubClient
func NewGithubClient(cfg config.GithubConfig, policy retry.Policy) *GithubClient {
	return &GithubClient{
		GithubConfig: cfg,
		retryPolicy:  policy,
		httpClient:   http.DefaultClient,
	}
}

// Get a new JWT for authentication
func (c *GithubClient) createJWT() (string, error) {
	f, err := os.ReadFile(c.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to read private key file '%s': %w", c.PrivateKey, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key from PEM: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		// Use time of 30s earlier to avoid clock skew issues
		"iat": jwt.NewNumericDate(time.Now().Add(time.Second * -30)),
		// We don't re-use the token, so it should expire relatively soon
		"exp": jwt.NewNumericDate(time.Now().Add(time.Minute * 5)),
		"iss": c.ClientID,
	})
	return token.SignedString(key)
}

// Get an installation access token
// API endpoint: POST /app/installations/{installation_id}/access_tokens
func (c *GithubClient) GetInstallationAccessToken(ctx context.Context, installationID int64) (string, error) {
	jwtToken, err := c.createJWT()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}

	return retry.Do(ctx, c.retryPolicy, "get installation access token", func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/app/installations/%d/access_tokens", c.API, installationID), nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request for installation access token: %w", err)
		}
		commonHeaders(req, jwtToken)

		res, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to get access token: %w", err)
		}
		defer res.Body.Close()

		err = checkResponse(res, http.StatusCreated)
		if err != nil {
			return "", fmt.Errorf("failed to get access token: %w", err)
		}

		var tokenResponse InstallationAccessTokenResponse
		err = json.NewDecoder(res.Body).Decode(&tokenResponse)
		if err != nil {
			return "", fmt.Errorf("failed to decode installation access token response: %w", err)
		}

		return tokenResponse.Token, nil
	})
}

// Create a client for the pull request of the given event
func (c *GithubClient) newPRClient(ctx context.Context, installationID int64, repoURL, commit string) (*PRClient, error) {
	token, err := c.GetInstallationAccessToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	return &PRClient{
		repoURL:     repoURL,
		commit:      commit,
		token:       token,
		retryPolicy: c.retryPolicy,
		httpClient:  c.httpClient,
	}, nil
}

// Create a pending check run when a pull request is opened or receives new commits
func (c *GithubClient) HandlePullRequestEvent(ctx context.Context, event PullRequestEvent) error {
	switch event.Action {
	case "opened", "reopened", "synchronize":
	default:
		slog.Debug("Ignoring pull request action", slog.String("action", event.Action))
		return nil
	}

	pr, err := c.newPRClient(ctx, event.Installation.ID, event.Repository.URL, event.PullRequest.Head.SHA)
	if err != nil {
		return fmt.Errorf("failed to create client for pull request %d: %w", event.Number, err)
	}

	err = pr.CreateCheckRun(ctx, CheckRunName)
	if err != nil {
		return fmt.Errorf("failed to create check run for pull request %d: %w", event.Number, err)
	}
	slog.Info("Created check run for pull request",
		slog.String("repo", event.Repository.FullName),
		slog.Int("pr", event.Number),
		slog.String("commit", event.PullRequest.Head.SHA),
	)
	return nil
}

// Complete the hookguard check run once all other check runs of the commit have finished
func (c *GithubClient) HandleCheckRunEvent(ctx context.Context, event CheckRunEvent) error {
	if event.CheckRun.Name == CheckRunName || event.Action != "completed" {
		slog.Debug("Ignoring check run event",
			slog.String("repo", event.Repository.FullName),
			slog.String("action", event.Action),
			slog.String("name", event.CheckRun.Name),
		)
		return nil
	}

	pr, err := c.newPRClient(ctx, event.Installation.ID, event.Repository.URL, event.CheckRun.HeadSHA)
	if err != nil {
		return fmt.Errorf("failed to create client for commit %s: %w", event.CheckRun.HeadSHA, err)
	}

	runs, err := pr.GetCheckRuns(ctx)
	if err != nil {
		return err
	}

	own, conclusion, done := summarizeCheckRuns(runs)
	if own == nil {
		slog.Debug("No hookguard check run on commit", slog.String("repo", event.Repository.FullName), slog.String("commit", event.CheckRun.HeadSHA))
		return nil
	}
	if !done || own.Status == "completed" {
		return nil
	}

	err = pr.UpdateCheckRun(ctx, CheckRun{
		ID:          own.ID,
		Name:        CheckRunName,
		Status:      "completed",
		Conclusion:  conclusion,
		CompletedAt: time.Now().Format(time.RFC3339),
		Output: CheckRunOutput{
			Title:   CheckRunName,
			Summary: "All other checks completed with conclusion " + conclusion,
		},
	})
	if err != nil {
		return err
	}
	slog.Info("Completed check run",
		slog.String("repo", event.Repository.FullName),
		slog.String("commit", event.CheckRun.HeadSHA),
		slog.String("conclusion", conclusion),
	)
	return nil
}

// Find the hookguard check run and determine the combined conclusion of all other runs.
// done is false while any other run is still in progress.
func summarizeCheckRuns(runs []CheckRun) (own *CheckRun, conclusion string, done bool) {
	conclusion = "success"
	done = true
	for i := range runs {
		run := &runs[i]
		if run.Name == CheckRunName {
			own = run
			continue
		}
		if run.Status != "completed" {
			done = false
			continue
		}
		switch run.Conclusion {
		case "success", "neutral", "skipped":
		default:
			conclusion = "failure"
		}
	}
	return own, conclusion, done
}
