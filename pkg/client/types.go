package client

type CheckRunEvent struct {
	Action       string                `json:"action,omitempty"`
	CheckRun     CheckRun              `json:"check_run"`
	Installation GithubAppInstallation `json:"installation,omitempty"`
	Repository   Repository            `json:"repository"`
	Sender       Sender                `json:"sender"`
}

type PullRequestEvent struct {
	Action       string                `json:"action"`
	Installation GithubAppInstallation `json:"installation,omitempty"`
	Number       int                   `json:"number"`
	PullRequest  PullRequest           `json:"pull_request"`
	Repository   Repository            `json:"repository"`
	Sender       Sender                `json:"sender"`
}

type GithubAppInstallation struct {
	ID int64 `json:"id"`
}

type PullRequest struct {
	Number int    `json:"number"`
	State  string `json:"state"`
	Head   Ref    `json:"head"`
}

type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
	Owner    Sender `json:"owner"`
}

type Sender struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type CheckRun struct {
	ID          int64          `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	HeadSHA     string         `json:"head_sha,omitempty"`
	Status      string         `json:"status,omitempty"`
	Conclusion  string         `json:"conclusion,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Output      CheckRunOutput `json:"output,omitempty"`
}

type CheckRunOutput struct {
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type CheckRuns struct {
	TotalCount int        `json:"total_count"`
	CheckRuns  []CheckRun `json:"check_runs"`
}

type InstallationAccessTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
