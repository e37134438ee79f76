package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Client is a minimal GitHub REST client. A nil Client is a valid "not
// configured" state; callers degrade gracefully.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitHub client. Returns nil when no token is configured.
func NewClient(token string) *Client {
	if token == "" {
		return nil
	}
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default API endpoint.
// Used by tests.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	if c != nil {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// Repo holds repository metadata.
type Repo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	OpenIssues    int       `json:"open_issues_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	URL           string    `json:"html_url"`
	CloneURL      string    `json:"clone_url"`
	DefaultBranch string    `json:"default_branch"`
	Private       bool      `json:"private"`
	Size          int       `json:"size"`
	License       *struct {
		Name string `json:"name"`
	} `json:"license"`
	Topics []string `json:"topics"`
}

// Issue is an open issue on the remote tracker.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Labels    []string  `json:"-"`
	User      string    `json:"-"`
}

// Commit is one commit in the repository history.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
	URL     string
}

// TreeEntry is one entry of a recursive repository listing. Type is "file" or
// "dir", decided once at this boundary.
type TreeEntry struct {
	Path string
	Type string
}

// ParseRepoRef extracts "owner/name" from a repository URL or returns the
// input unchanged when it is already in owner/name form.
func ParseRepoRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "github.com") {
		idx := strings.Index(ref, "github.com/")
		if idx < 0 {
			return "", fmt.Errorf("unrecognized repository URL: %q", ref)
		}
		parts := strings.Split(strings.Trim(ref[idx+len("github.com/"):], "/"), "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return "", fmt.Errorf("unrecognized repository URL: %q", ref)
		}
		return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), nil
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("repository must be owner/name or a GitHub URL, got %q", ref)
	}
	return ref, nil
}

// GetRepo fetches repository metadata.
func (c *Client) GetRepo(ctx context.Context, fullName string) (*Repo, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s", fullName))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("github repo fetch failed (%d): %s", status, truncate(body, 200))
	}
	var repo Repo
	if err := json.Unmarshal([]byte(body), &repo); err != nil {
		return nil, fmt.Errorf("parse repo metadata: %w", err)
	}
	return &repo, nil
}

// ListUserRepos lists repositories for a user or organization.
func (c *Client) ListUserRepos(ctx context.Context, username string) ([]Repo, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("/users/%s/repos?per_page=100", url.PathEscape(username)))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("github repo list failed (%d): %s", status, truncate(body, 200))
	}
	var repos []Repo
	if err := json.Unmarshal([]byte(body), &repos); err != nil {
		return nil, fmt.Errorf("parse repo list: %w", err)
	}
	return repos, nil
}

// ListTree lists the repository tree recursively with file/dir type tags.
func (c *Client) ListTree(ctx context.Context, fullName, branch string) ([]TreeEntry, error) {
	if branch == "" {
		branch = "HEAD"
	}
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/git/trees/%s?recursive=1", fullName, url.PathEscape(branch)))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("github tree fetch failed (%d): %s", status, truncate(body, 200))
	}
	var payload struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("parse tree: %w", err)
	}
	entries := make([]TreeEntry, 0, len(payload.Tree))
	for _, e := range payload.Tree {
		t := "file"
		if e.Type == "tree" {
			t = "dir"
		}
		entries = append(entries, TreeEntry{Path: e.Path, Type: t})
	}
	return entries, nil
}

// FileContent fetches the decoded text content of one file. A missing path is
// a normal negative result (ok=false), not an error; transport failures also
// degrade to ok=false.
func (c *Client) FileContent(ctx context.Context, fullName, path string) (string, bool) {
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/contents/%s", fullName, escapePath(path)))
	if err != nil {
		slog.Debug("file content fetch failed", "repo", fullName, "path", path, "error", err)
		return "", false
	}
	if status == http.StatusNotFound {
		return "", false
	}
	if status >= 300 {
		slog.Debug("file content fetch failed", "repo", fullName, "path", path, "status", status)
		return "", false
	}

	var payload struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		// a directory listing comes back as a JSON array
		return "", false
	}
	if payload.Type != "file" {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		slog.Debug("file content decode failed", "repo", fullName, "path", path, "error", err)
		return "", false
	}
	return string(decoded), true
}

// DirExists probes for a directory. The contents API returns a JSON array for
// directories.
func (c *Client) DirExists(ctx context.Context, fullName, path string) bool {
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/contents/%s", fullName, escapePath(path)))
	if err != nil || status >= 300 {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(body), "[")
}

// ListIssues fetches up to limit open issues.
func (c *Client) ListIssues(ctx context.Context, fullName string, limit int) ([]Issue, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/issues?state=open&per_page=%d", fullName, limit))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("github issue list failed (%d): %s", status, truncate(body, 200))
	}
	var payload []struct {
		Issue
		PullRequest *struct{} `json:"pull_request"`
		LabelList   []struct {
			Name string `json:"name"`
		} `json:"labels"`
		UserObj struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("parse issue list: %w", err)
	}
	issues := make([]Issue, 0, len(payload))
	for _, p := range payload {
		// the issues endpoint also returns pull requests
		if p.PullRequest != nil {
			continue
		}
		issue := p.Issue
		issue.User = p.UserObj.Login
		for _, l := range p.LabelList {
			issue.Labels = append(issue.Labels, l.Name)
		}
		issues = append(issues, issue)
		if len(issues) >= limit {
			break
		}
	}
	return issues, nil
}

// ListCommits fetches up to limit recent commits.
func (c *Client) ListCommits(ctx context.Context, fullName string, limit int) ([]Commit, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/commits?per_page=%d", fullName, limit))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("github commit list failed (%d): %s", status, truncate(body, 200))
	}
	var payload []struct {
		SHA    string `json:"sha"`
		URL    string `json:"html_url"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string    `json:"name"`
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("parse commit list: %w", err)
	}
	commits := make([]Commit, 0, len(payload))
	for _, p := range payload {
		commits = append(commits, Commit{
			SHA:     p.SHA,
			Message: p.Commit.Message,
			Author:  p.Commit.Author.Name,
			Date:    p.Commit.Author.Date,
			URL:     p.URL,
		})
	}
	return commits, nil
}

func (c *Client) get(ctx context.Context, path string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(payload), resp.StatusCode, nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
