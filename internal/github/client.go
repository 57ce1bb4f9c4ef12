package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/facetlabs/facet/internal/errs"
)

const defaultAPIURL = "https://api.github.com"

// ErrNotFound marks a 404 from the API. Deletion paths treat it as already
// converged, since concurrent runs may remove the same comment.
var ErrNotFound = errors.New("github: not found")

// Client provides access to the GitHub REST API surface facet needs:
// PR diffs and head SHAs, issue comments, and review comments.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
}

// NewClient builds a client from GITHUB_TOKEN (and optional GITHUB_API_URL).
// A missing token is a blocked condition: PR review cannot proceed without
// it, but nothing is wrong with the run itself.
func NewClient() (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, errs.Blocked("GITHUB_TOKEN is required for pull request review")
	}

	apiURL := os.Getenv("GITHUB_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// do performs one API request and returns the response body. Status codes
// are mapped onto the error taxonomy: 401/403 blocked, 404 ErrNotFound,
// anything else non-2xx an execution failure.
func (c *Client) do(ctx context.Context, method, url, accept string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errs.ExecFailureWrap(err, "marshaling request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errs.ExecFailureWrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, errs.ExecFailureWrap(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.ExecFailureWrap(err, "reading response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, errs.Blocked("GitHub authentication failed (status %d): %s", resp.StatusCode, truncate(string(data), 500))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errs.ExecFailure("GitHub API error (status %d): %s", resp.StatusCode, truncate(string(data), 500))
	}
	return data, nil
}

// PRDiff fetches the unified diff for a pull request.
func (c *Client) PRDiff(ctx context.Context, owner, repo string, pr int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, owner, repo, pr)
	data, err := c.do(ctx, "GET", url, "application/vnd.github.v3.diff", nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", errs.ExecFailure("PR #%d not found in %s/%s", pr, owner, repo)
		}
		return "", err
	}
	return string(data), nil
}

// PRHead returns the current head commit SHA of a pull request.
func (c *Client) PRHead(ctx context.Context, owner, repo string, pr int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, owner, repo, pr)
	data, err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errs.ExecFailureWrap(err, "parsing PR metadata")
	}
	sha := strings.TrimSpace(out.Head.SHA)
	if sha == "" {
		return "", errs.ExecFailure("missing head SHA in PR metadata")
	}
	return sha, nil
}

// Viewer returns the login of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	data, err := c.do(ctx, "GET", c.apiURL+"/user", "application/vnd.github.v3+json", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errs.ExecFailureWrap(err, "parsing viewer")
	}
	return out.Login, nil
}

// IssueComment is a top-level PR conversation comment.
type IssueComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// IssueComments lists the conversation comments on a pull request.
func (c *Client) IssueComments(ctx context.Context, owner, repo string, pr int) ([]IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=100", c.apiURL, owner, repo, pr)
	data, err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil)
	if err != nil {
		return nil, err
	}
	var out []IssueComment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errs.ExecFailureWrap(err, "parsing issue comments")
	}
	return out, nil
}

// CreateIssueComment posts a new conversation comment and returns it.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, pr int, body string) (IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, owner, repo, pr)
	data, err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", map[string]string{"body": body})
	if err != nil {
		return IssueComment{}, err
	}
	var out IssueComment
	if err := json.Unmarshal(data, &out); err != nil {
		return IssueComment{}, errs.ExecFailureWrap(err, "parsing created comment")
	}
	return out, nil
}

// UpdateIssueComment replaces an existing conversation comment's body.
func (c *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, owner, repo, commentID)
	data, err := c.do(ctx, "PATCH", url, "application/vnd.github.v3+json", map[string]string{"body": body})
	if err != nil {
		return IssueComment{}, err
	}
	var out IssueComment
	if err := json.Unmarshal(data, &out); err != nil {
		return IssueComment{}, errs.ExecFailureWrap(err, "parsing updated comment")
	}
	return out, nil
}

// DeleteIssueComment removes a conversation comment.
func (c *Client) DeleteIssueComment(ctx context.Context, owner, repo string, commentID int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, owner, repo, commentID)
	_, err := c.do(ctx, "DELETE", url, "application/vnd.github.v3+json", nil)
	return err
}

// ReviewComment is an inline comment anchored to a diff position.
type ReviewComment struct {
	ID       int64  `json:"id"`
	Body     string `json:"body"`
	Path     string `json:"path"`
	Position int    `json:"position"`
	User     struct {
		Login string `json:"login"`
	} `json:"user"`
}

// ReviewComments lists the inline comments on a pull request.
func (c *Client) ReviewComments(ctx context.Context, owner, repo string, pr int) ([]ReviewComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments?per_page=100", c.apiURL, owner, repo, pr)
	data, err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil)
	if err != nil {
		return nil, err
	}
	var out []ReviewComment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errs.ExecFailureWrap(err, "parsing review comments")
	}
	return out, nil
}

// CreateReviewComment posts an inline comment at a diff position.
func (c *Client) CreateReviewComment(ctx context.Context, owner, repo string, pr int, body, commitID, path string, position int) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.apiURL, owner, repo, pr)
	_, err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", map[string]any{
		"body":      body,
		"commit_id": commitID,
		"path":      path,
		"position":  position,
	})
	return err
}

// DeleteReviewComment removes an inline comment.
func (c *Client) DeleteReviewComment(ctx context.Context, owner, repo string, commentID int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/comments/%d", c.apiURL, owner, repo, commentID)
	_, err := c.do(ctx, "DELETE", url, "application/vnd.github.v3+json", nil)
	return err
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars-20] + "... [truncated]"
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", errs.ExecFailureWrap(err, "cannot detect repo: git remote get-url origin")
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(url, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", errs.ExecFailure("cannot parse owner/repo from remote URL: %s", url)
}
