package resolver

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

// HTTPLister answers branch queries against a GitHub-style REST API
// (GET /repos/{owner}/{repo}/branches/{branch}), for deployments where the
// orchestrator host has API access but no git binary.
type HTTPLister struct {
	client *resty.Client
	owner  string
}

// NewHTTPLister builds a lister for the given API base URL and repository
// owner. An empty token leaves requests unauthenticated.
func NewHTTPLister(baseURL, owner, token string) *HTTPLister {
	client := resty.New().SetBaseURL(baseURL)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPLister{client: client, owner: owner}
}

// Close releases the underlying HTTP client resources.
func (l *HTTPLister) Close() error {
	return l.client.Close()
}

// HasBranch implements BranchLister. A 404 means the branch does not exist;
// any other non-2xx status is an error so the resolver can log it before
// falling back.
func (l *HTTPLister) HasBranch(ctx context.Context, repo, branch string) (bool, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetPathParam("owner", l.owner).
		SetPathParam("repo", repo).
		SetPathParam("branch", branch).
		Get("/repos/{owner}/{repo}/branches/{branch}")
	if err != nil {
		return false, fmt.Errorf("branch lookup %s/%s@%s: %w", l.owner, repo, branch, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, fmt.Errorf("branch lookup %s/%s@%s: unexpected status %s", l.owner, repo, branch, resp.Status())
	default:
		return true, nil
	}
}
