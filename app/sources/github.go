package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a releases client. An empty token uses
// unauthenticated requests.
func NewGitHubClient(httpClient *http.Client, token, userAgent string) *GitHubClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if userAgent != "" {
		client.UserAgent = userAgent
	}
	return &GitHubClient{client: client}
}

// ListReleases returns the first page of releases, newest first.
func (c *GitHubClient) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	releases, _, err := c.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list releases of %s/%s: %w", owner, repo, err)
	}

	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.GetDraft() {
			continue
		}
		out = append(out, Release{
			ID:          r.GetID(),
			TagName:     r.GetTagName(),
			Name:        r.GetName(),
			HTMLURL:     r.GetHTMLURL(),
			Prerelease:  r.GetPrerelease(),
			PublishedAt: r.GetPublishedAt().Time,
		})
	}
	return out, nil
}
