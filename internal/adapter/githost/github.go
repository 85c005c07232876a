package githost

import (
	"context"
	"fmt"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/sumgit/sumgit/internal/port"
)

// GitHubHost implements port.CommitHost using the GitHub REST API. The
// host is stateless; outbound call budgeting is the fetcher's concern so
// it resets with every analysis run.
type GitHubHost struct {
	client *github.Client
}

// NewGitHubHost creates a host client authenticated with the given
// token. An empty token yields an unauthenticated client, limited to
// public repositories.
func NewGitHubHost(token string) *GitHubHost {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubHost{client: client}
}

// ListCommits returns one page of the repository's commit history, newest first.
func (h *GitHubHost) ListCommits(ctx context.Context, owner, repo string, page, perPage int) ([]port.HostCommit, error) {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	commits, resp, err := h.client.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		// Empty repositories answer 409; treat as an exhausted history.
		if resp != nil && resp.StatusCode == 409 {
			return nil, nil
		}
		return nil, h.mapError(fmt.Sprintf("list commits %s/%s page %d", owner, repo, page), err)
	}

	out := make([]port.HostCommit, 0, len(commits))
	for _, c := range commits {
		hc := port.HostCommit{SHA: c.GetSHA()}
		if c.Commit != nil {
			hc.Message = c.Commit.GetMessage()
			if c.Commit.Author != nil {
				hc.Author = c.Commit.Author.GetName()
				hc.Date = c.Commit.Author.GetDate().Time
			}
		}
		if hc.Author == "" && c.Author != nil {
			hc.Author = c.Author.GetLogin()
		}
		out = append(out, hc)
	}
	return out, nil
}

// GetCommitDetail fetches per-file patches and stats for one commit.
func (h *GitHubHost) GetCommitDetail(ctx context.Context, owner, repo, sha string) (*port.CommitDetail, error) {
	detail, _, err := h.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, h.mapError(fmt.Sprintf("get commit %s", sha), err)
	}

	out := &port.CommitDetail{}
	if detail.Stats != nil {
		out.Additions = detail.Stats.GetAdditions()
		out.Deletions = detail.Stats.GetDeletions()
	}
	for _, f := range detail.Files {
		out.Files = append(out.Files, port.CommitFile{
			Filename: f.GetFilename(),
			Status:   f.GetStatus(),
			Patch:    f.GetPatch(),
		})
	}
	return out, nil
}

// mapError converts go-github failures into the port's error vocabulary,
// keeping the HTTP status visible for classification.
func (h *GitHubHost) mapError(op string, err error) error {
	switch e := err.(type) {
	case *github.RateLimitError:
		return fmt.Errorf("%s: %w", op, port.ErrRateLimited)
	case *github.AbuseRateLimitError:
		return fmt.Errorf("%s: %w", op, port.ErrRateLimited)
	case *github.ErrorResponse:
		status := 0
		if e.Response != nil {
			status = e.Response.StatusCode
		}
		return fmt.Errorf("%s: %w", op, &port.StatusError{StatusCode: status, Body: e.Message})
	}
	return fmt.Errorf("%s: %w", op, err)
}
