package port

import (
	"context"
	"time"
)

// HostCommit is one commit as returned by the host's listing endpoint.
type HostCommit struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// CommitFile is one changed file in a commit detail response.
type CommitFile struct {
	Filename string
	Status   string
	Patch    string
}

// CommitDetail carries the file-level patches and stats for one commit.
type CommitDetail struct {
	Files     []CommitFile
	Additions int
	Deletions int
}

// CommitHost abstracts the VCS host's REST API. Implementations must
// surface HTTP status and message on failure and map host rate limiting
// to ErrRateLimited.
type CommitHost interface {
	// ListCommits returns one page of the repository's commit history,
	// newest first. A page shorter than perPage means history is exhausted.
	ListCommits(ctx context.Context, owner, repo string, page, perPage int) ([]HostCommit, error)

	// GetCommitDetail fetches per-file patches and stats for one commit.
	GetCommitDetail(ctx context.Context, owner, repo, sha string) (*CommitDetail, error)
}
