package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

// FetcherConfig bounds how much history the fetcher pulls from the host.
type FetcherConfig struct {
	MaxPages        int // hard ceiling on commit-listing pages, 100 commits each
	DiffEnrichLimit int // commits to enrich with diffs, driven by the call budget
	DiffBudgetBytes int // aggregate diff bytes kept per commit
	CallBudget      int // outbound host calls allowed per Fetch, 0 = unlimited
}

// DefaultFetcherConfig matches the production limits. The call budget
// covers a full listing pass plus enrichment, with headroom.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxPages:        50,
		DiffEnrichLimit: 40,
		DiffBudgetBytes: 2000,
		CallBudget:      50 + 40 + 10,
	}
}

const commitsPerPage = 100

// callBudget counts outbound host calls for one Fetch. Each run gets a
// fresh counter, so one expensive analysis cannot starve the next.
type callBudget struct {
	remaining int
	limited   bool
}

func newCallBudget(n int) *callBudget {
	return &callBudget{remaining: n, limited: n > 0}
}

// spend consumes one call, reporting false once the budget is gone.
func (b *callBudget) spend() bool {
	if !b.limited {
		return true
	}
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return true
}

// Fetcher pages through a repository's commit history, filtering noise
// and optionally enriching a bounded prefix with diffs.
type Fetcher struct {
	host port.CommitHost
	cfg  FetcherConfig
}

// NewFetcher creates a fetcher over the given commit host.
func NewFetcher(host port.CommitHost, cfg FetcherConfig) *Fetcher {
	return &Fetcher{host: host, cfg: cfg}
}

// Fetch pulls the repository's commit history, newest first as returned
// by the host. Merge and WIP commits are dropped. When enrichDiffs is
// set, the first DiffEnrichLimit commits get file-level patches attached.
// Callers needing chronological order must re-sort.
func (f *Fetcher) Fetch(ctx context.Context, owner, repo string, enrichDiffs bool) ([]domain.Commit, error) {
	var commits []domain.Commit
	budget := newCallBudget(f.cfg.CallBudget)

	for page := 1; page <= f.cfg.MaxPages; page++ {
		if !budget.spend() {
			slog.Warn("call budget exhausted, stopping history paging",
				"repo", repo, "page", page)
			break
		}
		hostCommits, err := f.host.ListCommits(ctx, owner, repo, page, commitsPerPage)
		if err != nil {
			return nil, fmt.Errorf("fetch commits %s/%s: %w", owner, repo, err)
		}

		for _, hc := range hostCommits {
			msg := firstLine(hc.Message)
			if isNoiseCommit(msg) {
				continue
			}
			commits = append(commits, domain.Commit{
				SHA:     hc.SHA,
				Message: msg,
				Date:    hc.Date,
				Author:  hc.Author,
			})
		}

		// A short page means history is exhausted.
		if len(hostCommits) < commitsPerPage {
			break
		}
	}

	if enrichDiffs {
		if err := f.enrich(ctx, owner, repo, commits, budget); err != nil {
			return nil, err
		}
	}

	return commits, nil
}

// enrich attaches diffs and change stats to the first DiffEnrichLimit
// commits. Per-commit fetch failures skip that commit; an exhausted call
// budget stops all remaining enrichment; a host rate limit fails the
// whole fetch.
func (f *Fetcher) enrich(ctx context.Context, owner, repo string, commits []domain.Commit, budget *callBudget) error {
	limit := f.cfg.DiffEnrichLimit
	if limit > len(commits) {
		limit = len(commits)
	}

	for i := 0; i < limit; i++ {
		if !budget.spend() {
			slog.Warn("call budget exhausted, stopping diff enrichment",
				"repo", repo, "enriched", i)
			return nil
		}
		detail, err := f.host.GetCommitDetail(ctx, owner, repo, commits[i].SHA)
		if err != nil {
			if errors.Is(err, port.ErrRateLimited) {
				return fmt.Errorf("enrich %s/%s: %w", owner, repo, err)
			}
			// Server errors, permission errors, and missing commits just
			// lose their diff.
			slog.Debug("skipping diff for commit", "sha", commits[i].ShortSHA(), "error", err)
			continue
		}

		commits[i].FilesChanged = len(detail.Files)
		commits[i].Additions = detail.Additions
		commits[i].Deletions = detail.Deletions
		commits[i].Diff = buildDiff(detail, f.cfg.DiffBudgetBytes)
	}

	return nil
}

// buildDiff concatenates per-file headers and patches up to budget bytes.
func buildDiff(detail *port.CommitDetail, budget int) string {
	var b strings.Builder
	for _, file := range detail.Files {
		if file.Patch == "" {
			continue
		}
		segment := fmt.Sprintf("--- %s (%s) ---\n%s\n", file.Filename, file.Status, file.Patch)
		if b.Len()+len(segment) > budget {
			remaining := budget - b.Len()
			if remaining > 0 {
				b.WriteString(segment[:remaining])
			}
			break
		}
		b.WriteString(segment)
	}
	return b.String()
}

// isNoiseCommit reports whether the message marks a commit that is never
// a milestone.
func isNoiseCommit(firstLine string) bool {
	lower := strings.ToLower(firstLine)
	return strings.HasPrefix(lower, "merge") || strings.HasPrefix(lower, "wip")
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}
