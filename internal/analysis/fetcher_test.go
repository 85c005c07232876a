package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumgit/sumgit/internal/port"
)

// fakeHost serves scripted pages and commit details.
type fakeHost struct {
	pages       [][]port.HostCommit
	details     map[string]*port.CommitDetail
	detailErrs  map[string]error
	listCalls   int
	detailCalls int
}

func (h *fakeHost) ListCommits(_ context.Context, _, _ string, page, _ int) ([]port.HostCommit, error) {
	h.listCalls++
	if page > len(h.pages) {
		return nil, nil
	}
	return h.pages[page-1], nil
}

func (h *fakeHost) GetCommitDetail(_ context.Context, _, _, sha string) (*port.CommitDetail, error) {
	h.detailCalls++
	if err, ok := h.detailErrs[sha]; ok {
		return nil, err
	}
	if d, ok := h.details[sha]; ok {
		return d, nil
	}
	return &port.CommitDetail{}, nil
}

func hostCommit(sha, message string) port.HostCommit {
	return port.HostCommit{SHA: sha, Message: message, Author: "dev", Date: time.Now()}
}

func TestFetch_FiltersMergeAndWIPCommits(t *testing.T) {
	host := &fakeHost{pages: [][]port.HostCommit{{
		hostCommit("aaa0000000", "Merge pull request #4"),
		hostCommit("bbb0000000", "WIP: draft"),
		hostCommit("ccc0000000", "Add dark mode"),
	}}}
	f := NewFetcher(host, DefaultFetcherConfig())

	commits, err := f.Fetch(context.Background(), "acme", "app", false)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "Add dark mode", commits[0].Message)
}

func TestFetch_KeepsOnlyFirstMessageLine(t *testing.T) {
	host := &fakeHost{pages: [][]port.HostCommit{{
		hostCommit("aaa0000000", "Add billing\n\nLong body describing the change"),
	}}}
	f := NewFetcher(host, DefaultFetcherConfig())

	commits, err := f.Fetch(context.Background(), "acme", "app", false)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "Add billing", commits[0].Message)
}

func TestFetch_StopsOnShortPage(t *testing.T) {
	full := make([]port.HostCommit, commitsPerPage)
	for i := range full {
		full[i] = hostCommit(fmt.Sprintf("full%06d", i), fmt.Sprintf("change %d", i))
	}
	short := []port.HostCommit{hostCommit("tail000000", "final change")}

	host := &fakeHost{pages: [][]port.HostCommit{full, short}}
	f := NewFetcher(host, DefaultFetcherConfig())

	commits, err := f.Fetch(context.Background(), "acme", "app", false)
	require.NoError(t, err)
	assert.Len(t, commits, commitsPerPage+1)
	assert.Equal(t, 2, host.listCalls)
}

func TestFetch_RespectsPageCeiling(t *testing.T) {
	page := make([]port.HostCommit, commitsPerPage)
	for i := range page {
		page[i] = hostCommit(fmt.Sprintf("page%06d", i), "change")
	}
	host := &fakeHost{pages: [][]port.HostCommit{page, page, page, page}}
	f := NewFetcher(host, FetcherConfig{MaxPages: 2, DiffBudgetBytes: 2000})

	commits, err := f.Fetch(context.Background(), "acme", "app", false)
	require.NoError(t, err)
	assert.Len(t, commits, 2*commitsPerPage)
	assert.Equal(t, 2, host.listCalls)
}

func TestFetch_EnrichesBoundedPrefix(t *testing.T) {
	host := &fakeHost{
		pages: [][]port.HostCommit{{
			hostCommit("aaa0000000", "first change"),
			hostCommit("bbb0000000", "second change"),
			hostCommit("ccc0000000", "third change"),
		}},
		details: map[string]*port.CommitDetail{
			"aaa0000000": {
				Files:     []port.CommitFile{{Filename: "main.go", Status: "modified", Patch: "@@ -1 +1 @@"}},
				Additions: 10,
				Deletions: 2,
			},
		},
	}
	f := NewFetcher(host, FetcherConfig{MaxPages: 1, DiffEnrichLimit: 2, DiffBudgetBytes: 2000})

	commits, err := f.Fetch(context.Background(), "acme", "app", true)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.True(t, commits[0].HasDiff())
	assert.Equal(t, 10, commits[0].Additions)
	assert.Contains(t, commits[0].Diff, "--- main.go (modified) ---")
	assert.False(t, commits[2].HasDiff(), "commits past the enrich limit stay bare")
	assert.Equal(t, 2, host.detailCalls)
}

func TestFetch_BudgetExhaustionStopsEnrichmentOnly(t *testing.T) {
	host := &fakeHost{
		pages: [][]port.HostCommit{{
			hostCommit("aaa0000000", "first change"),
			hostCommit("bbb0000000", "second change"),
			hostCommit("ccc0000000", "third change"),
		}},
		details: map[string]*port.CommitDetail{
			"aaa0000000": {Additions: 4, Files: []port.CommitFile{{Filename: "a.go", Status: "modified", Patch: "+x"}}},
		},
	}
	// 1 listing call + 1 detail call, then the budget is gone.
	f := NewFetcher(host, FetcherConfig{MaxPages: 1, DiffEnrichLimit: 3, DiffBudgetBytes: 2000, CallBudget: 2})

	commits, err := f.Fetch(context.Background(), "acme", "app", true)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.True(t, commits[0].HasDiff())
	assert.False(t, commits[1].HasDiff())
	assert.Equal(t, 1, host.detailCalls, "enrichment stops once the budget is spent")
}

func TestFetch_BudgetCoversOneRunOnly(t *testing.T) {
	host := &fakeHost{
		pages: [][]port.HostCommit{{hostCommit("aaa0000000", "a change")}},
		details: map[string]*port.CommitDetail{
			"aaa0000000": {Additions: 2, Files: []port.CommitFile{{Filename: "a.go", Status: "modified", Patch: "+y"}}},
		},
	}
	f := NewFetcher(host, FetcherConfig{MaxPages: 1, DiffEnrichLimit: 1, DiffBudgetBytes: 2000, CallBudget: 2})

	for run := 0; run < 3; run++ {
		commits, err := f.Fetch(context.Background(), "acme", "app", true)
		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.True(t, commits[0].HasDiff(), "run %d must get a fresh budget", run)
	}
	assert.Equal(t, 3, host.listCalls)
	assert.Equal(t, 3, host.detailCalls)
}

func TestFetch_RateLimitFailsWholeFetch(t *testing.T) {
	host := &fakeHost{
		pages: [][]port.HostCommit{{hostCommit("aaa0000000", "a change")}},
		detailErrs: map[string]error{
			"aaa0000000": port.ErrRateLimited,
		},
	}
	f := NewFetcher(host, FetcherConfig{MaxPages: 1, DiffEnrichLimit: 1, DiffBudgetBytes: 2000})

	_, err := f.Fetch(context.Background(), "acme", "app", true)
	require.ErrorIs(t, err, port.ErrRateLimited)
}

func TestFetch_DetailFailureSkipsCommit(t *testing.T) {
	host := &fakeHost{
		pages: [][]port.HostCommit{{
			hostCommit("aaa0000000", "first change"),
			hostCommit("bbb0000000", "second change"),
		}},
		details: map[string]*port.CommitDetail{
			"bbb0000000": {Files: []port.CommitFile{{Filename: "api.go", Status: "added", Patch: "+func API()"}}},
		},
		detailErrs: map[string]error{
			"aaa0000000": &port.StatusError{StatusCode: 500, Body: "upstream down"},
		},
	}
	f := NewFetcher(host, FetcherConfig{MaxPages: 1, DiffEnrichLimit: 2, DiffBudgetBytes: 2000})

	commits, err := f.Fetch(context.Background(), "acme", "app", true)
	require.NoError(t, err)
	assert.False(t, commits[0].HasDiff())
	assert.True(t, commits[1].HasDiff())
}

func TestBuildDiff_RespectsBudget(t *testing.T) {
	detail := &port.CommitDetail{Files: []port.CommitFile{
		{Filename: "a.go", Status: "modified", Patch: "1234567890"},
		{Filename: "b.go", Status: "modified", Patch: "1234567890"},
	}}

	diff := buildDiff(detail, 30)
	assert.LessOrEqual(t, len(diff), 30)
	assert.Contains(t, diff, "--- a.go")
}
