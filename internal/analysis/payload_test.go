package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumgit/sumgit/internal/domain"
)

func mkCommit(sha, message string, date time.Time) domain.Commit {
	return domain.Commit{SHA: sha, Message: message, Date: date, Author: "dev"}
}

func TestBuildPayload_EmptyInput(t *testing.T) {
	result := BuildPayload(nil, DefaultPayloadConfig())
	assert.Empty(t, result.Text)
	assert.Zero(t, result.Included)
	assert.Zero(t, result.Excluded)
}

func TestBuildPayload_NeverExceedsCeiling(t *testing.T) {
	cfg := PayloadConfig{MaxBytes: 500, DiffSegmentBytes: 100, MaxCandidates: 100}

	var commits []domain.Commit
	for i := 0; i < 50; i++ {
		c := mkCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "add a fairly long feature description here", time.Now())
		c.Diff = strings.Repeat("x", 400)
		c.FilesChanged = 3
		commits = append(commits, c)
	}

	result := BuildPayload(commits, cfg)
	assert.LessOrEqual(t, len(result.Text), cfg.MaxBytes)
	assert.Equal(t, len(commits), result.Included+result.Excluded)
}

func TestBuildPayload_DiffTruncationMarker(t *testing.T) {
	cfg := PayloadConfig{MaxBytes: 80 * 1024, DiffSegmentBytes: 50, MaxCandidates: 100}

	c := mkCommit("abc1234def", "rewrite parser", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	c.Diff = strings.Repeat("y", 300)

	result := BuildPayload([]domain.Commit{c}, cfg)
	require.Equal(t, 1, result.Included)
	assert.Contains(t, result.Text, "... (truncated)")
	assert.NotContains(t, result.Text, strings.Repeat("y", 51))
}

func TestBuildPayload_RanksDiffBearingCommitsFirst(t *testing.T) {
	cfg := PayloadConfig{MaxBytes: 80 * 1024, DiffSegmentBytes: 1000, MaxCandidates: 100}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	plain := mkCommit("1111111aaaa", "plain commit", date)
	big := mkCommit("2222222bbbb", "big commit", date)
	big.Diff = "diff content"
	big.FilesChanged = 10
	big.Additions = 100
	small := mkCommit("3333333cccc", "small commit", date)
	small.Diff = "diff content"
	small.FilesChanged = 1

	result := BuildPayload([]domain.Commit{plain, small, big}, cfg)

	posBig := strings.Index(result.Text, "2222222")
	posSmall := strings.Index(result.Text, "3333333")
	posPlain := strings.Index(result.Text, "1111111")
	require.True(t, posBig >= 0 && posSmall >= 0 && posPlain >= 0)
	assert.Less(t, posBig, posSmall, "higher impact should come first")
	assert.Less(t, posSmall, posPlain, "diff-bearing commits should precede plain ones")
}

func TestBuildPayload_HugeDiffsExcludeMostCommits(t *testing.T) {
	// 5 commits each carrying ~50KB against an 80KB ceiling: at most 1-2 fit.
	cfg := PayloadConfig{MaxBytes: 80 * 1024, DiffSegmentBytes: 0, MaxCandidates: 100}

	var commits []domain.Commit
	for i := 0; i < 5; i++ {
		c := mkCommit("cccccccdddd", "massive change", time.Now())
		c.Diff = strings.Repeat("z", 50*1024)
		commits = append(commits, c)
	}

	result := BuildPayload(commits, cfg)
	assert.LessOrEqual(t, len(result.Text), cfg.MaxBytes)
	assert.GreaterOrEqual(t, result.Included, 1)
	assert.LessOrEqual(t, result.Included, 2)
	assert.Equal(t, 5-result.Included, result.Excluded)
}

func TestBuildPayload_CandidateCap(t *testing.T) {
	cfg := PayloadConfig{MaxBytes: 1024 * 1024, DiffSegmentBytes: 100, MaxCandidates: 10}

	var commits []domain.Commit
	for i := 0; i < 25; i++ {
		commits = append(commits, mkCommit("eeeeeeeffff", "routine change", time.Now()))
	}

	result := BuildPayload(commits, cfg)
	assert.Equal(t, 10, result.Included)
}

func TestFormatCommit_ShowsStats(t *testing.T) {
	c := mkCommit("abcdef01234", "ship billing", time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC))
	c.FilesChanged = 4
	c.Additions = 120
	c.Deletions = 8

	line := formatCommit(c, 1000)
	assert.Equal(t, "[2024-02-10] abcdef0: ship billing (4 files, +120/-8)", line)
}
