package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sumgit/sumgit/internal/domain"
)

// PayloadConfig bounds the size of the text block sent to the model.
type PayloadConfig struct {
	MaxBytes         int // aggregate payload ceiling
	DiffSegmentBytes int // per-commit diff bytes inside the payload
	MaxCandidates    int // commit count cap applied after ranking
}

// DefaultPayloadConfig matches the production limits.
func DefaultPayloadConfig() PayloadConfig {
	return PayloadConfig{
		MaxBytes:         80 * 1024,
		DiffSegmentBytes: 1000,
		MaxCandidates:    100,
	}
}

// PayloadResult is the built text block plus inclusion accounting.
type PayloadResult struct {
	Text     string
	Included int
	Excluded int // candidates dropped by the size ceiling
}

const commitDelimiter = "\n\n"

// BuildPayload serializes the candidate commits into a bounded text block
// for the model. Diff-bearing commits rank first, ties broken by change
// impact. Pure function — empty input yields an empty payload.
func BuildPayload(commits []domain.Commit, cfg PayloadConfig) PayloadResult {
	candidates := make([]domain.Commit, len(commits))
	copy(candidates, commits)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].HasDiff() != candidates[j].HasDiff() {
			return candidates[i].HasDiff()
		}
		return candidates[i].Impact() > candidates[j].Impact()
	})

	if cfg.MaxCandidates > 0 && len(candidates) > cfg.MaxCandidates {
		candidates = candidates[:cfg.MaxCandidates]
	}

	var b strings.Builder
	included := 0
	for _, c := range candidates {
		entry := formatCommit(c, cfg.DiffSegmentBytes)
		next := len(entry)
		if included > 0 {
			next += len(commitDelimiter)
		}
		if b.Len()+next > cfg.MaxBytes {
			break
		}
		if included > 0 {
			b.WriteString(commitDelimiter)
		}
		b.WriteString(entry)
		included++
	}

	return PayloadResult{
		Text:     b.String(),
		Included: included,
		Excluded: len(candidates) - included,
	}
}

// formatCommit renders one commit entry:
//
//	[date] shortsha: message (N files, +A/-D)
//	Code changes:
//	<diff>
func formatCommit(c domain.Commit, diffLimit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", c.Date.UTC().Format("2006-01-02"), c.ShortSHA(), c.Message)
	if c.FilesChanged > 0 || c.Additions > 0 || c.Deletions > 0 {
		fmt.Fprintf(&b, " (%d files, +%d/-%d)", c.FilesChanged, c.Additions, c.Deletions)
	}
	if c.HasDiff() {
		diff := c.Diff
		if diffLimit > 0 && len(diff) > diffLimit {
			diff = diff[:diffLimit] + "... (truncated)"
		}
		b.WriteString("\nCode changes:\n")
		b.WriteString(diff)
	}
	return b.String()
}
