package analysis

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/sumgit/sumgit/internal/domain"
)

// ChunkerConfig tunes the chunked orchestration pass.
type ChunkerConfig struct {
	Payload    PayloadConfig
	ChunkDelay time.Duration // pacing between chunks, skipped after the last
}

// DefaultChunkerConfig matches the production limits.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Payload:    DefaultPayloadConfig(),
		ChunkDelay: 500 * time.Millisecond,
	}
}

// Chunker analyzes a large commit set in calendar-month slices,
// tolerating individual chunk failures.
type Chunker struct {
	extractor *Extractor
	cfg       ChunkerConfig
}

// NewChunker creates a chunked orchestrator over the given extractor.
func NewChunker(extractor *Extractor, cfg ChunkerConfig) *Chunker {
	return &Chunker{extractor: extractor, cfg: cfg}
}

// Partition groups commits by calendar month and returns the chunk keys
// in ascending chronological order.
func Partition(commits []domain.Commit) ([]string, map[string][]domain.Commit) {
	chunks := make(map[string][]domain.Commit)
	for _, c := range commits {
		key := c.ChunkKey()
		chunks[key] = append(chunks[key], c)
	}

	keys := make([]string, 0, len(chunks))
	for key := range chunks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, chunks
}

// Run analyzes the commit set chunk by chunk and concatenates all
// discovered milestones in chunk-processing order. A failing chunk
// contributes nothing and does not abort the run; an error propagates
// only when no chunk succeeded and the last attempted chunk failed.
// Cross-chunk deduplication is deliberately not performed.
func (c *Chunker) Run(ctx context.Context, repoName string, commits []domain.Commit) ([]ExtractedMilestone, error) {
	keys, chunks := Partition(commits)

	var all []ExtractedMilestone
	succeeded := 0
	var lastErr error

	for i, key := range keys {
		chunk := chunks[key]
		built := BuildPayload(chunk, c.cfg.Payload)
		if built.Text == "" {
			continue
		}
		if built.Excluded > 0 {
			slog.Info("chunk payload truncated",
				"repo", repoName, "chunk", key, "excluded", built.Excluded)
		}

		milestones, err := c.extractor.Extract(ctx, repoName, built.Text)
		if err != nil {
			slog.Warn("chunk analysis failed, continuing",
				"repo", repoName, "chunk", key, "error", err)
			lastErr = err
		} else {
			all = append(all, milestones...)
			succeeded++
			lastErr = nil
		}

		// Pace requests against the upstream API between chunks.
		if i < len(keys)-1 && c.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.cfg.ChunkDelay):
			}
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}
