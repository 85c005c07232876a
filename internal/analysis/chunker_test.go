package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

func monthlyCommits(t *testing.T) []domain.Commit {
	t.Helper()
	var commits []domain.Commit
	for i := 0; i < 150; i++ {
		// Spread across January, February, and March 2024.
		month := time.Month(1 + i%3)
		day := 1 + i%27
		commits = append(commits, domain.Commit{
			SHA:     fmt.Sprintf("sha%07d", i),
			Message: fmt.Sprintf("change %d", i),
			Date:    time.Date(2024, month, day, 12, 0, 0, 0, time.UTC),
		})
	}
	return commits
}

func TestPartition_GroupsByCalendarMonth(t *testing.T) {
	keys, chunks := Partition(monthlyCommits(t))

	require.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, keys)
	assert.Len(t, chunks["2024-01"], 50)
	assert.Len(t, chunks["2024-02"], 50)
	assert.Len(t, chunks["2024-03"], 50)
}

func TestPartition_IsDeterministic(t *testing.T) {
	commits := monthlyCommits(t)
	keys1, _ := Partition(commits)
	keys2, _ := Partition(commits)
	assert.Equal(t, keys1, keys2)
}

func TestPartition_UsesUTCMonth(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2024-02-01 05:00 +10 is 2024-01-31 19:00 UTC.
	c := domain.Commit{SHA: "tz00000001", Message: "late night change",
		Date: time.Date(2024, 2, 1, 5, 0, 0, 0, loc)}

	keys, _ := Partition([]domain.Commit{c})
	assert.Equal(t, []string{"2024-01"}, keys)
}

func chunkResponse(title string) string {
	return fmt.Sprintf(`{"milestones":[{"title":%q,"commit_sha":"sha0000001"}]}`, title)
}

func TestChunkerRun_ConcatenatesChunkResults(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		chunkResponse("January milestone"),
		chunkResponse("February milestone"),
		chunkResponse("March milestone"),
	}}
	chunker := NewChunker(NewExtractor(llm, time.Minute), ChunkerConfig{Payload: DefaultPayloadConfig()})

	milestones, err := chunker.Run(context.Background(), "acme/app", monthlyCommits(t))
	require.NoError(t, err)
	require.Len(t, milestones, 3)
	assert.Equal(t, "January milestone", milestones[0].Title)
	assert.Equal(t, "March milestone", milestones[2].Title)
	assert.Equal(t, 3, llm.calls)
}

func TestChunkerRun_ToleratesFailingChunk(t *testing.T) {
	llm := &fakeLLM{
		responses: []string{chunkResponse("January milestone"), "", chunkResponse("March milestone")},
		errs:      []error{nil, &port.StatusError{StatusCode: 500, Body: "overloaded"}, nil},
	}
	chunker := NewChunker(NewExtractor(llm, time.Minute), ChunkerConfig{Payload: DefaultPayloadConfig()})

	milestones, err := chunker.Run(context.Background(), "acme/app", monthlyCommits(t))
	require.NoError(t, err, "a single failing chunk must not abort the run")
	require.Len(t, milestones, 2)
	assert.Equal(t, "January milestone", milestones[0].Title)
	assert.Equal(t, "March milestone", milestones[1].Title)
}

func TestChunkerRun_AllChunksFailing(t *testing.T) {
	fail := &port.StatusError{StatusCode: 503, Body: "down"}
	llm := &fakeLLM{errs: []error{fail, fail, fail}}
	chunker := NewChunker(NewExtractor(llm, time.Minute), ChunkerConfig{Payload: DefaultPayloadConfig()})

	_, err := chunker.Run(context.Background(), "acme/app", monthlyCommits(t))
	require.Error(t, err)
	assert.Equal(t, port.KindServerError, port.KindOf(err))
}

func TestChunkerRun_EmptyInput(t *testing.T) {
	llm := &fakeLLM{}
	chunker := NewChunker(NewExtractor(llm, time.Minute), ChunkerConfig{Payload: DefaultPayloadConfig()})

	milestones, err := chunker.Run(context.Background(), "acme/app", nil)
	require.NoError(t, err)
	assert.Empty(t, milestones)
	assert.Zero(t, llm.calls)
}

func TestChunkerRun_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &fakeLLM{responses: []string{chunkResponse("January milestone")}}

	chunker := NewChunker(NewExtractor(llm, time.Minute),
		ChunkerConfig{Payload: DefaultPayloadConfig(), ChunkDelay: time.Minute})

	milestones, err := chunker.Run(ctx, "acme/app", monthlyCommits(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, milestones, 1, "results gathered before cancellation are returned")
}
