package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTracker_Lifecycle(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j1", "r1", "quick")

	job, ok := tracker.GetJob("j1")
	require.True(t, ok)
	assert.Equal(t, "running", job.Status)
	assert.Equal(t, "pending", job.Stage)

	tracker.UpdateStage("j1", "fetching_commits")
	tracker.Complete("j1", 4)

	job, ok = tracker.GetJob("j1")
	require.True(t, ok)
	assert.Equal(t, "complete", job.Status)
	assert.Equal(t, 4, job.Milestones)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestJobTracker_FailCarriesMessage(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j1", "r1", "timeline")
	tracker.Fail("j1", "not enough credits for this analysis")

	job, ok := tracker.GetJob("j1")
	require.True(t, ok)
	assert.Equal(t, "error", job.Status)
	assert.Equal(t, "not enough credits for this analysis", job.Error)
}

func TestJobTracker_UnknownJob(t *testing.T) {
	tracker := NewJobTracker()
	_, ok := tracker.GetJob("missing")
	assert.False(t, ok)

	// Updates against unknown ids are dropped, not panics.
	tracker.UpdateStage("missing", "fetching_commits")
	tracker.Complete("missing", 1)
}

func TestJobTracker_SubscribersReceiveUpdates(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j1", "r1", "story")

	ch := tracker.Subscribe("j1")
	tracker.UpdateStage("j1", "classifying_commits")
	tracker.Complete("j1", 2)

	update := <-ch
	assert.Equal(t, "classifying_commits", update.Stage)
	update = <-ch
	assert.Equal(t, "complete", update.Status)

	tracker.Unsubscribe("j1", ch)
	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestJobTracker_SnapshotIsolation(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j1", "r1", "quick")

	before, _ := tracker.GetJob("j1")
	tracker.UpdateStage("j1", "extracting_milestones")

	assert.Equal(t, "pending", before.Stage, "snapshots do not alias tracker state")
}
