package domain

import "time"

// Milestone is a synthesized, shareable description of a significant
// repository event, derived from one or more commits.
type Milestone struct {
	ID              string    `json:"id"                db:"id"`
	RepoID          string    `json:"repo_id"           db:"repo_id"`
	Title           string    `json:"title"             db:"title"`
	Description     string    `json:"description"       db:"description"`
	CommitSHA       string    `json:"commit_sha"        db:"commit_sha"`
	MilestoneDate   time.Time `json:"milestone_date"    db:"milestone_date"`
	XPostSuggestion string    `json:"x_post_suggestion" db:"x_post_suggestion"`
	Source          string    `json:"source"            db:"source"` // quick, timeline, workflow
	CreatedAt       time.Time `json:"created_at"        db:"created_at"`
}

// Milestone source tags. A full analysis run replaces all prior milestones
// carrying the same source tag for the repository (replace-not-merge).
const (
	MilestoneSourceQuick    = "quick"
	MilestoneSourceTimeline = "timeline"
	MilestoneSourceWorkflow = "workflow"
)

// AnalysisRun summarizes one completed analysis for the response payload.
type AnalysisRun struct {
	RepoID           string `json:"repo_id"`
	Source           string `json:"source"`
	CommitsFetched   int    `json:"commits_fetched"`
	CommitsAnalyzed  int    `json:"commits_analyzed"`
	MilestonesFound  int    `json:"milestones_found"`
	CreditsRemaining int    `json:"credits_remaining"`
}
