package domain

// WorkflowState tracks a multi-agent analysis run through its stages.
type WorkflowState string

const (
	WorkflowPending        WorkflowState = "pending"
	WorkflowAnalyzing      WorkflowState = "analyzing_commits"
	WorkflowFindingStones  WorkflowState = "finding_milestones"
	WorkflowCapturingShots WorkflowState = "capturing_screenshots"
	WorkflowDone           WorkflowState = "done"
	WorkflowFailed         WorkflowState = "failed"
)

// ChangeType classifies a commit's kind of change.
type ChangeType string

const (
	ChangeFeature  ChangeType = "feature"
	ChangeBugfix   ChangeType = "bugfix"
	ChangeRefactor ChangeType = "refactor"
	ChangeDocs     ChangeType = "docs"
	ChangeConfig   ChangeType = "config"
	ChangeOther    ChangeType = "other"
)

// ClassifiedCommit is a commit annotated by the classifier stage.
type ClassifiedCommit struct {
	Commit
	ChangeType   ChangeType `json:"change_type"`
	Significance int        `json:"significance"` // 1-10
}

// WorkflowMilestone is a milestone produced by the synthesizer stage,
// optionally carrying a screenshot from the capture stage.
type WorkflowMilestone struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CommitSHA       string     `json:"commit_sha"`
	ChangeType      ChangeType `json:"change_type"`
	Demonstrable    bool       `json:"visually_demonstrable"`
	XPostSuggestion string     `json:"x_post_suggestion"`
	Screenshot      []byte     `json:"-"`
	ScreenshotTaken bool       `json:"screenshot_taken"`
}

// WorkflowResult aggregates the terminal output of a workflow run.
type WorkflowResult struct {
	State               WorkflowState       `json:"state"`
	TotalCommits        int                 `json:"total_commits"`
	CommitsClassified   int                 `json:"commits_classified"`
	Milestones          []WorkflowMilestone `json:"milestones"`
	ScreenshotsCaptured int                 `json:"screenshots_captured"`
}
