package domain

import "time"

// Commit is one VCS revision under analysis. Commits are built from the
// GitHub API pages and are never persisted — only derived Milestones are.
type Commit struct {
	SHA          string    `json:"sha"`
	Message      string    `json:"message"` // first line of the commit message
	Date         time.Time `json:"date"`    // author date
	Author       string    `json:"author"`
	FilesChanged int       `json:"files_changed,omitempty"`
	Additions    int       `json:"additions,omitempty"`
	Deletions    int       `json:"deletions,omitempty"`
	Diff         string    `json:"diff,omitempty"` // truncated unified diff, set only when enrichment ran
}

// ShortSHA returns the conventional 7-character abbreviation.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// HasDiff reports whether diff enrichment ran for this commit.
func (c Commit) HasDiff() bool {
	return c.Diff != ""
}

// Impact scores a commit by the size of its change. Commits without
// enrichment data score zero.
func (c Commit) Impact() int {
	return c.FilesChanged + c.Additions + c.Deletions
}

// ChunkKey returns the calendar-month partition key (YYYY-MM) used to
// bound a single LLM call's input size.
func (c Commit) ChunkKey() string {
	return c.Date.UTC().Format("2006-01")
}
