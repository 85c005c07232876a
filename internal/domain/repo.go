package domain

import (
	"fmt"
	"time"
)

// Repo represents a connected GitHub repository. Commits are read through
// the GitHub API with the owner's installation token — nothing is cloned.
type Repo struct {
	ID        string    `json:"id"          db:"id"`
	UserID    string    `json:"user_id"     db:"user_id"`
	Owner     string    `json:"owner"       db:"owner"`
	Name      string    `json:"name"        db:"name"`
	SiteURL   string    `json:"site_url"    db:"site_url"` // deployed product URL, used by screenshot capture
	Status    string    `json:"status"      db:"status"`   // connected, analyzing, error
	LastRunAt time.Time `json:"last_run_at" db:"last_run_at"` // zero until the first analysis runs
	CreatedAt time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"  db:"updated_at"`
}

// FullName returns the owner/name display form.
func (r Repo) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Repo status constants.
const (
	RepoStatusConnected = "connected"
	RepoStatusAnalyzing = "analyzing"
	RepoStatusError     = "error"
)
