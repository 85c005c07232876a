package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sumgit/sumgit/internal/analysis"
	"github.com/sumgit/sumgit/internal/domain"
)

// WorkflowService runs the multi-agent pipeline as a paid operation and
// persists its milestones under the workflow source tag.
type WorkflowService struct {
	store      AnalysisStore
	newFetcher FetcherFactory
	tokens     TokenSource
	workflow   *analysis.Workflow
	credits    *CreditService
}

// NewWorkflowService creates the workflow orchestrator.
func NewWorkflowService(store AnalysisStore, newFetcher FetcherFactory, tokens TokenSource, workflow *analysis.Workflow, credits *CreditService) *WorkflowService {
	return &WorkflowService{store: store, newFetcher: newFetcher, tokens: tokens, workflow: workflow, credits: credits}
}

// Run executes the workflow for a repo the user owns. onState, when
// non-nil, observes stage transitions for progress reporting.
func (s *WorkflowService) Run(ctx context.Context, userID, repoID string, onState func(domain.WorkflowState)) (*domain.WorkflowResult, int, error) {
	repo, err := loadOwnedRepo(ctx, s.store, userID, repoID)
	if err != nil {
		return nil, 0, err
	}

	var result *domain.WorkflowResult

	balance, err := s.credits.WithCredits(ctx, userID, domain.OperationStoryAnalysis, func(ctx context.Context) error {
		fetcher := s.newFetcher(s.tokens.UserToken(ctx, userID))
		commits, err := fetcher.Fetch(ctx, repo.Owner, repo.Name, true)
		if err != nil {
			return err
		}

		result, err = s.workflow.Run(ctx, repo.FullName(), commits, repo.SiteURL, onState)
		if err != nil {
			return err
		}

		dates := make(map[string]time.Time, len(commits))
		for _, c := range commits {
			dates[c.SHA] = c.Date
		}

		milestones := make([]domain.Milestone, 0, len(result.Milestones))
		for _, m := range result.Milestones {
			sha := m.CommitSHA
			date, ok := dates[sha]
			if !ok {
				// Invented shas are not stored.
				sha = ""
				date = time.Now().UTC()
			}
			milestones = append(milestones, domain.Milestone{
				RepoID:          repo.ID,
				Title:           truncate(m.Title, 60),
				Description:     m.Description,
				CommitSHA:       sha,
				MilestoneDate:   date,
				XPostSuggestion: truncate(m.XPostSuggestion, 280),
				Source:          domain.MilestoneSourceWorkflow,
			})
		}
		if err := s.store.ReplaceMilestones(ctx, repo.ID, domain.MilestoneSourceWorkflow, milestones); err != nil {
			return fmt.Errorf("persist workflow milestones: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, balance, err
	}

	slog.Info("workflow run complete",
		"repo", repo.FullName(),
		"classified", result.CommitsClassified,
		"milestones", len(result.Milestones),
		"screenshots", result.ScreenshotsCaptured)
	return result, balance, nil
}
