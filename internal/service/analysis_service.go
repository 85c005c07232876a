package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sumgit/sumgit/internal/analysis"
	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

// AnalysisStore is the slice of the persistent store analysis runs need.
type AnalysisStore interface {
	GetRepoByID(ctx context.Context, repoID string) (*domain.Repo, error)
	UpdateRepoStatus(ctx context.Context, id, status string) error
	ReplaceMilestones(ctx context.Context, repoID, source string, milestones []domain.Milestone) error
	ListMilestones(ctx context.Context, repoID, source string) ([]domain.Milestone, error)
}

// TokenSource resolves the host access token to use on a user's behalf,
// empty when the user has none stored.
type TokenSource interface {
	UserToken(ctx context.Context, userID string) string
}

// FetcherFactory builds a commit fetcher authenticated with the given
// token. A fresh fetcher per run keeps host credentials and the outbound
// call budget scoped to that run.
type FetcherFactory func(token string) *analysis.Fetcher

// AnalysisService orchestrates the commit-to-milestone pipeline: fetch,
// shape, extract, persist — the whole run bracketed by the credit ledger.
type AnalysisService struct {
	store      AnalysisStore
	newFetcher FetcherFactory
	tokens     TokenSource
	extractor  *analysis.Extractor
	chunker    *analysis.Chunker
	credits    *CreditService

	payloadCfg analysis.PayloadConfig
	retryCfg   analysis.RetryConfig
}

// NewAnalysisService creates the pipeline orchestrator.
func NewAnalysisService(
	store AnalysisStore,
	newFetcher FetcherFactory,
	tokens TokenSource,
	extractor *analysis.Extractor,
	chunker *analysis.Chunker,
	credits *CreditService,
	payloadCfg analysis.PayloadConfig,
	retryCfg analysis.RetryConfig,
) *AnalysisService {
	return &AnalysisService{
		store:      store,
		newFetcher: newFetcher,
		tokens:     tokens,
		extractor:  extractor,
		chunker:    chunker,
		credits:    credits,
		payloadCfg: payloadCfg,
		retryCfg:   retryCfg,
	}
}

// QuickAnalysis runs the single-call analysis: recent history, diff
// enrichment, one retried extraction over one bounded payload.
func (s *AnalysisService) QuickAnalysis(ctx context.Context, userID, repoID string) (*domain.AnalysisRun, error) {
	return s.runPaid(ctx, userID, repoID, domain.OperationQuickAnalysis, domain.MilestoneSourceQuick,
		func(ctx context.Context, repo *domain.Repo) (int, int, []domain.Milestone, error) {
			fetcher := s.newFetcher(s.tokens.UserToken(ctx, userID))
			commits, err := fetcher.Fetch(ctx, repo.Owner, repo.Name, true)
			if err != nil {
				return 0, 0, nil, err
			}
			if len(commits) == 0 {
				return 0, 0, nil, nil
			}
			sortChronological(commits)

			built := analysis.BuildPayload(commits, s.payloadCfg)
			if built.Text == "" {
				return len(commits), 0, nil, nil
			}
			if built.Excluded > 0 {
				slog.Info("payload truncated", "repo", repo.FullName(), "excluded", built.Excluded)
			}

			extracted, err := analysis.WithRetry(ctx, s.retryCfg,
				func(ctx context.Context) ([]analysis.ExtractedMilestone, error) {
					return s.extractor.Extract(ctx, repo.FullName(), built.Text)
				})
			if err != nil {
				return len(commits), built.Included, nil, err
			}

			milestones := toMilestones(repo.ID, domain.MilestoneSourceQuick, extracted, commits)
			return len(commits), built.Included, milestones, nil
		})
}

// TimelineAnalysis runs the chunked analysis: full history sliced by
// calendar month, partial chunk failures tolerated.
func (s *AnalysisService) TimelineAnalysis(ctx context.Context, userID, repoID string) (*domain.AnalysisRun, error) {
	return s.runPaid(ctx, userID, repoID, domain.OperationTimelineAnalysis, domain.MilestoneSourceTimeline,
		func(ctx context.Context, repo *domain.Repo) (int, int, []domain.Milestone, error) {
			fetcher := s.newFetcher(s.tokens.UserToken(ctx, userID))
			commits, err := fetcher.Fetch(ctx, repo.Owner, repo.Name, false)
			if err != nil {
				return 0, 0, nil, err
			}
			if len(commits) == 0 {
				return 0, 0, nil, nil
			}
			sortChronological(commits)

			extracted, err := s.chunker.Run(ctx, repo.FullName(), commits)
			if err != nil {
				return len(commits), 0, nil, err
			}

			milestones := toMilestones(repo.ID, domain.MilestoneSourceTimeline, extracted, commits)
			return len(commits), len(commits), milestones, nil
		})
}

// Milestones returns a repo's persisted milestones. The repo must belong
// to the requesting user.
func (s *AnalysisService) Milestones(ctx context.Context, userID, repoID, source string) ([]domain.Milestone, error) {
	if _, err := loadOwnedRepo(ctx, s.store, userID, repoID); err != nil {
		return nil, err
	}
	return s.store.ListMilestones(ctx, repoID, source)
}

// loadOwnedRepo resolves a repo and enforces ownership. A repo belonging
// to someone else reads as not found, so repo ids cannot be probed.
func loadOwnedRepo(ctx context.Context, store AnalysisStore, userID, repoID string) (*domain.Repo, error) {
	repo, err := store.GetRepoByID(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("load repo: %w", err)
	}
	if repo.UserID != userID {
		return nil, fmt.Errorf("load repo %s: %w", repoID, port.ErrRepoNotFound)
	}
	return repo, nil
}

// runPaid brackets one analysis run with the credit ledger and persists
// the result. Empty input is not an error — it completes the run with
// zero milestones and no refund.
func (s *AnalysisService) runPaid(
	ctx context.Context,
	userID, repoID string,
	op domain.OperationType,
	source string,
	run func(ctx context.Context, repo *domain.Repo) (fetched, analyzed int, milestones []domain.Milestone, err error),
) (*domain.AnalysisRun, error) {
	repo, err := loadOwnedRepo(ctx, s.store, userID, repoID)
	if err != nil {
		return nil, err
	}

	result := &domain.AnalysisRun{RepoID: repoID, Source: source}

	balance, err := s.credits.WithCredits(ctx, userID, op, func(ctx context.Context) error {
		_ = s.store.UpdateRepoStatus(ctx, repoID, domain.RepoStatusAnalyzing)

		fetched, analyzed, milestones, err := run(ctx, repo)
		if err != nil {
			_ = s.store.UpdateRepoStatus(ctx, repoID, domain.RepoStatusError)
			return err
		}

		if err := s.store.ReplaceMilestones(ctx, repoID, source, milestones); err != nil {
			_ = s.store.UpdateRepoStatus(ctx, repoID, domain.RepoStatusError)
			return fmt.Errorf("persist milestones: %w", err)
		}
		_ = s.store.UpdateRepoStatus(ctx, repoID, domain.RepoStatusConnected)

		result.CommitsFetched = fetched
		result.CommitsAnalyzed = analyzed
		result.MilestonesFound = len(milestones)
		return nil
	})
	result.CreditsRemaining = balance
	if err != nil {
		return nil, err
	}

	slog.Info("analysis run complete",
		"repo", repo.FullName(), "source", source,
		"fetched", result.CommitsFetched, "milestones", result.MilestonesFound)
	return result, nil
}

// toMilestones converts extracted milestones to persistable rows. A
// commit_sha the model invented (absent from the input set) is dropped
// rather than stored; a missing date falls back to processing time.
func toMilestones(repoID, source string, extracted []analysis.ExtractedMilestone, commits []domain.Commit) []domain.Milestone {
	known := make(map[string]domain.Commit, len(commits))
	for _, c := range commits {
		known[c.SHA] = c
	}

	now := time.Now().UTC()
	milestones := make([]domain.Milestone, 0, len(extracted))
	for _, e := range extracted {
		sha := e.CommitSHA
		fallback := now
		if c, ok := known[sha]; ok {
			fallback = c.Date
		} else {
			sha = ""
		}
		milestones = append(milestones, domain.Milestone{
			RepoID:          repoID,
			Title:           truncate(e.Title, 60),
			Description:     e.Description,
			CommitSHA:       sha,
			MilestoneDate:   e.Date(fallback),
			XPostSuggestion: truncate(e.XPostSuggestion, 280),
			Source:          source,
		})
	}
	return milestones
}

func sortChronological(commits []domain.Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.Before(commits[j].Date)
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
