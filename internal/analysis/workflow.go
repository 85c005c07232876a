package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

// maxScreenshotCaptures bounds the capture stage to respect automation cost.
const maxScreenshotCaptures = 2

// Workflow is the multi-agent analysis pipeline: classify every commit,
// synthesize milestones from the classification, then optionally capture
// screenshots for visually demonstrable features. A Workflow holds no
// per-run state and is safe for concurrent runs.
type Workflow struct {
	llm      port.LLMClient
	capturer port.ScreenshotCapturer // nil disables the capture stage
	payload  PayloadConfig
	timeout  time.Duration
}

// NewWorkflow creates a workflow over the given LLM and optional capturer.
func NewWorkflow(llm port.LLMClient, capturer port.ScreenshotCapturer, payload PayloadConfig, timeout time.Duration) *Workflow {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Workflow{llm: llm, capturer: capturer, payload: payload, timeout: timeout}
}

func notifyState(onState func(domain.WorkflowState), state domain.WorkflowState) {
	if onState != nil {
		onState(state)
	}
}

// Run executes the full pipeline. onState, when non-nil, observes every
// state transition of this run only. The first two stages are fatal on
// failure; screenshot capture failures only cost that one screenshot.
func (w *Workflow) Run(ctx context.Context, repoName string, commits []domain.Commit, siteURL string, onState func(domain.WorkflowState)) (*domain.WorkflowResult, error) {
	result := &domain.WorkflowResult{
		State:        domain.WorkflowPending,
		TotalCommits: len(commits),
	}

	notifyState(onState, domain.WorkflowAnalyzing)
	result.State = domain.WorkflowAnalyzing
	classified, err := w.classifyCommits(ctx, repoName, commits)
	if err != nil {
		result.State = domain.WorkflowFailed
		notifyState(onState, domain.WorkflowFailed)
		return result, fmt.Errorf("classify commits: %w", err)
	}
	result.CommitsClassified = len(classified)

	notifyState(onState, domain.WorkflowFindingStones)
	result.State = domain.WorkflowFindingStones
	milestones, err := w.findMilestones(ctx, repoName, classified)
	if err != nil {
		result.State = domain.WorkflowFailed
		notifyState(onState, domain.WorkflowFailed)
		return result, fmt.Errorf("find milestones: %w", err)
	}
	result.Milestones = milestones

	if w.shouldCapture(milestones, siteURL) {
		notifyState(onState, domain.WorkflowCapturingShots)
		result.State = domain.WorkflowCapturingShots
		result.ScreenshotsCaptured = w.captureScreenshots(ctx, result.Milestones, siteURL)
	}

	result.State = domain.WorkflowDone
	notifyState(onState, domain.WorkflowDone)
	return result, nil
}

// classifyCommits runs the whole batch through one structured call.
func (w *Workflow) classifyCommits(ctx context.Context, repoName string, commits []domain.Commit) ([]domain.ClassifiedCommit, error) {
	built := BuildPayload(commits, w.payload)
	if built.Text == "" {
		return nil, nil
	}

	content, err := w.llm.Complete(ctx, port.CompletionRequest{
		SystemPrompt: classifierSystemPrompt,
		UserMessage:  classifierUserMessage(repoName, built.Text),
		JSONResponse: true,
		Timeout:      w.timeout,
	})
	if err != nil {
		return nil, Classify(err)
	}

	var parsed struct {
		Commits []struct {
			SHA          string `json:"sha"`
			ChangeType   string `json:"change_type"`
			Significance int    `json:"significance"`
		} `json:"commits"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, port.NewPipelineError(port.KindClientError,
			"model returned malformed classification JSON", err)
	}

	bySHA := make(map[string]domain.Commit, len(commits))
	for _, c := range commits {
		bySHA[c.SHA] = c
	}

	var classified []domain.ClassifiedCommit
	for _, entry := range parsed.Commits {
		commit, ok := bySHA[entry.SHA]
		if !ok {
			continue // hallucinated sha
		}
		classified = append(classified, domain.ClassifiedCommit{
			Commit:       commit,
			ChangeType:   normalizeChangeType(entry.ChangeType),
			Significance: clampSignificance(entry.Significance),
		})
	}
	return classified, nil
}

// findMilestones feeds the classified commits, most significant first, to
// the synthesizer.
func (w *Workflow) findMilestones(ctx context.Context, repoName string, classified []domain.ClassifiedCommit) ([]domain.WorkflowMilestone, error) {
	if len(classified) == 0 {
		return nil, nil
	}

	sorted := make([]domain.ClassifiedCommit, len(classified))
	copy(sorted, classified)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Significance > sorted[j].Significance
	})

	var b strings.Builder
	for _, c := range sorted {
		fmt.Fprintf(&b, "[%s] %s (%s, significance %d): %s\n",
			c.Date.UTC().Format("2006-01-02"), c.ShortSHA(), c.ChangeType, c.Significance, c.Message)
	}

	content, err := w.llm.Complete(ctx, port.CompletionRequest{
		SystemPrompt: synthesizerSystemPrompt,
		UserMessage:  synthesizerUserMessage(repoName, b.String()),
		JSONResponse: true,
		Timeout:      w.timeout,
	})
	if err != nil {
		return nil, Classify(err)
	}

	var parsed struct {
		Milestones []struct {
			Title           string `json:"title"`
			Description     string `json:"description"`
			CommitSHA       string `json:"commit_sha"`
			ChangeType      string `json:"change_type"`
			Demonstrable    bool   `json:"visually_demonstrable"`
			XPostSuggestion string `json:"x_post_suggestion"`
		} `json:"milestones"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, port.NewPipelineError(port.KindClientError,
			"model returned malformed milestone JSON", err)
	}

	milestones := make([]domain.WorkflowMilestone, 0, len(parsed.Milestones))
	for _, m := range parsed.Milestones {
		milestones = append(milestones, domain.WorkflowMilestone{
			Title:           m.Title,
			Description:     m.Description,
			CommitSHA:       m.CommitSHA,
			ChangeType:      normalizeChangeType(m.ChangeType),
			Demonstrable:    m.Demonstrable,
			XPostSuggestion: m.XPostSuggestion,
		})
	}
	return milestones, nil
}

// shouldCapture gates the screenshot stage: a capturer, a target URL, and
// at least one visually demonstrable feature milestone must all exist.
func (w *Workflow) shouldCapture(milestones []domain.WorkflowMilestone, siteURL string) bool {
	if w.capturer == nil || siteURL == "" {
		return false
	}
	for _, m := range milestones {
		if m.Demonstrable && m.ChangeType == domain.ChangeFeature {
			return true
		}
	}
	return false
}

// captureScreenshots takes screenshots for up to maxScreenshotCaptures
// demonstrable feature milestones. Per-milestone failures are non-fatal.
func (w *Workflow) captureScreenshots(ctx context.Context, milestones []domain.WorkflowMilestone, siteURL string) int {
	if err := w.capturer.Initialize(ctx, siteURL); err != nil {
		slog.Warn("screenshot session init failed, skipping captures", "error", err)
		return 0
	}
	defer func() {
		if err := w.capturer.Cleanup(ctx); err != nil {
			slog.Debug("screenshot cleanup failed", "error", err)
		}
	}()

	captured := 0
	for i := range milestones {
		if captured >= maxScreenshotCaptures {
			break
		}
		if !milestones[i].Demonstrable || milestones[i].ChangeType != domain.ChangeFeature {
			continue
		}
		shot, err := w.capturer.Screenshot(ctx)
		if err != nil {
			slog.Warn("screenshot failed for milestone, continuing",
				"title", milestones[i].Title, "error", err)
			continue
		}
		milestones[i].Screenshot = shot
		milestones[i].ScreenshotTaken = true
		captured++
	}
	return captured
}

func normalizeChangeType(s string) domain.ChangeType {
	switch domain.ChangeType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.ChangeFeature:
		return domain.ChangeFeature
	case domain.ChangeBugfix:
		return domain.ChangeBugfix
	case domain.ChangeRefactor:
		return domain.ChangeRefactor
	case domain.ChangeDocs:
		return domain.ChangeDocs
	case domain.ChangeConfig:
		return domain.ChangeConfig
	}
	return domain.ChangeOther
}

func clampSignificance(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
