package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/middleware"
	"github.com/sumgit/sumgit/internal/port"
	"github.com/sumgit/sumgit/internal/service"
)

// AnalysisHandler handles analysis endpoints.
type AnalysisHandler struct {
	analysisService *service.AnalysisService
	workflowService *service.WorkflowService
	tracker         *JobTracker
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(analysisService *service.AnalysisService, workflowService *service.WorkflowService, tracker *JobTracker) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		workflowService: workflowService,
		tracker:         tracker,
	}
}

// Register sets up analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	analysis := router.Group("/analysis")
	analysis.Post("/run", h.RunAnalysis)
}

// RunAnalysis accepts a job and returns 202 immediately. The pipeline
// runs in the background; progress streams through the jobs handler.
func (h *AnalysisHandler) RunAnalysis(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		RepoID string `json:"repo_id"`
		Mode   string `json:"mode"` // quick, timeline, story
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.RepoID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "repo_id is required"})
	}

	mode := body.Mode
	if mode == "" {
		mode = "quick"
	}
	switch mode {
	case "quick", "timeline", "story":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown analysis mode"})
	}

	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, body.RepoID, mode)

	// Run in background — no HTTP connection held.
	go h.runJob(jobID, uc.UserID, body.RepoID, mode)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"mode":    mode,
		"message": "analysis started",
	})
}

func (h *AnalysisHandler) runJob(jobID, userID, repoID, mode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	var milestones int
	var err error

	switch mode {
	case "quick":
		h.tracker.UpdateStage(jobID, "analyzing")
		var run *domain.AnalysisRun
		run, err = h.analysisService.QuickAnalysis(ctx, userID, repoID)
		if run != nil {
			milestones = run.MilestonesFound
		}
	case "timeline":
		h.tracker.UpdateStage(jobID, "analyzing")
		var run *domain.AnalysisRun
		run, err = h.analysisService.TimelineAnalysis(ctx, userID, repoID)
		if run != nil {
			milestones = run.MilestonesFound
		}
	case "story":
		var result *domain.WorkflowResult
		result, _, err = h.workflowService.Run(ctx, userID, repoID, func(state domain.WorkflowState) {
			h.tracker.UpdateStage(jobID, string(state))
		})
		if result != nil {
			milestones = len(result.Milestones)
		}
	}

	if err != nil {
		// Internal detail stays in the log; the user sees a classified,
		// generic message.
		slog.Error("analysis job failed", "job_id", jobID, "repo_id", repoID, "mode", mode, "error", err)
		if errors.Is(err, port.ErrRepoNotFound) {
			h.tracker.Fail(jobID, "repository not found")
			return
		}
		h.tracker.Fail(jobID, userSafeMessage(port.KindOf(err)))
		return
	}
	h.tracker.Complete(jobID, milestones)
}

// userSafeMessage maps an error classification to a message appropriate
// for end users. Upstream payloads and stack detail never leave the log.
func userSafeMessage(kind port.ErrorKind) string {
	switch kind {
	case port.KindRetryable, port.KindTimeout, port.KindServerError:
		return "the analysis service is temporarily unavailable — please try again in a few minutes; your credits were not spent"
	case port.KindPayloadTooLarge:
		return "this repository's history is too large for a single analysis — try the timeline mode"
	case port.KindInsufficientCredits:
		return "not enough credits for this analysis"
	case port.KindClientError:
		return "the analysis could not be completed due to a configuration problem — please contact support"
	}
	return "the analysis failed unexpectedly — your credits were refunded"
}
