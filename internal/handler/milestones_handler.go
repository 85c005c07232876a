package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/sumgit/sumgit/internal/middleware"
	"github.com/sumgit/sumgit/internal/port"
	"github.com/sumgit/sumgit/internal/service"
)

// MilestonesHandler serves persisted milestones.
type MilestonesHandler struct {
	analysisService *service.AnalysisService
}

// NewMilestonesHandler creates a new milestones handler.
func NewMilestonesHandler(analysisService *service.AnalysisService) *MilestonesHandler {
	return &MilestonesHandler{analysisService: analysisService}
}

// Register sets up milestone routes.
func (h *MilestonesHandler) Register(router fiber.Router) {
	router.Get("/repos/:id/milestones", h.ListMilestones)
}

// ListMilestones returns a repo's milestones, optionally filtered by
// ?source=quick|timeline|workflow.
func (h *MilestonesHandler) ListMilestones(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	milestones, err := h.analysisService.Milestones(c.Context(), uc.UserID, c.Params("id"), c.Query("source"))
	if err != nil {
		if errors.Is(err, port.ErrRepoNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list milestones"})
	}
	return c.JSON(fiber.Map{"milestones": milestones, "count": len(milestones)})
}
