package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/sumgit/sumgit/internal/adapter/store"
	"github.com/sumgit/sumgit/internal/middleware"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store *store.PostgresStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(pgStore *store.PostgresStore) *AuditHandler {
	return &AuditHandler{store: pgStore}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns audit logs with optional filtering. Admin only.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil || uc.Role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list audit logs"})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
