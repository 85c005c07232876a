package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/middleware"
	"github.com/sumgit/sumgit/internal/service"
)

// CreditsHandler handles credit balance and grant endpoints.
type CreditsHandler struct {
	credits *service.CreditService
}

// NewCreditsHandler creates a new credits handler.
func NewCreditsHandler(credits *service.CreditService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

// Register sets up credit routes.
func (h *CreditsHandler) Register(router fiber.Router) {
	credits := router.Group("/credits")
	credits.Get("/balance", h.GetBalance)
	credits.Get("/transactions", h.ListTransactions)
	credits.Post("/grant", h.Grant)
}

// GetBalance returns the authenticated user's credit balance.
func (h *CreditsHandler) GetBalance(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	balance, err := h.credits.Balance(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load balance"})
	}
	return c.JSON(balance)
}

// ListTransactions returns the user's recent credit journal.
func (h *CreditsHandler) ListTransactions(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	txs, err := h.credits.Transactions(c.Context(), uc.UserID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list transactions"})
	}
	return c.JSON(fiber.Map{"transactions": txs, "count": len(txs)})
}

// Grant adds credits to a user. Admin only — the payment provider's
// webhook glue calls the same store operation out-of-band.
func (h *CreditsHandler) Grant(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if uc.Role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	var body struct {
		UserID      string `json:"user_id"`
		Amount      int    `json:"amount"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.UserID == "" || body.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and a positive amount are required"})
	}

	txType := body.Type
	if txType == "" {
		txType = domain.CreditTxAdmin
	}

	balance, err := h.credits.Grant(c.Context(), body.UserID, body.Amount, txType, "admin_grant", body.Description)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not grant credits"})
	}
	return c.JSON(fiber.Map{"balance": balance})
}
