package handler

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofiber/fiber/v3"

	"github.com/sumgit/sumgit/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	frontendURL string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService, frontendURL string) *AuthHandler {
	return &AuthHandler{authService: authService, frontendURL: frontendURL}
}

// Register sets up auth routes.
func (h *AuthHandler) Register(app *fiber.App) {
	auth := app.Group("/api/v1/auth")
	auth.Get("/:provider/login", h.Login)
	auth.Get("/:provider/callback", h.Callback)
}

// Login redirects to the OAuth2 provider's consent screen.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	provider := c.Params("provider")
	state := provider + ":" + generateState()

	authURL, err := h.authService.GetAuthURL(provider, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect().To(authURL)
}

// Callback handles the OAuth2 callback from the provider.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	provider := c.Params("provider")
	code := c.Query("code")

	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing authorization code",
		})
	}

	jwt, user, err := h.authService.HandleCallback(c.Context(), provider, code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "authentication failed",
		})
	}

	redirectURL := h.frontendURL + "/auth/callback?token=" + jwt + "&name=" + user.Name
	return c.Redirect().To(redirectURL)
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
