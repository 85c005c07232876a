package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/sumgit/sumgit/internal/adapter/store"
	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/middleware"
)

// RepoHandler handles repository registration endpoints.
type RepoHandler struct {
	store *store.PostgresStore
}

// NewRepoHandler creates a new repo handler.
func NewRepoHandler(pgStore *store.PostgresStore) *RepoHandler {
	return &RepoHandler{store: pgStore}
}

// Register sets up repo routes.
func (h *RepoHandler) Register(router fiber.Router) {
	repos := router.Group("/repos")
	repos.Post("/", h.ConnectRepo)
	repos.Get("/", h.ListRepos)
	repos.Get("/:id", h.GetRepo)
}

// ConnectRepo registers a GitHub repository for the authenticated user.
// Accepts either owner/name fields or a combined "full_name".
func (h *RepoHandler) ConnectRepo(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Owner    string `json:"owner"`
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		SiteURL  string `json:"site_url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	owner, name := body.Owner, body.Name
	if body.FullName != "" {
		parts := strings.SplitN(body.FullName, "/", 2)
		if len(parts) == 2 {
			owner, name = parts[0], parts[1]
		}
	}
	if owner == "" || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner and name are required"})
	}

	repo, err := h.store.CreateRepo(c.Context(), &domain.Repo{
		UserID:  uc.UserID,
		Owner:   owner,
		Name:    name,
		SiteURL: body.SiteURL,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not connect repository"})
	}

	return c.Status(fiber.StatusCreated).JSON(repo)
}

// ListRepos returns the authenticated user's connected repositories.
func (h *RepoHandler) ListRepos(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repos, err := h.store.ListReposByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list repositories"})
	}
	return c.JSON(fiber.Map{"repos": repos, "count": len(repos)})
}

// GetRepo returns one connected repository.
func (h *RepoHandler) GetRepo(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.store.GetRepoByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	}
	if repo.UserID != uc.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	return c.JSON(repo)
}
