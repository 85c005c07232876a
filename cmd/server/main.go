package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/sumgit/sumgit/internal/adapter/ai"
	"github.com/sumgit/sumgit/internal/adapter/auth"
	"github.com/sumgit/sumgit/internal/adapter/browser"
	"github.com/sumgit/sumgit/internal/adapter/githost"
	"github.com/sumgit/sumgit/internal/adapter/store"
	"github.com/sumgit/sumgit/internal/analysis"
	"github.com/sumgit/sumgit/internal/handler"
	"github.com/sumgit/sumgit/internal/middleware"
	"github.com/sumgit/sumgit/internal/port"
	"github.com/sumgit/sumgit/internal/service"
	"github.com/sumgit/sumgit/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting SumGit",
		"port", cfg.Port,
		"model", cfg.OpenAIModel,
		"screenshots", cfg.BrowserAPIURL != "",
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// ── Adapters ─────────────────────────────────────────────────────────
	githubAuth := auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL)
	providers := port.AuthProviderRegistry{
		"github": githubAuth,
	}

	llm := ai.NewOpenAIClient(ai.OpenAIConfig{
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		APIKey:  cfg.OpenAIKey,
		Timeout: cfg.LLMTimeout,
	})

	var capturer port.ScreenshotCapturer
	if cfg.BrowserAPIURL != "" {
		capturer = browser.NewRemoteCapturer(cfg.BrowserAPIURL, cfg.BrowserAPIToken)
	}

	// ── Analysis pipeline ────────────────────────────────────────────────
	payloadCfg := analysis.PayloadConfig{
		MaxBytes:         cfg.PayloadMaxBytes,
		DiffSegmentBytes: cfg.DiffSegmentBytes,
		MaxCandidates:    cfg.MaxCandidates,
	}

	fetcherCfg := analysis.FetcherConfig{
		MaxPages:        cfg.MaxCommitPages,
		DiffEnrichLimit: cfg.DiffEnrichLimit,
		DiffBudgetBytes: cfg.DiffBudgetBytes,
		// Commit listing plus per-commit diff enrichment must fit the
		// per-run budget.
		CallBudget: cfg.MaxCommitPages + cfg.DiffEnrichLimit + 10,
	}

	// Each run gets its own host client: the stored user token when one
	// exists, the server-wide token otherwise, and a fresh call budget.
	newFetcher := service.FetcherFactory(func(token string) *analysis.Fetcher {
		if token == "" {
			token = cfg.GitHubToken
		}
		return analysis.NewFetcher(githost.NewGitHubHost(token), fetcherCfg)
	})
	extractor := analysis.NewExtractor(llm, cfg.LLMTimeout)
	chunker := analysis.NewChunker(extractor, analysis.ChunkerConfig{
		Payload:    payloadCfg,
		ChunkDelay: cfg.ChunkDelay,
	})
	workflow := analysis.NewWorkflow(llm, capturer, payloadCfg, cfg.LLMTimeout)

	// ── Services ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(providers, pgStore, cfg)
	creditService := service.NewCreditService(pgStore)
	analysisService := service.NewAnalysisService(
		pgStore, newFetcher, authService, extractor, chunker, creditService,
		payloadCfg,
		analysis.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: time.Second},
	)
	workflowService := service.NewWorkflowService(pgStore, newFetcher, authService, workflow, creditService)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// ── Public Routes ────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authService, cfg.FrontendURL)
	authHandler.Register(app)

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	jobTracker := handler.NewJobTracker()

	repoHandler := handler.NewRepoHandler(pgStore)
	repoHandler.Register(api)

	analysisHandler := handler.NewAnalysisHandler(analysisService, workflowService, jobTracker)
	analysisHandler.Register(api)

	milestonesHandler := handler.NewMilestonesHandler(analysisService)
	milestonesHandler.Register(api)

	creditsHandler := handler.NewCreditsHandler(creditService)
	creditsHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
