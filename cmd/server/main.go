package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/DukeRupert/taqa/internal"
	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/handler"
	"github.com/DukeRupert/taqa/internal/metrics"
	"github.com/DukeRupert/taqa/internal/middleware"
	"github.com/DukeRupert/taqa/internal/repository"
	"github.com/DukeRupert/taqa/internal/service"
	"github.com/DukeRupert/taqa/internal/storage"
	"github.com/DukeRupert/taqa/web"
)

// draftSweepInterval is how often expired wizard drafts are purged.
const draftSweepInterval = time.Hour

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	isDev := cfg.Env == "development"
	isSecure := !isDev

	// Wizard draft store; Postgres only when configured
	var db *sql.DB
	if cfg.WizardStore == "postgres" {
		db, err = sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		if err := internal.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")
	}

	store, err := repository.NewWizardStore(cfg.WizardStore, db)
	if err != nil {
		return fmt.Errorf("wizard store initialization failed: %w", err)
	}
	logger.Info("Wizard store ready", "kind", cfg.WizardStore)

	// Archive for accepted import files
	var archive storage.Storage
	if cfg.ImportArchiveEnabled {
		archive, err = storage.New(storage.Config{
			Provider: cfg.StorageProvider,
			Local:    storage.LocalConfig{BasePath: cfg.LocalStoragePath},
			R2: storage.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretAccessKey,
				BucketName:      cfg.R2BucketName,
				Endpoint:        cfg.R2Endpoint,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		logger.Info("Import archive enabled", "provider", cfg.StorageProvider)
	}

	// Backend REST API
	backend := api.New(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, logger)

	// Initialize template renderer
	rendererCfg := handler.RendererConfig{Logger: logger, IsDev: isDev}
	if isDev {
		rendererCfg.TemplatesDir = "web/templates"
	} else {
		rendererCfg.FS = web.Templates()
	}
	renderer, err := handler.NewRenderer(rendererCfg)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize services
	authService := service.NewAuthService(backend, service.AuthServiceConfig{JWTSecret: cfg.SessionJWTSecret}, logger)
	directoryService := service.NewDirectoryService(backend, logger)
	onboardingService := service.NewOnboardingService(store, backend, logger)
	importService := service.NewImportService(backend, archive, service.ImportConfig{ArchiveEnabled: cfg.ImportArchiveEnabled}, logger)

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, logger, isSecure)
	loginLimit, stopLoginLimit := middleware.NewLoginRateLimit(middleware.LoginRateLimitConfig{
		MaxAttempts: cfg.LoginRateLimit,
		Window:      cfg.LoginRateWindow,
	}, logger)
	defer stopLoginLimit()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, renderer, logger, isSecure)
	onboardingHandler := handler.NewOnboardingHandler(onboardingService, directoryService, renderer, logger, isSecure, cfg.RedirectDelay)
	importHandler := handler.NewImportHandler(importService, directoryService, renderer, logger, isSecure, cfg.RedirectDelay)
	customerHandler := handler.NewCustomerHandler(directoryService, renderer, logger, isSecure, cfg.RedirectDelay)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	var staticFS fs.FS = web.Static()
	if isDev {
		staticFS = os.DirFS("web/static")
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", middleware.NewMetricsHandler(cfg.MetricsUsername, cfg.MetricsPassword, logger))

	// The back office starts at the wizard
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, handler.DefaultLandingPath, http.StatusSeeOther)
	})

	// Auth routes (public - no auth required)
	authHandler.RegisterRoutes(mux, loginLimit)

	// Protected routes
	onboardingHandler.RegisterRoutes(mux, authMw.RequireUser)
	importHandler.RegisterRoutes(mux, authMw.RequireUser)
	customerHandler.RegisterRoutes(mux, authMw.RequireUser)

	// Every request passes through these, outermost first
	stack := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.Recover(logger),
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		middleware.NewCSRFMiddleware(logger, isSecure).Handler,
		authMw.WithUser,
	)

	// ==========================================================================
	// Background sweep of abandoned drafts
	// ==========================================================================

	go sweepDrafts(ctx, onboardingService, cfg.WizardTTL, logger)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// The backend call timeout bounds handlers; leave room for the
		// interstitial render after it.
		WriteTimeout: cfg.APITimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// sweepDrafts purges wizard drafts untouched for longer than ttl until ctx
// is cancelled.
func sweepDrafts(ctx context.Context, onboarding service.OnboardingService, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(draftSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := onboarding.PurgeExpired(ctx, ttl)
			if err != nil {
				logger.Error("draft sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired drafts purged", "count", n)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
