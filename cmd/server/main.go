// Package main is the entrypoint for the jobscout server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jobscoutdev/jobscout/internal/api"
	"github.com/jobscoutdev/jobscout/internal/api/handler"
	mw "github.com/jobscoutdev/jobscout/internal/api/middleware"
	"github.com/jobscoutdev/jobscout/internal/api/response"
	"github.com/jobscoutdev/jobscout/internal/cache"
	"github.com/jobscoutdev/jobscout/internal/config"
	"github.com/jobscoutdev/jobscout/internal/discovery"
	"github.com/jobscoutdev/jobscout/internal/fetch"
	"github.com/jobscoutdev/jobscout/internal/pipeline"
	"github.com/jobscoutdev/jobscout/internal/schedule"
	"github.com/jobscoutdev/jobscout/internal/scrape"
	"github.com/jobscoutdev/jobscout/internal/search"
	"github.com/jobscoutdev/jobscout/internal/store"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

const shutdownTimeout = 30 * time.Second

const (
	fetchTimeout  = 20 * time.Second
	renderTimeout = 45 * time.Second
	hostReqPerSec = 1.0
	hostBurst     = 2
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "queries", len(cfg.Scraper.Queries))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store, seed the admin key
	pgStore := store.NewPostgresStore(pool)

	if err := bootstrapAdminKey(ctx, pgStore, cfg.Server.AdminAPIKey); err != nil {
		return fmt.Errorf("bootstrap admin key: %w", err)
	}

	// 6. Build the pipeline: search -> discovery -> scrape -> reconcile
	engine := search.NewEngine(searchSources(cfg.Search), redisCache, cfg.Search.CacheTTL)
	discoverer := discovery.New(engine)

	limiter := fetch.NewHostLimiter(hostReqPerSec, hostBurst)
	client := fetch.NewClient(fetchTimeout, limiter)
	renderer := fetch.NewChromeRenderer(cfg.Scraper.Headless, renderTimeout)
	scraper := scrape.New(client, renderer)

	coordinator := pipeline.NewCoordinator(pgStore, discoverer, scraper, cfg.Scraper)
	go coordinator.Run(ctx)

	scheduler := schedule.New(pgStore, cfg.Scraper.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),

		HealthHandler:     healthHandler(pgStore, redisCache),
		ListRunsHandler:   handler.NewListRunsHandler(pgStore),
		GetRunHandler:     handler.NewGetRunHandler(pgStore),
		TriggerRunHandler: handler.NewTriggerRunHandler(pgStore),
	}
	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// searchSources builds one client per search provider with credentials.
// Discovery still works with an empty set; it just finds nothing.
func searchSources(cfg config.SearchConfig) []search.Source {
	var sources []search.Source
	if cfg.GoogleAPIKey != "" && cfg.GoogleEngineID != "" {
		sources = append(sources, search.NewGoogleClient(cfg.GoogleAPIKey, cfg.GoogleEngineID, cfg.Timeout))
	}
	if cfg.BingAPIKey != "" {
		sources = append(sources, search.NewBingClient(cfg.BingAPIKey, cfg.Timeout))
	}
	if cfg.SerpAPIKey != "" {
		sources = append(sources, search.NewSerpAPIClient(cfg.SerpAPIKey, cfg.Timeout))
	}
	if len(sources) == 0 {
		slog.Warn("no search source credentials configured, discovery is disabled")
	}
	return sources
}

// bootstrapAdminKey stores the hash of ADMIN_API_KEY under the fixed name
// "admin" so run triggering works without a key-provisioning step. Restarting
// with a new value rotates the stored hash.
func bootstrapAdminKey(ctx context.Context, s store.Store, rawKey string) error {
	if rawKey == "" {
		return nil
	}

	prefix, err := mw.KeyPrefix(rawKey)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin key: %w", err)
	}

	if err := s.UpsertAPIKey(ctx, &models.APIKey{
		ID:        uuid.New(),
		Name:      "admin",
		KeyHash:   string(hash),
		KeyPrefix: prefix,
	}); err != nil {
		return err
	}

	slog.Info("admin api key bootstrapped", "prefix", prefix)
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
