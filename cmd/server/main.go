// Package main provides the entry point for the account linking server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"finlink/internal/api"
	"finlink/internal/api/middleware"
	"finlink/internal/config"
	"finlink/internal/repository"
	"finlink/internal/services"
)

const version = "1.0.0"

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build dependencies: %w", err)
	}
	defer deps.close()

	deps.reaper.Start(ctx)
	defer deps.reaper.Stop()

	router := setupRouter(cfg, deps, logger)

	server := &http.Server{
		Addr:         ":" + cfg.GetServerPort(),
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr, "environment", cfg.GetEnvironment())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg *config.AppConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.GetLogLevel() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// dependencies holds the wired service graph.
type dependencies struct {
	sessions    repository.SessionRepository
	connections repository.ConnectionRepository
	linking     services.LinkingService
	health      *services.HealthService
	reaper      *services.SessionReaper
	closers     []func() error
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("dependency close failed", "error", err)
		}
	}
}

func buildDependencies(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	// Session store: Redis when configured, in-memory otherwise.
	if addr := cfg.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis is not reachable: %w", err)
		}
		deps.sessions = repository.NewRedisSessionRepository(client)
		deps.closers = append(deps.closers, client.Close)
	} else {
		deps.sessions = repository.NewMemorySessionRepository()
	}

	// Connection store: Postgres when configured, in-memory otherwise.
	if dsn := cfg.GetDatabaseURL(); dsn != "" {
		db, err := repository.OpenPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres is not reachable: %w", err)
		}
		deps.connections = repository.NewPostgresConnectionRepository(db)
		deps.closers = append(deps.closers, db.Close)
	} else {
		deps.connections = repository.NewMemoryConnectionRepository()
	}

	catalog, err := loadTierCatalog(cfg)
	if err != nil {
		return nil, err
	}
	gate := services.NewAdmissionGate(catalog, deps.connections)

	var provider services.ProviderAdapter
	if cfg.UseSandboxProvider() {
		provider = services.NewSandboxProvider()
	} else {
		provider = services.NewHTTPProvider(services.HTTPProviderConfig{
			BaseURL:      cfg.GetProviderBaseURL(),
			ClientID:     cfg.GetProviderClientID(),
			ClientSecret: cfg.GetProviderClientSecret(),
			TokenURL:     cfg.GetProviderTokenURL(),
		})
	}

	cipher, err := services.NewCredentialCipher(cfg.GetCredentialKey())
	if err != nil {
		return nil, fmt.Errorf("invalid credential key: %w", err)
	}

	notifier := services.NewAsyncNotifier(ctx, services.NewLogNotifier(logger), 256, logger)

	deps.linking = services.NewLinkingService(
		deps.sessions,
		deps.connections,
		gate,
		provider,
		cipher,
		notifier,
		cfg.GetSessionTTL(),
		logger,
	)

	deps.reaper = services.NewSessionReaper(deps.sessions, cfg.GetReapInterval(), logger)

	deps.health = services.NewHealthService(version)
	deps.health.RegisterChecker(services.NewSessionStoreChecker(deps.sessions))

	return deps, nil
}

func loadTierCatalog(cfg *config.AppConfig) (repository.TierCatalog, error) {
	if path := cfg.GetTierCatalogPath(); path != "" {
		catalog, err := repository.LoadTierCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load tier catalog: %w", err)
		}
		return catalog, nil
	}
	return repository.NewStaticTierCatalog(), nil
}

// setupRouter configures the Gin router with middleware and routes.
func setupRouter(cfg *config.AppConfig, deps *dependencies, logger *slog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.CorrelationMiddleware())
	router.Use(middleware.DefaultLoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORSMiddleware(nil))

	healthHandler := api.NewHealthHandler(deps.health)
	healthHandler.RegisterRoutes(router)

	auth := middleware.NewAuthMiddleware(cfg.GetJWTSecret())

	linkGroup := router.Group("/api/link")
	linkGroup.Use(auth.RequireAuth())
	linkGroup.Use(middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig()))

	linkingHandler := api.NewLinkingHandler(deps.linking, logger)
	linkingHandler.RegisterRoutes(linkGroup)

	streamHandler := api.NewStatusStreamHandler(deps.linking, logger)
	linkGroup.GET("/sessions/:token/stream", streamHandler.Stream)

	return router
}
