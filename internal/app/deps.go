package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifeapp/backend/internal/activities"
	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/config"
	"github.com/lifeapp/backend/internal/db"
	"github.com/lifeapp/backend/internal/exports"
	"github.com/lifeapp/backend/internal/friendships"
	"github.com/lifeapp/backend/internal/handlers"
	"github.com/lifeapp/backend/internal/middleware"
	"github.com/lifeapp/backend/internal/repositories"
	"github.com/lifeapp/backend/internal/storage"
)

const (
	authLimiterIdleTTL = 10 * time.Minute
	exportJobTimeout   = 2 * time.Minute
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup function drains background workers and must be called on exit.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	tasks := repositories.NewPostgresTaskRepository(pool)
	preferences := repositories.NewPostgresPreferenceRepository(pool)
	sessions := auth.NewManager(
		auth.NewAccessTokens(cfg.JWTSecret, cfg.AccessTokenTTL),
		cfg.RefreshTokenTTL,
		repositories.NewPostgresSessionStore(pool),
	)
	friends := friendships.NewService(repositories.NewPostgresFriendshipStore(pool), users)
	catalog := activities.NewCachingCatalog(repositories.NewPostgresCatalogRepository(pool), cfg.CatalogCacheTTL)

	deps := handlers.Dependencies{
		Users:       users,
		Sessions:    sessions,
		Friendships: friends,
		Tasks:       tasks,
		Catalog:     catalog,
		Preferences: preferences,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateLimit, authLimiterIdleTTL),
	}
	if checker, ok := pool.(handlers.HealthChecker); ok {
		deps.Database = checker
	}

	var objects exports.ObjectStorage
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure export storage: %w", err)
		}
		objects = s3Storage
		deps.ExportLinks = s3Storage
	} else {
		logger.Warn("export bucket not configured, account exports disabled")
	}

	exporter := exports.NewExporter(
		exports.Sources{Tasks: tasks, Preferences: preferences, Friendships: friends},
		objects,
		exports.Config{
			QueueSize:  cfg.ExportQueueSize,
			Workers:    cfg.ExportWorkers,
			JobTimeout: exportJobTimeout,
			Retention:  cfg.ExportRetention,
		},
		logger.With("component", "exports"),
	)
	deps.Exports = exporter

	return deps, exporter.Shutdown, nil
}
