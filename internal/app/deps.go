package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/circlenet/backend/internal/archive"
	"github.com/circlenet/backend/internal/auth"
	"github.com/circlenet/backend/internal/config"
	"github.com/circlenet/backend/internal/db"
	"github.com/circlenet/backend/internal/directory"
	"github.com/circlenet/backend/internal/friends"
	"github.com/circlenet/backend/internal/handlers"
	"github.com/circlenet/backend/internal/messaging"
	"github.com/circlenet/backend/internal/middleware"
	"github.com/circlenet/backend/internal/repositories"
	"github.com/circlenet/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned exporter is nil unless an archive bucket is
// configured; when non-nil the caller owns its shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *archive.Exporter, error) {
	users := repositories.NewPostgresUserRepository(pool)
	relationships := repositories.NewPostgresRelationshipRepository(pool)
	messages := repositories.NewPostgresMessageRepository(pool)
	interests := repositories.NewPostgresInterestsRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	// The engine and gate read pending-request lists, so they get the raw
	// repository. The messaging path only resolves display identities and
	// can tolerate the cache TTL.
	engine := friends.NewEngine(relationships, users)
	gate := friends.NewGate(relationships, users)
	cachedDirectory := directory.NewCachingDirectory(users, cfg.DirectoryCacheTTL)

	messageService := messaging.NewService(messages, gate, cachedDirectory)

	deps := handlers.Dependencies{
		Users:     users,
		Sessions:  auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Engine:    engine,
		Gate:      gate,
		Lister:    relationships,
		Messages:  messageService,
		Interests: interests,
		Limiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		Directory: cachedDirectory,
	}

	var exporter *archive.Exporter
	if cfg.ObjectStore.Bucket != "" {
		store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		exporter = archive.NewExporter(messages, store, archive.ExporterConfig{
			QueueSize: cfg.ArchiveQueueSize,
			Workers:   cfg.ArchiveWorkers,
		}, logger)
		deps.Archiver = exporter
	}

	return deps, exporter, nil
}
