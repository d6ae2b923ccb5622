// Package setup bootstraps configuration, logging, and the document store
// backend, and bundles them into an App for the entrypoints.
package setup

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/campushub/clubsync/internal/docstore"
	"github.com/campushub/clubsync/internal/docstore/memdoc"
	"github.com/campushub/clubsync/internal/docstore/pgdoc"
	"github.com/campushub/clubsync/internal/docstore/redisdoc"
	"github.com/campushub/clubsync/internal/setup/config"
	"github.com/campushub/clubsync/internal/setup/telemetry"
	"github.com/campushub/clubsync/internal/social"
	"github.com/redis/rueidis"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config      *config.Config     // Application configuration
	Logger      *zap.Logger        // Main application logger
	StoreLogger *zap.Logger        // Store-specific logger
	Social      social.Client      // Models, services, and subscriptions
	LogManager  *telemetry.Manager // Log management system

	redisClient rueidis.Client // Underlying Redis connection, when the redis backend is active
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, componentName, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(logDir, componentName, &cfg.Debug)

	logger, storeLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:      cfg,
		Logger:      logger,
		StoreLogger: storeLogger.Named("store"),
		LogManager:  logManager,
	}

	store, err := app.openStore(ctx, componentName)
	if err != nil {
		return nil, err
	}

	app.Social = social.NewClient(store, &cfg.Social, logger)

	logger.Info("Initialized store backend", zap.String("backend", cfg.Store.Backend))

	return app, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(_ context.Context) {
	if err := s.Social.Close(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}

	if s.redisClient != nil {
		s.redisClient.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.StoreLogger.Sync(); err != nil {
		log.Printf("Failed to sync store logger: %v", err)
	}
}

// openStore builds the configured document store backend.
func (s *App) openStore(ctx context.Context, componentName string) (docstore.Store, error) {
	switch s.Config.Store.Backend {
	case config.BackendMemory:
		return memdoc.New(s.StoreLogger), nil

	case config.BackendRedis:
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{fmt.Sprintf("%s:%d", s.Config.Store.Redis.Host, s.Config.Store.Redis.Port)},
			Username:    s.Config.Store.Redis.Username,
			Password:    s.Config.Store.Redis.Password,
			ClientName:  "clubsync_" + componentName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}

		s.redisClient = client

		return redisdoc.New(client, s.StoreLogger), nil

	case config.BackendPostgres:
		pgCfg := s.Config.Store.PostgreSQL
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithAddr(fmt.Sprintf("%s:%d", pgCfg.Host, pgCfg.Port)),
			pgdriver.WithUser(pgCfg.User),
			pgdriver.WithPassword(pgCfg.Password),
			pgdriver.WithDatabase(pgCfg.DBName),
			pgdriver.WithInsecure(true),
			pgdriver.WithApplicationName("clubsync"),
		))

		db := bun.NewDB(sqldb, pgdialect.New())

		store := pgdoc.New(db, s.StoreLogger)
		if err := store.Setup(ctx); err != nil {
			return nil, err
		}

		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, s.Config.Store.Backend)
	}
}
