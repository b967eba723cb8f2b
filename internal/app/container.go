package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medfolio/medfolio/internal/entitlement/application"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/medfolio/medfolio/internal/entitlement/infrastructure/connectivity"
	"github.com/medfolio/medfolio/internal/entitlement/infrastructure/persistence"
	"github.com/medfolio/medfolio/internal/entitlement/infrastructure/remote"
	"github.com/medfolio/medfolio/internal/shared/infrastructure/eventbus"
	"github.com/medfolio/medfolio/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies. It is created once at
// process start and passed by reference to collaborators; there is no
// package-level singleton.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database handles
	DB   *sql.DB       // local SQLite store
	Pool *pgxpool.Pool // server-side Postgres store, optional

	// Redis
	RedisClient *redis.Client

	// Collaborators
	StateRepo      domain.StateRepository
	Probe          domain.ConnectivityProbe
	Remote         domain.RemoteSource
	EventPublisher eventbus.Publisher

	// Entitlement core
	SyncCoordinator    *application.SyncCoordinator
	EntitlementService *application.Service

	// Background
	ConnectivityWatcher *connectivity.Watcher
}

// NewContainer creates and wires all dependencies for a connected
// deployment: durable store, remote entitlement source, event broker, and
// connectivity watcher.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	// Durable store: Postgres when configured, on-device SQLite otherwise.
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo := persistence.NewPostgresStateRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate subscription_states: %w", err)
		}
		c.Pool = pool
		c.StateRepo = repo
		logger.Info("connected to PostgreSQL store")
	} else {
		db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		repo, err := persistence.NewSQLiteStateRepository(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		c.DB = db
		c.StateRepo = repo
		logger.Info("opened SQLite store", "path", cfg.SQLitePath)
	}

	// Remote entitlement source (optional in development).
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, running without remote entitlement source", "error", err)
		} else {
			client := redis.NewClient(opt)
			if err := client.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					c.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, running without remote entitlement source", "error", err)
			} else {
				c.RedisClient = client
				c.Remote = remote.NewRedisSource(client)
				logger.Info("connected to Redis entitlement source")
			}
		}
	}

	// Event publisher with noop fallback in development.
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.EventPublisher = publisher
		}
	} else {
		c.EventPublisher = eventbus.NewNoopPublisher(logger)
	}

	c.Probe = connectivity.NewDialProbe(cfg.ProbeAddr, cfg.ConnectivityTimeout, logger)

	coordinatorConfig := application.SyncCoordinatorConfig{
		ConnectivityTimeout:     cfg.ConnectivityTimeout,
		StorageTimeout:          cfg.StorageTimeout,
		RemoteTimeout:           cfg.RemoteTimeout,
		BreakerFailureThreshold: uint32(cfg.BreakerFailureThreshold),
	}
	c.SyncCoordinator = application.NewSyncCoordinator(
		c.StateRepo, c.Probe, c.Remote, c.EventPublisher, coordinatorConfig, logger)
	c.EntitlementService = application.NewService(c.SyncCoordinator, logger)

	c.ConnectivityWatcher = connectivity.NewWatcher(
		c.Probe,
		cfg.WatchInterval,
		func(ctx context.Context) {
			if err := c.EntitlementService.FlushPendingChanges(ctx); err != nil {
				logger.Warn("flush on connectivity regain failed", "error", err)
			}
		},
		logger,
	)

	return c, nil
}

// NewLocalContainer creates a container for zero-config local operation:
// SQLite store, no remote source, no broker. The probe answers connected so
// local mutations commit without a billing backend.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	repo, err := persistence.NewSQLiteStateRepository(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	c.DB = db
	c.StateRepo = repo

	c.Probe = &connectivity.StaticProbe{Connected: true}
	c.EventPublisher = eventbus.NewNoopPublisher(logger)

	coordinatorConfig := application.DefaultSyncCoordinatorConfig()
	coordinatorConfig.StorageTimeout = cfg.StorageTimeout
	c.SyncCoordinator = application.NewSyncCoordinator(
		c.StateRepo, c.Probe, nil, c.EventPublisher, coordinatorConfig, logger)
	c.EntitlementService = application.NewService(c.SyncCoordinator, logger)

	logger.Info("local mode container initialized", "database", cfg.SQLitePath)
	return c, nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.ConnectivityWatcher != nil && c.ConnectivityWatcher.IsRunning() {
		c.ConnectivityWatcher.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.Pool != nil {
		c.Pool.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		}
	}
}
