package bootstrap

import (
	"context"

	"mnemosyne/internal/adapters/config"
	errnoop "mnemosyne/internal/adapters/errors/noop"
	"mnemosyne/internal/adapters/errors/sentry"
	"mnemosyne/internal/adapters/objectstore"
	pgclient "mnemosyne/internal/adapters/postgres"
	redisclient "mnemosyne/internal/adapters/redis"
	"mnemosyne/internal/domain/artifact"
	"mnemosyne/internal/domain/session"
	"mnemosyne/internal/metrics"
	memoryrepo "mnemosyne/internal/repository/memory"
	objectstorerepo "mnemosyne/internal/repository/objectstore"
	postgresrepo "mnemosyne/internal/repository/postgres"
	redisrepo "mnemosyne/internal/repository/redis"
	"mnemosyne/pkg/errors"
	"mnemosyne/pkg/logger"
)

// SessionBackend selects which backend the session store runs on.
type SessionBackend string

const (
	SessionBackendMemory   SessionBackend = "memory"
	SessionBackendPostgres SessionBackend = "postgres"
	SessionBackendRedis    SessionBackend = "redis"
)

// ArtifactBackend selects which backend the artifact store runs on.
type ArtifactBackend string

const (
	ArtifactBackendMemory      ArtifactBackend = "memory"
	ArtifactBackendObjectStore ArtifactBackend = "objectstore"
)

// Options selects the backends for a container.
type Options struct {
	SessionBackend  SessionBackend
	ArtifactBackend ArtifactBackend
}

// Container holds the storage engine's dependencies in initialization
// order: configuration and logging first, backend clients next, then the
// repositories and the services built on top of them.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	PG          *pgclient.Client
	Redis       *redisclient.Client
	ObjectStore *objectstore.Client

	Sessions  *session.Service
	Artifacts *artifact.Service
}

// NewFromEnv loads configuration from the environment and builds a
// container from it.
func NewFromEnv(ctx context.Context, opts Options) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts)
}

// New builds a fully wired container. Only the clients needed by the
// selected backends are opened.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return nil, errors.Wrap(err, "failed to init logger")
	}

	c := &Container{
		Config:       cfg,
		Log:          logger.Get().With("component", "bootstrap"),
		ErrorTracker: newErrorTracker(cfg),
	}
	logger.SetErrorTracker(c.ErrorTracker)
	metrics.Register()

	sessionRepo, err := c.newSessionRepository(cfg, opts.SessionBackend)
	if err != nil {
		return nil, err
	}
	artifactRepo, err := c.newArtifactRepository(ctx, cfg, opts.ArtifactBackend)
	if err != nil {
		return nil, err
	}

	c.Sessions = session.NewService(sessionRepo)
	c.Artifacts = artifact.NewService(artifactRepo)

	c.Log.Infof("Storage engine ready: sessions=%s artifacts=%s", opts.SessionBackend, opts.ArtifactBackend)
	return c, nil
}

func (c *Container) newSessionRepository(cfg *config.Config, backend SessionBackend) (session.Repository, error) {
	switch backend {
	case SessionBackendPostgres:
		pg, err := pgclient.NewClient(cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect postgres")
		}
		c.PG = pg
		return postgresrepo.NewSessionRepository(pg.DB()), nil

	case SessionBackendRedis:
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect redis")
		}
		c.Redis = rc
		return redisrepo.NewSessionRepository(rc.Client()), nil

	default:
		return memoryrepo.NewSessionRepository(), nil
	}
}

func (c *Container) newArtifactRepository(ctx context.Context, cfg *config.Config, backend ArtifactBackend) (artifact.Repository, error) {
	switch backend {
	case ArtifactBackendObjectStore:
		client, err := objectstore.NewClient(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect object store")
		}
		c.ObjectStore = client
		return objectstorerepo.NewArtifactRepository(client.Minio(), client.Bucket()), nil

	default:
		return memoryrepo.NewArtifactRepository(), nil
	}
}

// Close releases the backend clients the container opened.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return err
		}
	}
	if c.PG != nil {
		if err := c.PG.Close(); err != nil {
			return err
		}
	}
	return nil
}

func newErrorTracker(cfg *config.Config) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		logger.Get().Warnf("Failed to init sentry tracker, falling back to noop: %v", err)
		return errnoop.New()
	}
	return tracker
}
