package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/edumanage/edumanage/config"
	"github.com/edumanage/edumanage/internal/adapters/memstore"
	redisadapter "github.com/edumanage/edumanage/internal/adapters/redis"
	"github.com/edumanage/edumanage/internal/data"
	"github.com/edumanage/edumanage/internal/ports"
	"github.com/edumanage/edumanage/internal/service"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Auth        *service.AuthService
	Credentials ports.CredentialStore
	Profiles    ports.ProfileStore
	Sessions    *service.SessionManager
	Navigator   *service.Navigator
}

// ServiceDeps contains external dependencies for service construction.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// NewServices wires the session tiers, credential store, profile store, and
// auth service from their external dependencies.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, fmt.Errorf("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	// Durable tier rides Redis and survives restarts; the ephemeral tier is
	// in-process and dies with it.
	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Durable:   redisadapter.NewSessionStoreWithPrefix(deps.Redis, "session:"),
		Ephemeral: memstore.NewSessionStore(),
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build session manager: %w", err)
	}

	creds, err := BuildCredentialStore(ctx, CredentialConfig{
		Auth:   cfg.Auth,
		Email:  cfg.Email,
		HTTP:   cfg.HTTP,
		IsDev:  cfg.IsDev,
		DB:     deps.DB,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	profiles := data.NewProfileRepo(deps.DB)

	// The server has no page to move; navigation intents land in the log and
	// reach clients through guard responses.
	navigator := service.NewNavigator(func(dest string) {
		logger.Info("navigation", "destination", dest)
	})

	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Credentials:     creds,
		Profiles:        profiles,
		Sessions:        sessions,
		ContextID:       cfg.Sessions.ContextID,
		BootPath:        cfg.Sessions.BootPath,
		RefreshInterval: cfg.Sessions.RefreshInterval,
		Logger:          logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build auth service: %w", err)
	}

	return ServiceContainer{
		Auth:        auth,
		Credentials: creds,
		Profiles:    profiles,
		Sessions:    sessions,
		Navigator:   navigator,
	}, nil
}

// RunConfig contains everything Run needs to serve until shutdown.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// Run starts the auth service loop and the HTTP server, then blocks until a
// termination signal or a fatal component error. Shutdown is graceful: the
// listener drains before the auth loop is released.
func Run(ctx context.Context, cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil {
		return fmt.Errorf("run config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cfg.Services.Auth.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  server,
			Logger:  logger,
		})
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service runtime: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
