package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"mytune-auth/internal/config"
	"mytune-auth/internal/database"
	"mytune-auth/internal/event"
	"mytune-auth/internal/handler"
	"mytune-auth/internal/metrics"
	"mytune-auth/internal/middleware"
	"mytune-auth/internal/password"
	"mytune-auth/internal/repository"
	"mytune-auth/internal/router"
	"mytune-auth/internal/service"
	"mytune-auth/internal/session"
	"mytune-auth/internal/token"
)

const (
	connectAttempts = 5
	shutdownTimeout = 10 * time.Second
)

var connectBackoff = 250 * time.Millisecond

type App struct {
	server       *http.Server
	events       *event.InMemoryBus
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{events: event.NewBus()}

	redisClient := redis.NewClient(redisOptions(cfg))
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = redisClient.Close() })
	sessions := session.NewRedisStore(redisClient)

	slog.Info("connecting to Redis", "addr", cfg.RedisAddr)
	if err := withRetry(ctx, "redis", sessions.Ping); err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	checks := map[string]handler.HealthCheck{"redis": sessions.Ping}

	var users service.UserStore
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is empty; using in-memory user store")
		users = repository.NewMemoryUserRepository()
	} else {
		slog.Info("connecting to PostgreSQL")
		var db *database.DB
		err := withRetry(ctx, "postgres", func(ctx context.Context) error {
			var err error
			db, err = database.New(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			return err
		})
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		users = repository.NewUserRepository(db.Pool)
		checks["database"] = db.Health
		slog.Info("database ready")
	}

	hasher, err := password.NewHasher(cfg.PasswordPepper, cfg.BcryptCost)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokens, err := token.NewManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	m := metrics.New()
	authService := service.NewAuthService(users, sessions, tokens, hasher,
		service.NewLoginGovernor(cfg.LoginMaxAttempts, cfg.LoginLockoutWindow),
		service.AuthOptions{
			StoreTimeout: cfg.StoreTimeout,
			RevokeScan:   cfg.SessionRevokeScan,
			Metrics:      m,
			Events:       a.events,
		})

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(authService),
		Health:  handler.NewHealthHandler(checks),
		Metrics: m.Handler(),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return event.LogSink(gctx, a.events, slog.Default().With("component", "security"))
	})

	g.Go(func() error {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.cleanup()
	if err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

// redisOptions makes the client honour per-call context deadlines, so
// STORE_TIMEOUT bounds every session store call. The socket timeouts cover
// calls made without a deadline.
func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:                  cfg.RedisAddr,
		Password:              cfg.RedisPassword,
		DB:                    cfg.RedisDB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           cfg.StoreTimeout,
		WriteTimeout:          cfg.StoreTimeout,
	}
}

func withRetry(ctx context.Context, name string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewExponential(connectBackoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			slog.Warn("dependency not ready", "dependency", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
