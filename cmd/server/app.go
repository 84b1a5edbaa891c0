package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/cache"
	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/events"
	"github.com/phrazzld/taskhub/internal/jobs"
	"github.com/phrazzld/taskhub/internal/notify"
	"github.com/phrazzld/taskhub/internal/platform/mail"
	"github.com/phrazzld/taskhub/internal/platform/postgres"
	"github.com/phrazzld/taskhub/internal/platform/rediscache"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/service/auth"
)

// memorySweepInterval is how often the in-process cache drops expired entries.
const memorySweepInterval = time.Minute

// application holds the shared dependencies of the server so they can be
// wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	cache  *cache.Cache
	hub    *notify.Hub
	runner *jobs.Runner
	mailer mail.Mailer

	authService  service.AuthService
	userService  service.UserService
	taskService  service.TaskService
	teamService  service.TeamService
	statsService service.StatsService
}

// newApplication wires stores, services and infrastructure on top of an open
// database. Nothing is started; call start before serving traffic.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	userStore := postgres.NewPostgresUserStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)
	teamStore := postgres.NewPostgresTeamStore(db, logger)
	sessionStore := postgres.NewPostgresSessionStore(db, logger)
	jobStore := postgres.NewPostgresJobStore(db, logger)

	tokens, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	passwords := auth.NewBcryptHasher(cfg.Auth.BCryptCost)
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.cache = setupCache(ctx, cfg.Cache, logger)

	var notifier service.Notifier
	if cfg.Notify.Enabled {
		// Clients authenticate with a bearer token, never a cookie, so any
		// origin may connect.
		app.hub = notify.NewHub(notify.HubOptions{
			SendBuffer:   cfg.Notify.SendBuffer,
			WriteTimeout: time.Duration(cfg.Notify.WriteTimeoutSeconds) * time.Second,
			CheckOrigin:  func(*http.Request) bool { return true },
		}, logger)
		notifier = notify.NewDispatcher(app.hub, logger)
	} else {
		notifier = notify.NewDispatcher(nil, logger)
	}

	app.mailer = mail.New(cfg.Mail, logger)

	registry := jobs.NewRegistry()
	registry.Register(jobs.TypeWelcomeEmail, jobs.WelcomeEmailDecoder(app.mailer))

	runnerCfg := jobs.DefaultRunnerConfig()
	runnerCfg.WorkerCount = cfg.Jobs.WorkerCount
	runnerCfg.QueueSize = cfg.Jobs.QueueSize
	app.runner = jobs.NewRunner(jobStore, registry, runnerCfg, logger)

	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(jobs.NewSignupEmailHandler(app.runner, app.mailer, logger))

	visibility := authz.NewVisibility(userStore)

	app.authService, err = service.NewAuthService(service.AuthServiceDeps{
		Users:     userStore,
		Sessions:  sessionStore,
		Tokens:    tokens,
		Passwords: passwords,
		Events:    emitter,
		Config:    cfg.Auth,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	app.userService, err = service.NewUserService(userStore, sessionStore, passwords, visibility, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.taskService, err = service.NewTaskService(service.TaskServiceDeps{
		Tasks:      taskStore,
		Users:      userStore,
		Visibility: visibility,
		Cache:      app.cache,
		Notifier:   notifier,
		ListTTL:    cfg.Cache.ListTTL(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.teamService, err = service.NewTeamService(db, teamStore, userStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create team service: %w", err)
	}

	app.statsService, err = service.NewStatsService(taskStore, userStore, teamStore, visibility, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats service: %w", err)
	}

	return app, nil
}

// setupCache picks the cache backend. An unreachable Redis disables caching
// rather than failing startup.
func setupCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) *cache.Cache {
	switch {
	case cfg.RedisURL != "":
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout())
		defer cancel()

		backend, err := rediscache.Open(dialCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, list caching disabled", "error", err)
			return cache.Disabled(logger)
		}
		logger.Info("redis cache connected")
		return cache.New(backend, cfg.ListTTL(), logger)
	case cfg.InMemory:
		logger.Info("using in-process cache")
		return cache.New(cache.NewMemoryBackend(memorySweepInterval), cfg.ListTTL(), logger)
	default:
		logger.Info("list caching disabled")
		return cache.Disabled(logger)
	}
}

// start launches the job workers after requeueing unfinished jobs.
func (app *application) start() error {
	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}
	return nil
}

// cleanup releases everything newApplication acquired, in reverse order.
func (app *application) cleanup() error {
	var errs []error

	if app.runner != nil {
		app.runner.Stop()
	}
	if app.hub != nil {
		app.hub.Close()
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("cleanup failed", "error", err)
		return err
	}
	app.logger.Info("application resources released")
	return nil
}
