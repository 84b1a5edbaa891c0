package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// readHeaderTimeout guards against slow-loris clients.
const readHeaderTimeout = 10 * time.Second

type serveOptions struct {
	migrate bool
}

func newServeCommand(flags *globalFlags) *cli.Command {
	opts := &serveOptions{}
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "migrate",
				Usage:       "apply pending migrations before serving",
				Sources:     cli.EnvVars("TASKHUB_MIGRATE"),
				Destination: &opts.migrate,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runServe(ctx, flags, opts)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags, opts *serveOptions) error {
	cfg, logger, err := bootstrap(flags)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}

	if opts.migrate {
		if err := runMigrations(ctx, db, logger, "up"); err != nil {
			_ = db.Close()
			return err
		}
	}

	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _ = app.cleanup() }()

	if err := app.start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.serveHTTP(ctx, app.setupRouter())
}

// serveHTTP runs the server until ctx is cancelled, then drains in-flight
// requests within the configured shutdown timeout.
func (app *application) serveHTTP(ctx context.Context, handler http.Handler) error {
	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(app.config.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout())
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		app.logger.Info("server shutdown completed")
		return nil
	})

	return g.Wait()
}
