package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/platform/postgres"
	"github.com/pressly/goose/v3"
	"github.com/urfave/cli/v3"
)

const (
	// migrationTableName is goose's version table.
	migrationTableName = "schema_migrations"
	// migrationsSourceDir is where `migrate create` writes new files.
	migrationsSourceDir = "internal/platform/postgres/migrations"
)

// slogGooseLogger routes goose output through slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

func newMigrateCommand(flags *globalFlags) *cli.Command {
	withDB := func(command string) cli.ActionFunc {
		return func(ctx context.Context, _ *cli.Command) error {
			cfg, logger, err := bootstrap(flags)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return runMigrations(ctx, db, logger, command)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Description: `Applies the SQL migrations embedded in the binary.

Example: taskhub migrate up`,
		Commands: []*cli.Command{
			{Name: "up", Usage: "apply all pending migrations", Action: withDB("up")},
			{Name: "down", Usage: "roll back the latest migration", Action: withDB("down")},
			{Name: "status", Usage: "show the state of every migration", Action: withDB("status")},
			{Name: "version", Usage: "print the current schema version", Action: withDB("version")},
			{
				Name:      "create",
				Usage:     "create a new SQL migration in the source tree",
				ArgsUsage: "NAME",
				Action: func(_ context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("migration name is required")
					}
					return createMigration(migrationsSourceDir, name)
				},
			},
		},
	}
}

// runMigrations executes a goose command against the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger, command string) error {
	migrationLogger := logger.With(
		"correlation_id", uuid.NewString(),
		"component", "migrations",
		"command", command,
	)
	startTime := time.Now()

	goose.SetLogger(&slogGooseLogger{logger: migrationLogger})
	goose.SetBaseFS(postgres.Migrations)
	defer goose.SetBaseFS(nil)
	goose.SetTableName(migrationTableName)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, postgres.MigrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, postgres.MigrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, postgres.MigrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db, postgres.MigrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		migrationLogger.Error("migration failed", "error", err)
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	migrationLogger.Info("migration completed", "duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// createMigration writes an empty SQL migration into dir.
func createMigration(dir, name string) error {
	goose.SetBaseFS(nil)
	goose.SetSequential(false)
	if err := goose.Create(nil, dir, name, "sql"); err != nil {
		return fmt.Errorf("failed to create migration %s: %w", name, err)
	}
	return nil
}
