// Package main implements the taskhub command: the API server plus the
// operator tooling for migrations and account bootstrapping.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/urfave/cli/v3"
)

// Populated at build time via -ldflags.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
}

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "taskhub: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	flags := &globalFlags{}
	serve := newServeCommand(flags)

	return &cli.Command{
		Name:      "taskhub",
		Usage:     "Role-scoped task management API",
		UsageText: "taskhub [global options] command [command options]",
		Description: `Runs the taskhub HTTP API and its background workers.

Run 'taskhub' with no command to start the server.
Run 'taskhub migrate up' to apply pending database migrations.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a YAML config file (TASKHUB_* variables take precedence)",
				Sources:     cli.EnvVars("TASKHUB_CONFIG"),
				Destination: &flags.configPath,
			},
		},
		Commands: []*cli.Command{
			serve,
			newMigrateCommand(flags),
			newUserCommand(flags),
		},
		Action: serve.Action,
	}
}

// bootstrap loads configuration and installs the process logger.
func bootstrap(flags *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"cache_enabled", cfg.Cache.RedisURL != "",
		"notify_enabled", cfg.Notify.Enabled)
	return cfg, log, nil
}
