package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/postgres"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/service/auth"
	"github.com/urfave/cli/v3"
)

type userCmd struct {
	flags *globalFlags
	email string
	role  string
}

func newUserCommand(flags *globalFlags) *cli.Command {
	cmd := &userCmd{flags: flags}
	return &cli.Command{
		Name:  "user",
		Usage: "Operator tools for user accounts",
		Commands: []*cli.Command{
			{
				Name:  "promote",
				Usage: "set the role of an existing account",
				Description: `Signup always creates plain users. Use promote to bootstrap the
first admin or manager.

Example: taskhub user promote --email ops@example.com --role admin`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "email",
						Usage:       "email of the account to promote",
						Required:    true,
						Destination: &cmd.email,
					},
					&cli.StringFlag{
						Name:        "role",
						Usage:       "new role (user, manager, admin)",
						Value:       string(domain.RoleAdmin),
						Destination: &cmd.role,
					},
				},
				Action: cmd.runPromote,
			},
		},
	}
}

func (cmd *userCmd) runPromote(ctx context.Context, c *cli.Command) error {
	role := domain.Role(strings.ToLower(strings.TrimSpace(cmd.role)))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be one of user, manager, admin", cmd.role)
	}

	cfg, logger, err := bootstrap(cmd.flags)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	users := postgres.NewPostgresUserStore(db, logger)
	svc, err := service.NewUserService(
		users,
		postgres.NewPostgresSessionStore(db, logger),
		auth.NewBcryptHasher(cfg.Auth.BCryptCost),
		authz.NewVisibility(users),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}

	user, err := svc.PromoteByEmail(ctx, cmd.email, role)
	if err != nil {
		return fmt.Errorf("failed to promote %s: %w", cmd.email, err)
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "%s (%s) is now %s\n", user.Username, user.Email, user.Role)
	return nil
}
