package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandLayout(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	names := make([]string, 0, len(root.Commands))
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"serve", "migrate", "user"}, names)
	assert.NotNil(t, root.Action, "running without a command starts the server")

	migrate := root.Command("migrate")
	require.NotNil(t, migrate)
	for _, sub := range []string{"up", "down", "status", "version", "create"} {
		assert.NotNil(t, migrate.Command(sub), sub)
	}
}

func TestPromoteRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	var out bytes.Buffer
	root.Writer = &out
	root.ErrWriter = &out

	err := root.Run(context.Background(),
		[]string{"taskhub", "user", "promote", "--email", "ops@example.com", "--role", "owner"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid role "owner"`)
}

func TestMigrateCreateRequiresName(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	var out bytes.Buffer
	root.Writer = &out
	root.ErrWriter = &out

	err := root.Run(context.Background(), []string{"taskhub", "migrate", "create"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration name is required")
}

func TestCreateMigrationWritesSQLFile(t *testing.T) {
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	dir := t.TempDir()
	require.NoError(t, createMigration(dir, "add_task_index"))

	matches, err := filepath.Glob(filepath.Join(dir, "*_add_task_index.sql"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
