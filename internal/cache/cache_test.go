package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct {
	err   error
	panic bool
}

func (f failingBackend) fail() error {
	if f.panic {
		panic("backend exploded")
	}
	return f.err
}

func (f failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.fail() }
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return f.fail()
}
func (f failingBackend) Delete(context.Context, ...string) error { return f.fail() }
func (f failingBackend) DeletePattern(context.Context, string) (int, error) {
	return 0, f.fail()
}
func (f failingBackend) Ping(context.Context) error { return f.fail() }
func (f failingBackend) Close() error               { return nil }

type listing struct {
	Titles []string `json:"titles"`
	Total  int      `json:"total"`
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	log, _ := logger.NewTestLogger(t)
	c := New(NewMemoryBackend(0), time.Minute, log)

	want := listing{Titles: []string{"a", "b"}, Total: 2}
	require.True(t, c.Set(ctx, "tasks:1:page=1", want, 0))

	var got listing
	require.True(t, c.GetJSON(ctx, "tasks:1:page=1", &got))
	assert.Equal(t, want, got)

	require.True(t, c.Invalidate(ctx, "tasks:1:page=1"))
	assert.False(t, c.GetJSON(ctx, "tasks:1:page=1", &got))
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return now }
	c := New(backend, time.Minute, nil)

	require.True(t, c.Set(ctx, "k", "v", 0))
	_, hit := c.Get(ctx, "k")
	assert.True(t, hit)

	now = now.Add(time.Minute)
	_, hit = c.Get(ctx, "k")
	assert.False(t, hit, "entry expires at its TTL")
	assert.Zero(t, backend.Len())
}

func TestCachePatternInvalidation(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend(0), 0, nil)
	alice, bob := uuid.New(), uuid.New()

	aliceKeys := []string{
		TaskListKey(alice, 1, 10, nil),
		TaskListKey(alice, 2, 10, map[string]string{"status": "pending"}),
	}
	bobKey := TaskListKey(bob, 1, 10, nil)
	for _, k := range append(aliceKeys, bobKey) {
		require.True(t, c.Set(ctx, k, 1, 0))
	}

	require.True(t, c.Invalidate(ctx, TaskListPattern(alice)))

	for _, k := range aliceKeys {
		_, hit := c.Get(ctx, k)
		assert.False(t, hit, k)
	}
	_, hit := c.Get(ctx, bobKey)
	assert.True(t, hit, "other identities keep their entries")
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	var nilCache *Cache

	for name, c := range map[string]*Cache{"disabled": Disabled(nil), "nil": nilCache} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())
			assert.False(t, c.Set(ctx, "k", "v", 0))
			_, hit := c.Get(ctx, "k")
			assert.False(t, hit)
			assert.False(t, c.Invalidate(ctx, "k*"))
			assert.Error(t, c.Ping(ctx))
			assert.NoError(t, c.Close())
		})
	}
}

func TestFailingBackendDegrades(t *testing.T) {
	ctx := context.Background()

	tests := map[string]failingBackend{
		"errors": {err: errors.New("connection refused")},
		"panics": {panic: true},
	}

	for name, backend := range tests {
		t.Run(name, func(t *testing.T) {
			log, buf := logger.NewTestLogger(t)
			c := New(backend, 0, log)

			assert.NotPanics(t, func() {
				assert.False(t, c.Set(ctx, "k", "v", 0))
				_, hit := c.Get(ctx, "k")
				assert.False(t, hit)
				assert.False(t, c.Invalidate(ctx, "k"))
				assert.False(t, c.Invalidate(ctx, "k*"))
			})

			entries, err := buf.Entries()
			require.NoError(t, err)
			assert.NotEmpty(t, entries, "failures are logged")
		})
	}
}

func TestTaskListKey(t *testing.T) {
	id := uuid.MustParse("6f1c1c3e-1d2b-4d8e-9a51-3c0f1e2d4b5a")

	a := TaskListKey(id, 1, 10, map[string]string{"status": "pending", "priority": "high"})
	b := TaskListKey(id, 1, 10, map[string]string{"priority": "high", "status": "pending", "search": ""})
	assert.Equal(t, a, b, "filter order and empty filters do not change the key")
	assert.Equal(t, "tasks:6f1c1c3e-1d2b-4d8e-9a51-3c0f1e2d4b5a:limit=10&page=1&priority=high&status=pending", a)

	assert.NotEqual(t, a, TaskListKey(id, 2, 10, map[string]string{"status": "pending", "priority": "high"}))
	assert.NotEqual(t, a, TaskListKey(id, 1, 10, map[string]string{"status": "pending"}))
	assert.NotEqual(t, a, TaskListKey(uuid.New(), 1, 10, map[string]string{"status": "pending", "priority": "high"}))

	// Values that look like separators must not collide.
	assert.NotEqual(t,
		TaskListKey(id, 1, 10, map[string]string{"search": "a&status=x"}),
		TaskListKey(id, 1, 10, map[string]string{"search": "a", "status": "x"}),
	)

	assert.True(t, MatchPattern(a, TaskListPattern(id)))
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, MatchPattern("tasks:1:x", "tasks:1:*"))
	assert.False(t, MatchPattern("tasks:10:x", "tasks:1:*"))
	assert.True(t, MatchPattern("exact", "exact"))
	assert.False(t, MatchPattern("exactly", "exact"))
	assert.True(t, MatchPattern("anything", "*"))
}

func TestMemoryBackendSweeper(t *testing.T) {
	backend := NewMemoryBackend(5 * time.Millisecond)
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	assert.Eventually(t, func() bool { return backend.Len() == 0 }, time.Second, 5*time.Millisecond)

	// Close is idempotent.
	assert.NoError(t, backend.Close())
}
