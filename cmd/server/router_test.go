package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/phrazzld/taskhub/internal/api"
	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeoutSeconds: 1},
		Database: config.DatabaseConfig{URL: "postgres://localhost/taskhub"},
		Auth: config.AuthConfig{
			JWTSecret:                   "test-secret-that-is-at-least-32-bytes-long",
			TokenLifetimeMinutes:        60,
			RefreshTokenLifetimeMinutes: 1440,
			BCryptCost:                  4,
			MaxSessions:                 5,
			MaxFailedLogins:             5,
			LockoutMinutes:              15,
			LoginRatePerMinute:          1,
			LoginBurst:                  1,
		},
		Cache:  config.CacheConfig{ListTTLSeconds: 60, DialTimeoutSecs: 1},
		Notify: config.NotifyConfig{Enabled: true, SendBuffer: 4, WriteTimeoutSeconds: 1},
		Mail:   config.MailConfig{From: "no-reply@taskhub.local"},
		Jobs:   config.JobsConfig{QueueSize: 4, WorkerCount: 1},
	}
}

// newTestApp wires the application on a mock database. Requests that reach a
// store fail the mock's expectations.
func newTestApp(t *testing.T, cfg *config.Config) (*application, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	log, _ := logger.NewTestLogger(t)
	app, err := newApplication(context.Background(), cfg, log, db)
	require.NoError(t, err)

	mock.ExpectClose()
	t.Cleanup(func() {
		assert.NoError(t, app.cleanup())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return app, mock
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.1:4000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	router := app.setupRouter()

	for _, target := range []string{"/health", "/api/v1/health"} {
		recorder := serve(router, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, recorder.Code, target)

		var resp api.HealthResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, recorder.Header().Get("X-Trace-ID"))
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	router := app.setupRouter()

	routes := []struct{ method, target string }{
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodDelete, "/api/v1/users/0b8a5f1e-6a53-4c1e-9f0f-3f8f7d8c1a11"},
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodPost, "/api/v1/tasks"},
		{http.MethodGet, "/api/v1/tasks/assigned"},
		{http.MethodPut, "/api/v1/tasks/0b8a5f1e-6a53-4c1e-9f0f-3f8f7d8c1a11/assignment"},
		{http.MethodGet, "/api/v1/analytics/tasks"},
		{http.MethodPost, "/api/v1/teams"},
		{http.MethodGet, "/api/v1/ws"},
	}
	for _, route := range routes {
		recorder := serve(router, route.method, route.target, "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, "%s %s", route.method, route.target)

		var resp shared.ErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
		assert.Equal(t, "Authorization header required", resp.Message)
	}
}

func TestSignupRejectsEmptyBodyBeforeTouchingTheStore(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	recorder := serve(app.setupRouter(), http.MethodPost, "/api/v1/auth/signup", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	router := app.setupRouter()

	first := serve(router, http.MethodPost, "/api/v1/auth/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := serve(router, http.MethodPost, "/api/v1/auth/login", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Other public routes are not throttled.
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/v1/auth/refresh", `{}`).Code)
}

func TestWebsocketRouteDisabledWithoutHub(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.Enabled = false
	app, _ := newTestApp(t, cfg)

	assert.Nil(t, app.hub)
	recorder := serve(app.setupRouter(), http.MethodGet, "/api/v1/ws", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSetupCache(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		c := setupCache(ctx, testConfig().Cache, log)
		assert.False(t, c.Enabled())
	})

	t.Run("in memory", func(t *testing.T) {
		cfg := testConfig().Cache
		cfg.InMemory = true
		c := setupCache(ctx, cfg, log)
		t.Cleanup(func() { _ = c.Close() })
		assert.True(t, c.Enabled())
	})

	t.Run("redis", func(t *testing.T) {
		srv := miniredis.RunT(t)
		cfg := testConfig().Cache
		cfg.RedisURL = "redis://" + srv.Addr()
		c := setupCache(ctx, cfg, log)
		t.Cleanup(func() { _ = c.Close() })
		assert.True(t, c.Enabled())
		assert.NoError(t, c.Ping(ctx))
	})

	t.Run("unreachable redis degrades to disabled", func(t *testing.T) {
		srv := miniredis.RunT(t)
		addr := srv.Addr()
		srv.Close()

		cfg := testConfig().Cache
		cfg.RedisURL = "redis://" + addr
		c := setupCache(ctx, cfg, log)
		assert.False(t, c.Enabled())
	})
}
