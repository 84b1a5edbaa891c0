package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Mail     MailConfig     `mapstructure:"mail"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// ShutdownTimeout is the grace period for in-flight requests on shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// AuthConfig contains authentication, session and login-throttling settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gtfield=TokenLifetimeMinutes"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	MaxSessions                 int    `mapstructure:"max_sessions" validate:"gt=0"`
	MaxFailedLogins             int    `mapstructure:"max_failed_logins" validate:"gt=0"`
	LockoutMinutes              int    `mapstructure:"lockout_minutes" validate:"gt=0"`
	LoginRatePerMinute          int    `mapstructure:"login_rate_per_minute" validate:"gte=0"`
	LoginBurst                  int    `mapstructure:"login_burst" validate:"gte=0"`
}

// TokenLifetime is the access token lifetime.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// RefreshTokenLifetime is the refresh token and session lifetime.
func (c AuthConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(c.RefreshTokenLifetimeMinutes) * time.Minute
}

// Lockout is how long an account stays locked after too many failed logins.
func (c AuthConfig) Lockout() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

// CacheConfig configures the list cache. An empty RedisURL disables caching
// unless InMemory selects the in-process backend.
type CacheConfig struct {
	RedisURL        string `mapstructure:"redis_url" validate:"omitempty,url"`
	InMemory        bool   `mapstructure:"in_memory"`
	ListTTLSeconds  int    `mapstructure:"list_ttl_seconds" validate:"gt=0"`
	DialTimeoutSecs int    `mapstructure:"dial_timeout_seconds" validate:"gte=0"`
}

// DialTimeout bounds the initial connection to Redis.
func (c CacheConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSecs) * time.Second
}

// ListTTL is the lifetime of cached list responses.
func (c CacheConfig) ListTTL() time.Duration {
	return time.Duration(c.ListTTLSeconds) * time.Second
}

// NotifyConfig configures the real-time websocket channel.
type NotifyConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	SendBuffer          int  `mapstructure:"send_buffer" validate:"gt=0"`
	WriteTimeoutSeconds int  `mapstructure:"write_timeout_seconds" validate:"gt=0"`
}

// MailConfig configures outgoing email. An empty SMTPHost logs messages instead.
type MailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" validate:"gte=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
}

// JobsConfig configures the background job runner.
type JobsConfig struct {
	QueueSize   int `mapstructure:"queue_size" validate:"gt=0"`
	WorkerCount int `mapstructure:"worker_count" validate:"gt=0"`
}
