package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKHUB_DATABASE_URL.
const EnvPrefix = "TASKHUB"

// Load reads configuration from an optional YAML file at path (ignored when
// empty) and from TASKHUB_* environment variables, which take precedence.
// Returns a validated Config or an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.max_sessions", 5)
	v.SetDefault("auth.max_failed_logins", 5)
	v.SetDefault("auth.lockout_minutes", 15)
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("cache.list_ttl_seconds", 3600)
	v.SetDefault("cache.dial_timeout_seconds", 5)
	v.SetDefault("cache.in_memory", false)

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.send_buffer", 16)
	v.SetDefault("notify.write_timeout_seconds", 10)

	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "no-reply@taskhub.local")

	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.worker_count", 2)
}

// bindEnvs registers keys without defaults so AutomaticEnv picks them up
// during Unmarshal.
func bindEnvs(v *viper.Viper) {
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"cache.redis_url",
		"mail.smtp_host",
		"mail.username",
		"mail.password",
	} {
		_ = v.BindEnv(key)
	}
}
