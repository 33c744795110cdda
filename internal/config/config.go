// Package config loads application settings from an optional config file
// and SITETRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Materials MaterialsConfig `mapstructure:"materials"`
	Numbering NumberingConfig `mapstructure:"numbering"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// AppConfig holds HTTP server settings.
type AppConfig struct {
	Env             string        `mapstructure:"env"`
	Port            string        `mapstructure:"port"`
	Timezone        string        `mapstructure:"timezone"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis settings. Empty URL and address disable Redis.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled reports whether a Redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != "" || c.Address != ""
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTIssuer        string        `mapstructure:"jwt_issuer"`
	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockDuration     time.Duration `mapstructure:"lock_duration"`
	BootstrapAdmin   BootstrapUser `mapstructure:"bootstrap_admin"`
	OTP              OTPConfig     `mapstructure:"otp"`
}

// BootstrapUser is the admin created on first start.
type BootstrapUser struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	FullName string `mapstructure:"full_name"`
}

// OTPConfig holds one-time login code settings.
type OTPConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Length      int           `mapstructure:"length"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Generator   string        `mapstructure:"generator"`
	FixedCode   string        `mapstructure:"fixed_code"`
}

// MaterialsConfig selects the consumption eligibility policy.
type MaterialsConfig struct {
	ConsumePolicy string `mapstructure:"consume_policy"`
	ConsumeRule   string `mapstructure:"consume_rule"`
}

// NumberingConfig controls automatic project and employee codes.
type NumberingConfig struct {
	AutoCode  bool   `mapstructure:"auto_code"`
	Strategy  string `mapstructure:"strategy"` // strict | cached
	RangeSize int64  `mapstructure:"range_size"`
}

// EventsConfig controls the ledger event outbox and its relay.
type EventsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RelayInterval  time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize int           `mapstructure:"relay_batch_size"`
	Retention      time.Duration `mapstructure:"retention"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WorkerConfig controls background jobs.
type WorkerConfig struct {
	TokenCleanupInterval time.Duration `mapstructure:"token_cleanup_interval"`
	TokenRetention       time.Duration `mapstructure:"token_retention"`
	PoolStatsInterval    time.Duration `mapstructure:"pool_stats_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("app.shutdown_timeout", 30*time.Second)
	v.SetDefault("app.read_timeout", 15*time.Second)
	v.SetDefault("app.write_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "sitetrack")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lock_duration", 15*time.Minute)
	v.SetDefault("auth.bootstrap_admin.email", "")
	v.SetDefault("auth.bootstrap_admin.password", "")
	v.SetDefault("auth.bootstrap_admin.full_name", "Administrator")
	v.SetDefault("auth.otp.enabled", false)
	v.SetDefault("auth.otp.length", 6)
	v.SetDefault("auth.otp.ttl", 5*time.Minute)
	v.SetDefault("auth.otp.max_attempts", 5)
	v.SetDefault("auth.otp.generator", "random")
	v.SetDefault("auth.otp.fixed_code", "")

	v.SetDefault("materials.consume_policy", "skip_out_of_stock")
	v.SetDefault("materials.consume_rule", "")

	v.SetDefault("numbering.auto_code", true)
	v.SetDefault("numbering.strategy", "strict")
	v.SetDefault("numbering.range_size", 50)

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.relay_interval", 5*time.Second)
	v.SetDefault("events.relay_batch_size", 100)
	v.SetDefault("events.retention", 7*24*time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("worker.token_cleanup_interval", time.Hour)
	v.SetDefault("worker.token_retention", 30*24*time.Hour)
	v.SetDefault("worker.pool_stats_interval", time.Minute)
}

// Load reads configuration. Priority (highest first): SITETRACK_* env vars,
// the config file, built-in defaults. An empty path searches config.yaml in
// ".", "./configs" and "/etc/sitetrack".
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sitetrack")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("SITETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.App.Port == "" {
		return errors.New("app.port is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters in production")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.OTP.Enabled {
		if c.Auth.OTP.Length < 4 || c.Auth.OTP.Length > 10 {
			return fmt.Errorf("auth.otp.length must be between 4 and 10, got %d", c.Auth.OTP.Length)
		}
		if c.Auth.OTP.TTL <= 0 {
			return errors.New("auth.otp.ttl must be positive")
		}
		if c.IsProduction() && c.Auth.OTP.Generator == "fixed" {
			return errors.New("auth.otp.generator=fixed is not allowed in production")
		}
	}
	if s := c.Numbering.Strategy; s != "" && s != "strict" && s != "cached" {
		return fmt.Errorf("numbering.strategy must be strict or cached, got %q", s)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Location resolves app.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.App.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}
