package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  port: "9090"
  timezone: UTC
database:
  dsn: postgres://localhost/sitetrack
auth:
  jwt_secret: dev-secret
  otp:
    enabled: true
    ttl: 2m
materials:
  consume_policy: expression
  consume_rule: status != "on_hold"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.True(t, cfg.Auth.OTP.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Auth.OTP.TTL)
	assert.Equal(t, 6, cfg.Auth.OTP.Length)
	assert.Equal(t, "expression", cfg.Materials.ConsumePolicy)
	assert.Equal(t, `status != "on_hold"`, cfg.Materials.ConsumeRule)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.Numbering.AutoCode)
	assert.Equal(t, "strict", cfg.Numbering.Strategy)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Events.RelayInterval)
	assert.False(t, cfg.Redis.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://file/sitetrack
auth:
  jwt_secret: dev-secret
`)
	t.Setenv("SITETRACK_DATABASE_DSN", "postgres://env/sitetrack")
	t.Setenv("SITETRACK_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SITETRACK_AUTH_ACCESS_TOKEN_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/sitetrack", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "development", Port: "8080"},
			Database: DatabaseConfig{DSN: "postgres://x", MaxConns: 10, MinConns: 1},
			Auth:     AuthConfig{JWTSecret: "secret", OTP: OTPConfig{Length: 6, TTL: time.Minute}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no dsn", func(c *Config) { c.Database.DSN = "" }, false},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, false},
		{"short secret in production", func(c *Config) { c.App.Env = "production" }, false},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, false},
		{"otp length", func(c *Config) { c.Auth.OTP.Enabled = true; c.Auth.OTP.Length = 2 }, false},
		{"fixed otp in production", func(c *Config) {
			c.App.Env = "production"
			c.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
			c.Auth.OTP.Enabled = true
			c.Auth.OTP.Generator = "fixed"
		}, false},
		{"numbering strategy", func(c *Config) { c.Numbering.Strategy = "random" }, false},
		{"pool bounds", func(c *Config) { c.Database.MinConns = 50 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
