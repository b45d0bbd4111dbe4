package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/expensely/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)
	open := cfg.Database.DatabaseOpenConfig()
	require.Equal(t, "expensely", open.Name)
	require.Equal(t, "secret", open.Password)

	require.True(t, cfg.Cache.Redis.Enabled)
	redis := cfg.Cache.RedisClientConfig()
	require.Equal(t, "redis.example.com:6380", redis.Address)
	require.Equal(t, 3*time.Second, redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, 48*time.Hour, cfg.Invitations.TTL)

	require.True(t, cfg.Extraction.Enabled())
	model := cfg.Extraction.ModelConfig()
	require.Equal(t, "vision-small", model.Model)
	require.Equal(t, 20*time.Second, model.Timeout)
	require.Equal(t, 1024, model.MaxTokens)
	require.Equal(t, 4, cfg.Extraction.PerMinute)

	require.Equal(t, 60, cfg.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	require.Equal(t, 10, cfg.RateLimit.Auth)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, "@hourly", cfg.Maintenance.InvitationSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/expensely.sqlite", cfg.Database.Path)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 7*24*time.Hour, cfg.Invitations.TTL)
	require.False(t, cfg.Extraction.Enabled())
	require.True(t, cfg.Monitoring.Health.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("EXPENSELY_SERVER_PORT", "7070")
	t.Setenv("EXPENSELY_AUTH_JWT_SECRET", "from-env")
	t.Setenv("EXPENSELY_EXTRACTION_ENDPOINT", "http://localhost:9999/v1/chat/completions")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	require.True(t, cfg.Extraction.Enabled())
}

func TestJWTServiceConfigDefaultsTTL(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "s", Issuer: "i"}}
	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
	require.Equal(t, "s", jwtCfg.Secret)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSELY_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EXPENSELY_TEST_DOTENV") })

	loaded, err := LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, []string{path}, loaded)
	require.Equal(t, "loaded", os.Getenv("EXPENSELY_TEST_DOTENV"))
}
