package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/keys")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SESSION_SECRET", secret)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/keys", cfg.DatabaseURL)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, 12, cfg.BcryptCost)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.Equal(t, 5*time.Second, cfg.StorageTimeout)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Empty(t, cfg.AdminPassword)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_FORMAT", "Console")
	t.Setenv("ADMIN_PASSWORD", "letmein")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8, cfg.WorkerCount)
	require.Equal(t, 10, cfg.BcryptCost)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 2, cfg.RedisDB)
	require.Equal(t, "console", cfg.LogFormat)
	require.Equal(t, "letmein", cfg.AdminPassword)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/keys
redis_addr: redis:6379
session_secret: `+secret+`
http_addr: ":9090"
storage_timeout: 2s
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://file/keys", cfg.DatabaseURL)
	require.Equal(t, 2*time.Second, cfg.StorageTimeout)
	require.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over the file")
}

func TestLoadMissingConfigFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SESSION_SECRET", "short")
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("BCRYPT_COST", "40")
	t.Setenv("SESSION_TTL", "-1h")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{
		"DATABASE_URL is required",
		"REDIS_ADDR is required",
		"SESSION_SECRET",
		"WORKER_COUNT",
		"BCRYPT_COST",
		"SESSION_TTL",
		"LOG_FORMAT",
	} {
		require.ErrorContains(t, err, want)
	}
}
