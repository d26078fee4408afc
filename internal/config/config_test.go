package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "workgov_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "data/gold", cfg.DataDir)
	assert.Equal(t, "data/catalog", cfg.CatalogDir)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.ScoreParallelism)
	assert.Equal(t, float64(100), cfg.RateLimitRPS)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Contains(t, cfg.Warnings[0], "JWT_SECRET")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("META_DB_PATH", "/tmp/meta.sqlite")
	t.Setenv("DATA_DIR", "/lake/gold")
	t.Setenv("SCORE_PARALLELISM", "8")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "/lake/gold", cfg.DataDir)
	assert.Equal(t, 8, cfg.ScoreParallelism)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dashboard.example")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "supersecret")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	cfg.LogLevel = "warn"
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	cfg.LogLevel = "bogus"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nWG_TEST_KEY=hello\nWG_TEST_QUOTED=\"quoted value\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("WG_TEST_KEY", "")
	t.Setenv("WG_TEST_QUOTED", "")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("WG_TEST_KEY"))
	assert.Equal(t, "quoted value", os.Getenv("WG_TEST_QUOTED"))

	// Missing file is not an error.
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env")))
}
