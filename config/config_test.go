package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, ":5000", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "recipebox", cfg.Mongo.Database)
	assert.Equal(t, 5*time.Second, cfg.Mongo.QueryTimeout)
	assert.Empty(t, cfg.Redis.Addr, "redis is opt-in")
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "8080")
	t.Setenv("MONGODB_DATABASE", "cpa02")
	t.Setenv("MONGODB_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_BURST", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "cpa02", cfg.Mongo.Database)
	assert.Equal(t, 2*time.Second, cfg.Mongo.QueryTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "recipebox.yaml")
	yml := "mongo:\n  database: fromfile\nredis:\n  addr: localhost:6379\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.Mongo.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Mongo.URI = ""
	cfg.Mongo.QueryTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
	assert.Contains(t, err.Error(), "MONGODB_TIMEOUT")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
