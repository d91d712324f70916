package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/auth"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "rules/alert-rules.yaml", cfg.Rules.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Minute, cfg.Reconciler.AutoCloseInterval)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.ReevaluateInterval)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.GlobalLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.GlobalWindow)
	assert.Equal(t, 30, cfg.RateLimit.CreateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.CreateWindow)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8080
redis:
  url: redis://cache:6379/1
auth:
  secret: file-secret
  users:
    - username: admin1
      password_hash: "$2a$10$abcdefghijklmnopqrstuv"
      role: admin
      name: Admin One
reconciler:
  auto_close_interval: 30s
ratelimit:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, 30*time.Second, cfg.Reconciler.AutoCloseInterval)
	assert.False(t, cfg.RateLimit.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.ReevaluateInterval)

	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, auth.User{
		Username:     "admin1",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         "admin",
		Name:         "Admin One",
	}, cfg.Auth.Users[0])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
