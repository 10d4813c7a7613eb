package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROLLOUT_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("ROLLOUT_WEBHOOK_POOL_SIZE", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Etcd.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Webhook.RequestTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.Webhook.RetryDelays)
	assert.Equal(t, 2, cfg.Webhook.PoolSize)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "@every 1m", cfg.Workers.ReconcilerSchedule)
}

func TestLoad_FileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
server:
  port: ":9090"
database:
  driver: memory
etcd:
  enabled: true
  endpoints: ["etcd-0:2379", "etcd-1:2379"]
webhook:
  retry_delays: ["100ms", "2s"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ROLLOUT_AUTH_JWT_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ROLLOUT_AUTH_JWT_SECRET") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.Etcd.Enabled)
	assert.Equal(t, []string{"etcd-0:2379", "etcd-1:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 2 * time.Second}, cfg.Webhook.RetryDelays)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	base := Config{
		Database: DatabaseConfig{Driver: "mysql", DSN: "user:pass@tcp(db:3306)/rollout"},
		Auth:     AuthConfig{JWTSecret: "s"},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Database.Driver = "postgres"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Auth.JWTSecret = ""
	assert.Error(t, bad.Validate())

	bad = base
	bad.Etcd = EtcdConfig{Enabled: true}
	assert.Error(t, bad.Validate())

	mem := base
	mem.Database = DatabaseConfig{Driver: "memory"}
	assert.NoError(t, mem.Validate())
}
