package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 120*time.Second, cfg.Security.AllowedDrift())
	assert.Equal(t, 5*time.Minute, cfg.Security.NonceTTL())
	assert.Equal(t, 2*time.Second, cfg.Security.CryptoTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL())
	assert.Equal(t, 5*time.Second, cfg.Storage.Timeout())
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Security.EncryptResponses)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9000"
cache:
  backend: "redis"
storage:
  timeout_ms: 100
jwt:
  operators:
    ops:
      password_hash: "$2a$10$abcdefghijklmnopqrstuu"
      role: "manager"
`), 0o600))

	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ALLOWED_TIMESTAMP_DRIFT_MS", "1000")
	t.Setenv("DEMO_CLIENT_PUBLIC_KEY_PEM", "/keys/demo.pub")
	t.Setenv("REDIS_PASSWORD", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9100", cfg.HTTPPort, "env wins over file")
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Storage.Timeout())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Security.AllowedDrift())
	assert.Equal(t, "/keys/demo.pub", cfg.Security.Clients["demo_client"])
	assert.Equal(t, "manager", cfg.JWT.Operators["ops"].Role)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Env = "prod"
	cfg.Cache.Backend = "memcached"
	cfg.Storage.TimeoutMS = 0

	err = cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"cache.backend", "storage.timeout_ms", "database_url", "security.private_key_pem", "jwt.secret"} {
		assert.Contains(t, err.Error(), field)
	}
}
