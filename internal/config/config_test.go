package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.HealthTimeout)
	assert.Equal(t, 15*time.Minute, cfg.CartCacheTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CART_CACHE_TTL", "2m")
	t.Setenv("HEALTH_CHECK_TIMEOUT", "500ms")
	t.Setenv("TIME_ZONE", "Asia/Kolkata")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Minute, cfg.CartCacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.HealthTimeout)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canteen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("POSTGRES_DB: campus\nREDIS_DB: 3\n"), 0o600))
	t.Setenv("REDIS_DB", "5")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "campus", cfg.PostgresDB)
	assert.Equal(t, 5, cfg.RedisDB)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TIME_ZONE", "Mars/Olympus")

	_, err := Load("")
	assert.ErrorContains(t, err, "TIME_ZONE")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
