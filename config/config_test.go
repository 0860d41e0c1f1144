package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("JWT_REFRESH_SECRET", "b")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StorageDriver)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "cart-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("JWT_REFRESH_SECRET", "b")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	assert.Contains(t, err.Error(), "must differ")
}

func TestIsProduction(t *testing.T) {
	assert.True(t, Config{AppEnv: "production"}.IsProduction())
	assert.False(t, Config{AppEnv: "dev"}.IsProduction())
}
