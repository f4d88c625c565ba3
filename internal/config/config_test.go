package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 60*time.Second, cfg.RoomCleanupDelay)
	assert.Equal(t, 4000, cfg.MaxMessageLength)
	assert.Equal(t, 3, cfg.KnockLimit)
	assert.Equal(t, time.Minute, cfg.KnockInterval)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Store.PoolSize)
	assert.False(t, cfg.KickSlow)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("HEARTH_PORT", "9090")
	t.Setenv("HEARTH_STORE_DRIVER", "memory")
	t.Setenv("HEARTH_ROOM_CLEANUP_DELAY", "5s")
	t.Setenv("HEARTH_KICK_SLOW", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.RoomCleanupDelay)
	assert.True(t, cfg.KickSlow)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("HEARTH_STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestValidate(t *testing.T) {
	valid := Config{
		PingPeriod:    time.Second,
		PongWait:      2 * time.Second,
		KnockLimit:    1,
		KnockInterval: time.Second,
		Store:         StoreConfig{Driver: "memory"},
		Secret:        "s",
	}
	require.NoError(t, valid.validate())

	bad := valid
	bad.PingPeriod = bad.PongWait
	assert.Error(t, bad.validate())

	bad = valid
	bad.KnockLimit = 0
	assert.Error(t, bad.validate())
}
