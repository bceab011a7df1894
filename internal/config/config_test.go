package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Reads values from the config file", func(t *testing.T) {
		// Given: a config file overriding a few values
		path := filepath.Join(t.TempDir(), "config.yml")
		content := []byte("log-level: debug\nredis:\n  host: redis\nliveness:\n  timeout: 45s\n")
		require.NoError(t, os.WriteFile(path, content, 0o600))

		// When: loading it
		conf, err := Load(path)

		// Then: file values win and the rest falls back to defaults
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "redis:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, 45*time.Second, conf.Liveness.Timeout)
		assert.Equal(t, 10*time.Second, conf.Liveness.HeartbeatInterval)
		assert.Equal(t, 20, conf.Room.CreateAttempts)
	})

	t.Run("Falls back to defaults when the file is missing", func(t *testing.T) {
		// Given: a path that does not exist
		path := filepath.Join(t.TempDir(), "missing.yml")

		// When: loading it
		conf, err := Load(path)

		// Then: defaults are applied
		require.NoError(t, err)
		assert.Equal(t, StoreRedis, conf.Store)
		assert.Equal(t, "9091", conf.SocketPort)
		assert.Equal(t, 24*time.Hour, conf.Redis.RoomTTL)
		assert.Equal(t, "ws://localhost:9091/ws", conf.Client.ServerURL)
	})

	t.Run("Environment overrides defaults", func(t *testing.T) {
		// Given: an env override and no file
		t.Setenv("STORE", StoreMemory)
		t.Setenv("REDIS_DB", "2")
		path := filepath.Join(t.TempDir(), "missing.yml")

		// When: loading
		conf, err := Load(path)

		// Then: the env values are used
		require.NoError(t, err)
		assert.Equal(t, StoreMemory, conf.Store)
		assert.Equal(t, 2, conf.Redis.DB)
		assert.Empty(t, conf.Redis.Password)
	})
}
