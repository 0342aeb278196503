package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 1000, cfg.Server.IdleTimeoutMS)
	assert.False(t, cfg.Server.Persist)
	assert.Equal(t, 16, cfg.Embed.BatchSize)
	assert.False(t, cfg.Embed.Offline)
	assert.Equal(t, 512, cfg.Chunk.MaxTokens)
	assert.Equal(t, 64, cfg.Chunk.OverlapTokens)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPALL_DATA_DIR", "/tmp/spall-data")
	t.Setenv("SPALL_CACHE_DIR", "/tmp/spall-cache")
	t.Setenv("SPALL_LOG_LEVEL", "debug")
	t.Setenv("SPALL_SERVER_PERSIST", "true")
	t.Setenv("SPALL_SERVER_FORCE", "1")
	t.Setenv("SPALL_EMBED_OFFLINE", "yes")
	t.Setenv("SPALL_SERVER_IDLE_TIMEOUT_MS", "2500")

	cfg := New()
	cfg.applyEnv()

	assert.Equal(t, "/tmp/spall-data", cfg.DataDir)
	assert.Equal(t, "/tmp/spall-cache", cfg.CacheDir)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.True(t, cfg.Server.Persist)
	assert.True(t, cfg.Server.Force)
	assert.True(t, cfg.Embed.Offline)
	assert.Equal(t, 2500, cfg.Server.IdleTimeoutMS)
}

func TestApplyEnv_IgnoresBadIdleTimeout(t *testing.T) {
	t.Setenv("SPALL_SERVER_IDLE_TIMEOUT_MS", "not-a-number")
	cfg := New()
	cfg.applyEnv()
	assert.Equal(t, 1000, cfg.Server.IdleTimeoutMS)

	t.Setenv("SPALL_SERVER_IDLE_TIMEOUT_MS", "-50")
	cfg.applyEnv()
	assert.Equal(t, 1000, cfg.Server.IdleTimeoutMS)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"zero idle timeout", func(c *Config) { c.Server.IdleTimeoutMS = 0 }},
		{"zero batch size", func(c *Config) { c.Embed.BatchSize = 0 }},
		{"zero max tokens", func(c *Config) { c.Chunk.MaxTokens = 0 }},
		{"overlap >= max tokens", func(c *Config) { c.Chunk.OverlapTokens = 512 }},
		{"negative overlap", func(c *Config) { c.Chunk.OverlapTokens = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMergeWith(t *testing.T) {
	cfg := New()
	cfg.mergeWith(&Config{
		DataDir: "/custom/data",
		Server:  ServerConfig{LogLevel: "warn", Persist: true},
		Embed:   EmbedConfig{BatchSize: 4},
	})

	assert.Equal(t, "/custom/data", cfg.DataDir)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.True(t, cfg.Server.Persist)
	assert.Equal(t, 4, cfg.Embed.BatchSize)

	// Zero values in the overlay leave the base alone.
	assert.Equal(t, 1000, cfg.Server.IdleTimeoutMS)
	assert.Equal(t, 512, cfg.Chunk.MaxTokens)
}

func TestLoad_LayersUserConfigAndEnv(t *testing.T) {
	confHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", confHome)

	dir := filepath.Join(confHome, "spall")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	yaml := "server:\n  log_level: warn\n  idle_timeout_ms: 9000\nembed:\n  batch_size: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	// Environment outranks the user config file.
	t.Setenv("SPALL_LOG_LEVEL", "error")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Server.LogLevel)
	assert.Equal(t, 9000, cfg.Server.IdleTimeoutMS)
	assert.Equal(t, 8, cfg.Embed.BatchSize)
	assert.Nil(t, cfg.Workspace)
}

func TestLoad_RejectsInvalidUserConfig(t *testing.T) {
	confHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", confHome)

	dir := filepath.Join(confHome, "spall")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("server:\n  log_level: chatty\n"), 0o644))

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestPaths(t *testing.T) {
	cfg := New()
	cfg.DataDir = "/data"
	cfg.CacheDir = "/cache"

	assert.Equal(t, filepath.Join("/data", "spall.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/data", "server.lock"), cfg.LockPath())
	assert.Equal(t, filepath.Join("/cache", "models"), cfg.ModelsDir())
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "on"} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"0", "false", "no", "off", ""} {
		assert.False(t, isTruthy(v), v)
	}
}
