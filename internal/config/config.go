// Package config loads spall configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/spall/config.yaml)
//  3. Workspace config ({repo-root}/.spall/spall.json, found by walking up)
//  4. Environment variables (SPALL_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete spall configuration.
type Config struct {
	// DataDir holds spall.db, server.lock and logs. Default ~/.spall.
	DataDir string `yaml:"data_dir"`
	// CacheDir holds downloaded model files. Default ~/.cache/spall.
	CacheDir string `yaml:"cache_dir"`

	Server ServerConfig `yaml:"server"`
	Embed  EmbedConfig  `yaml:"embed"`
	Chunk  ChunkConfig  `yaml:"chunk"`

	// Workspace is the resolved workspace config, nil when no .spall/ dir
	// was found walking up from the working directory.
	Workspace *Workspace `yaml:"-"`
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// IdleTimeoutMS is how long the daemon waits with zero in-flight
	// requests and zero SSE streams before shutting down.
	IdleTimeoutMS int `yaml:"idle_timeout_ms"`
	// Persist disables idle shutdown entirely.
	Persist bool `yaml:"persist"`
	// Force takes over a stale or contested lock on startup.
	Force bool `yaml:"force"`
}

// EmbedConfig configures the embedding model adapter.
type EmbedConfig struct {
	// ModelFile overrides the embedder GGUF file name.
	ModelFile string `yaml:"model_file"`
	// BatchSize is the number of chunks embedded per transaction.
	BatchSize int `yaml:"batch_size"`
	// Offline selects the deterministic hash embedder; no download.
	Offline bool `yaml:"offline"`
}

// ChunkConfig configures the token-window chunker.
type ChunkConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		DataDir:  defaultDataDir(),
		CacheDir: defaultCacheDir(),
		Server: ServerConfig{
			LogLevel:      "info",
			IdleTimeoutMS: 1000,
			Persist:       false,
			Force:         false,
		},
		Embed: EmbedConfig{
			ModelFile: "",
			BatchSize: 16,
			Offline:   false,
		},
		Chunk: ChunkConfig{
			MaxTokens:     512,
			OverlapTokens: 64,
		},
	}
}

// Load builds the effective configuration, resolving the workspace config
// by walking upward from dir.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadUserConfig(); err != nil {
		return nil, err
	}

	ws, err := FindWorkspace(dir)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = ws

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UserConfigPath returns the user config file path, XDG aware.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spall", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "spall", "config.yaml")
	}
	return filepath.Join(home, ".config", "spall", "config.yaml")
}

// DBPath returns the storage backend file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "spall.db")
}

// LockPath returns the leader-election lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "server.lock")
}

// ModelsDir returns the directory holding downloaded model files.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.CacheDir, "models")
}

func (c *Config) loadUserConfig() error {
	path := UserConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no user config is fine
		}
		return fmt.Errorf("failed to read user config %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse user config %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.DataDir != "" {
		c.DataDir = expandHome(other.DataDir)
	}
	if other.CacheDir != "" {
		c.CacheDir = expandHome(other.CacheDir)
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.IdleTimeoutMS != 0 {
		c.Server.IdleTimeoutMS = other.Server.IdleTimeoutMS
	}
	if other.Server.Persist {
		c.Server.Persist = true
	}
	if other.Embed.ModelFile != "" {
		c.Embed.ModelFile = other.Embed.ModelFile
	}
	if other.Embed.BatchSize != 0 {
		c.Embed.BatchSize = other.Embed.BatchSize
	}
	if other.Embed.Offline {
		c.Embed.Offline = true
	}
	if other.Chunk.MaxTokens != 0 {
		c.Chunk.MaxTokens = other.Chunk.MaxTokens
	}
	if other.Chunk.OverlapTokens != 0 {
		c.Chunk.OverlapTokens = other.Chunk.OverlapTokens
	}
}

// applyEnv applies SPALL_* environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("SPALL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SPALL_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("SPALL_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SPALL_SERVER_PERSIST"); v != "" {
		c.Server.Persist = isTruthy(v)
	}
	if v := os.Getenv("SPALL_SERVER_FORCE"); v != "" {
		c.Server.Force = isTruthy(v)
	}
	if v := os.Getenv("SPALL_EMBED_OFFLINE"); v != "" {
		c.Embed.Offline = isTruthy(v)
	}
	if v := os.Getenv("SPALL_SERVER_IDLE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Server.IdleTimeoutMS = ms
		}
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be debug, info, warn or error, got %q", c.Server.LogLevel)
	}
	if c.Server.IdleTimeoutMS <= 0 {
		return fmt.Errorf("server.idle_timeout_ms must be positive, got %d", c.Server.IdleTimeoutMS)
	}
	if c.Embed.BatchSize <= 0 {
		return fmt.Errorf("embed.batch_size must be positive, got %d", c.Embed.BatchSize)
	}
	if c.Chunk.MaxTokens <= 0 {
		return fmt.Errorf("chunk.max_tokens must be positive, got %d", c.Chunk.MaxTokens)
	}
	if c.Chunk.OverlapTokens < 0 || c.Chunk.OverlapTokens >= c.Chunk.MaxTokens {
		return fmt.Errorf("chunk.overlap_tokens must be in [0, max_tokens), got %d", c.Chunk.OverlapTokens)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".spall")
	}
	return filepath.Join(home, ".spall")
}

func defaultCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "spall")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cache", "spall")
	}
	return filepath.Join(home, ".cache", "spall")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
