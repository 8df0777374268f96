package views

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes where views live and how they are cached.
type Config struct {
	// Views is the directory holding the templates.
	Views string `yaml:"views"`
	// MaxIncludeDepth bounds nested includes. Zero keeps the default.
	MaxIncludeDepth int `yaml:"max_include_depth"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the file cache. An empty Dir disables caching.
type CacheConfig struct {
	Dir      string        `yaml:"dir"`
	TTL      time.Duration `yaml:"ttl"`
	Compress bool          `yaml:"compress"`
	HashKeys bool          `yaml:"hash_keys"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Level returns the slog level named by LogLevel, info when empty.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// CacheStore returns the file store described by the config, or nil when caching is off.
func (c *Config) CacheStore() CacheStore {
	if c.Cache.Dir == "" {
		return nil
	}
	var opts []FileStoreOption
	if c.Cache.Compress {
		opts = append(opts, WithCompression())
	}
	if c.Cache.HashKeys {
		opts = append(opts, WithHashedKeys())
	}
	return NewFileStore(c.Cache.Dir, opts...)
}

// NewFactory loads the engine and builds a factory from the config.
func (c *Config) NewFactory(logger *slog.Logger) (*Factory, error) {
	if c.Views == "" {
		return nil, fmt.Errorf("config: views directory is required")
	}
	engine := NewEngine(c.Views)
	if err := engine.Load(); err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(logger),
		WithMaxIncludeDepth(c.MaxIncludeDepth),
	}
	if store := c.CacheStore(); store != nil {
		opts = append(opts, WithCacheStore(store))
	}
	return NewFactory(engine, opts...), nil
}
