// Package config loads and validates the KageDB storage configuration.
package config

import (
	"fmt"
	"os"

	"github.com/kagedb/kagedb/pkg/logger"
	"github.com/kagedb/kagedb/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the durability core.
type Config struct {
	// DataFile is the path of the page store file.
	DataFile string `yaml:"data_file"`
	// WALFile is the path of the write-ahead log file.
	WALFile string `yaml:"wal_file"`
	// CacheCapacity is the soft page cache limit, in pages. Dirty pages are
	// never evicted, so the cache may temporarily exceed it.
	CacheCapacity int `yaml:"cache_capacity"`

	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		DataFile:      "data/kagedb.db",
		WALFile:       "data/kagedb.wal",
		CacheCapacity: 1024,
		Logger: logger.Config{
			Level:  "info",
			Format: "json",
		},
		Telemetry: telemetry.Config{
			Enabled:        false,
			ServiceName:    "kagedb",
			PrometheusPort: 9464,
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the storage core cannot run
// with.
func (c Config) Validate() error {
	if c.DataFile == "" {
		return fmt.Errorf("data_file must not be empty")
	}
	if c.WALFile == "" {
		return fmt.Errorf("wal_file must not be empty")
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be at least 1, got %d", c.CacheCapacity)
	}
	return nil
}
