package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed runtime configuration.
type Config struct {
	Provider string `yaml:"provider"` // openai or anthropic
	Model    string `yaml:"model"`    // provider-specific model id, empty for the adapter default

	// DataDir holds per-thread state files. Threads in here survive restarts,
	// including suspended review checkpoints.
	DataDir string `yaml:"data_dir"`

	Log struct {
		Level  string `yaml:"level"`  // debug, info, warn, error
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.Provider = "openai"
	c.DataDir = defaultDataDir()
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// LoadConfig reads a YAML config file, layering it over the defaults. An empty
// path yields the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q (want openai or anthropic)", c.Provider)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".concierge", "threads")
	}
	return filepath.Join(".", ".concierge", "threads")
}
