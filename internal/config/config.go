package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"http-trace/internal/tracefile"
)

const (
	defaultOutput       = tracefile.Stdio
	defaultMaxLineBytes = 10 * 1024 * 1024
)

// Config captures runtime configuration loaded from YAML.
type Config struct {
	// Output is the destination file; "-" writes to stdout.
	Output string `yaml:"output"`
	// Compression is none, gzip or zstd. Empty infers it from Output.
	Compression   string `yaml:"compression"`
	SkipMalformed bool   `yaml:"skipMalformed"`
	MaxLineBytes  int    `yaml:"maxLineBytes"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load parses a YAML config file from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	if _, err := tracefile.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("invalid config: maxLineBytes must not be negative, got %d", c.MaxLineBytes)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = defaultMaxLineBytes
	}
}
