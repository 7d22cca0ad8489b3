package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the settings read at startup. Command line flags override them.
type Config struct {
	SampleRate    int    `yaml:"sampleRate"`
	BlockSize     int    `yaml:"blockSize"`
	Backend       string `yaml:"backend"`
	DrainPerBlock int    `yaml:"drainPerBlock"`
	Project       string `yaml:"project,omitempty"`
	History       string `yaml:"history,omitempty"`
}

// DefaultConfig returns the settings used when there is no config file.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:    48000,
		BlockSize:     256,
		Backend:       "portaudio",
		DrainPerBlock: 256,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chipvibe"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default location, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", c.BlockSize)
	}
	if c.DrainPerBlock <= 0 {
		return fmt.Errorf("invalid drain limit: %d", c.DrainPerBlock)
	}
	switch c.Backend {
	case "portaudio", "oto", "none":
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	return nil
}

// HistoryPath returns the REPL history file, defaulting to one next to the config file.
func (c *Config) HistoryPath() string {
	if c.History != "" {
		return c.History
	}
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return c.SaveFile(filepath.Join(dir, "config.yaml"))
}

func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
