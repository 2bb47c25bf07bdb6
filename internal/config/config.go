// Package config handles pngpal configuration loading and saving.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Filename is looked for in the working directory.
const Filename = "pngpal.yaml"

// Config holds all settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Library LibraryConfig `yaml:"library"`
	Convert ConvertConfig `yaml:"convert"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// LibraryConfig holds the palette library settings.
type LibraryConfig struct {
	Path    string `yaml:"path"`
	Workers int    `yaml:"workers"`
}

// ConvertConfig holds defaults for converting true-color images.
type ConvertConfig struct {
	Colors int  `yaml:"colors"`
	Dither bool `yaml:"dither"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Library: LibraryConfig{
			Path:    filepath.Join(Dir(), "library.db"),
			Workers: 4,
		},
		Convert: ConvertConfig{
			Colors: 256,
			Dither: false,
		},
	}
}

// Dir returns the OS-appropriate configuration directory.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "pngpal")
}

// Load returns the defaults overridden by the configuration file at path.
// An empty path searches the working directory and then Dir, and a missing
// file leaves the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = find()
		if path == "" {
			return cfg, nil
		}
	}

	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	return cfg, nil
}

func find() string {
	candidates := []string{
		Filename,
		filepath.Join(Dir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.Convert.Colors < 2 || c.Convert.Colors > 256:
		return fmt.Errorf("convert colors must be between 2 and 256, got %d", c.Convert.Colors)
	case c.Library.Workers < 1:
		return fmt.Errorf("library workers must be at least 1, got %d", c.Library.Workers)
	}
	return nil
}

// SaveTo writes the config to path, creating its directory if needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
