// Package config loads glutton's run configuration: reference database
// location, external tool binaries and their rate limits, worker pool
// sizing, and logging. Structure and the LoadWithEnv injection pattern
// are carried over from the teacher's config package unchanged; the
// fields are the pipeline's own.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RefDB    RefDBConfig   `yaml:"refdb"`
	Cache    CacheConfig   `yaml:"cache"`
	Search   ToolConfig    `yaml:"search"`
	Align    ToolConfig    `yaml:"align"`
	Queue    QueueConfig   `yaml:"queue"`
	Log      LogConfig     `yaml:"log"`
	Inspect  InspectConfig `yaml:"inspect"`
	Progress ProgressConfig `yaml:"progress"`
	WorkDir  string        `yaml:"work_dir"`
	Inputs   []InputConfig `yaml:"inputs"`
}

// ProgressConfig points at the directory holding the four progress
// JSON files.
type ProgressConfig struct {
	Dir string `yaml:"dir"`
}

// InputConfig names one contig file to feed into a run: its path, a
// short label distinguishing it from other inputs, and the species it
// was assembled from.
type InputConfig struct {
	Path    string `yaml:"path"`
	Label   string `yaml:"label"`
	Species string `yaml:"species"`
}

// RefDBConfig points at the reference gene-family database.
type RefDBConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig configures the per-family cache directory.
type CacheConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// ToolConfig configures one external tool: where its binary lives and
// how often the pipeline is allowed to launch it.
type ToolConfig struct {
	Binary        string  `yaml:"binary"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// QueueConfig sizes the worker pool driving external tool runs.
type QueueConfig struct {
	Workers int `yaml:"workers"`
	MaxSize int `yaml:"max_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// InspectConfig controls the optional read-only introspection mount.
type InspectConfig struct {
	MountPath string `yaml:"mount_path"`
}

func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Prefix: "fam",
		},
		Search: ToolConfig{
			Binary:        "blastx",
			RatePerSecond: 2,
			Burst:         50,
		},
		Align: ToolConfig{
			Binary:        "pagan",
			RatePerSecond: 2,
			Burst:         50,
		},
		Queue: QueueConfig{
			Workers: 4,
			MaxSize: 0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadFile loads configuration from an explicit path (e.g. the --config
// flag) instead of the XDG default location, still applying environment
// overrides on top.
func LoadFile(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if p := getenv("GLUTTON_REFDB_PATH"); p != "" {
		cfg.RefDB.Path = p
	}
	if d := getenv("GLUTTON_CACHE_DIR"); d != "" {
		cfg.Cache.Dir = d
	}
	return cfg, nil
}

// LoadWithEnv loads configuration using the provided environment lookup
// function. This allows tests to provide isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment variables override config file.
	if p := getenv("GLUTTON_REFDB_PATH"); p != "" {
		cfg.RefDB.Path = p
	}
	if d := getenv("GLUTTON_CACHE_DIR"); d != "" {
		cfg.Cache.Dir = d
	}

	return cfg, nil
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "glutton", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "glutton", "config.yaml")
}
