package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"mutse/internal/ilspy"
	"mutse/internal/services/decompile"
	"mutse/internal/services/exdf"
	"mutse/internal/services/watch"
	"mutse/internal/tree"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MUTSE_"
	// EnvConfigPath is the environment variable for an explicit config path.
	EnvConfigPath = EnvPrefix + "CONFIG"
	// ConfigFileName is looked up in the working directory.
	ConfigFileName = "mutse.yaml"
	// ConfigDirName is the config directory name under XDG.
	ConfigDirName = "mutse"
)

// Config holds runtime options for building the app.
type Config struct {
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL"`
	Workers  int      `yaml:"workers" env:"WORKERS"` // 0 means one per CPU
	Exclude  []string `yaml:"exclude" env:"EXCLUDE" envSeparator:","`

	Exdf       ExdfConfig       `yaml:"exdf" envPrefix:"EXDF_"`
	Decompiler DecompilerConfig `yaml:"decompiler" envPrefix:"DECOMPILER_"`
	Watch      WatchConfig      `yaml:"watch" envPrefix:"WATCH_"`
}

// ExdfConfig controls decryption.
type ExdfConfig struct {
	Extension       string `yaml:"extension" env:"EXTENSION"`
	OutputExtension string `yaml:"output_extension" env:"OUTPUT_EXTENSION"`
	Pretty          bool   `yaml:"pretty" env:"PRETTY"`
	Incremental     bool   `yaml:"incremental" env:"INCREMENTAL"`
}

// DecompilerConfig controls the external ilspycmd tool.
type DecompilerConfig struct {
	Binary     string        `yaml:"binary" env:"BINARY"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Extensions []string      `yaml:"extensions" env:"EXTENSIONS" envSeparator:","`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Exdf: ExdfConfig{
			Extension:       exdf.DefaultExtension,
			OutputExtension: exdf.DefaultOutputExtension,
			Pretty:          true,
		},
		Decompiler: DecompilerConfig{
			Binary:     ilspy.DefaultBinary,
			Timeout:    ilspy.DefaultTimeout,
			Extensions: append([]string(nil), decompile.DefaultExtensions...),
		},
		Watch: WatchConfig{Debounce: watch.DefaultDebounce},
	}
}

// Load reads the config file at path, or $MUTSE_CONFIG, or the first one
// FindConfigPath locates, then applies environment overrides. An explicit
// path that cannot be read is an error.
// It returns the file actually used, which is empty when none was found.
func Load(path string) (*Config, string, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = FindConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, path, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, path, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, path, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if err := tree.ValidatePatterns(c.Exclude); err != nil {
		return err
	}
	for _, ext := range append([]string{c.Exdf.Extension, c.Exdf.OutputExtension}, c.Decompiler.Extensions...) {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if c.Decompiler.Timeout < 0 {
		return fmt.Errorf("decompiler timeout must be >= 0, got %s", c.Decompiler.Timeout)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must be >= 0, got %s", c.Watch.Debounce)
	}
	return nil
}

// FindConfigPath searches for a config file in priority order:
//  1. ./mutse.yaml (working directory)
//  2. $XDG_CONFIG_HOME/mutse/config.yaml
//  3. ~/.config/mutse/config.yaml
//
// Returns empty string if no config file is found.
func FindConfigPath() string {
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if p := filepath.Join(xdg, ConfigDirName, "config.yaml"); fileExists(p) {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if p := filepath.Join(home, ".config", ConfigDirName, "config.yaml"); fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
