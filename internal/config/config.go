// Package config loads plancraft configuration from a YAML file, the
// environment (PLANCRAFT_*), and built-in defaults, in that order of
// precedence: environment over file over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PLANCRAFT_WORKSPACE_ROOT.
const EnvPrefix = "PLANCRAFT"

// Backend names.
const (
	BackendFS   = "fs"
	BackendNATS = "nats"
)

// Config is the full plancraft configuration.
type Config struct {
	Workspace  WorkspaceConfig  `mapstructure:"workspace" yaml:"workspace"`
	NATS       NATSConfig       `mapstructure:"nats" yaml:"nats"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// WorkspaceConfig selects where plans are stored.
type WorkspaceConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "fs" or "nats"
	Root    string `mapstructure:"root" yaml:"root"`
}

// NATSConfig configures the JetStream key-value backend.
type NATSConfig struct {
	URL      string `mapstructure:"url" yaml:"url,omitempty"`
	Embedded bool   `mapstructure:"embedded" yaml:"embedded"`
	StoreDir string `mapstructure:"store_dir" yaml:"store_dir,omitempty"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
}

// CheckpointConfig bounds checkpoint I/O.
type CheckpointConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text", "json"
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Dir returns ~/.plancraft.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".plancraft"), nil
}

// DefaultPath returns the path of the global configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	root := filepath.Join(".plancraft", "plans")
	if dir, err := Dir(); err == nil {
		root = filepath.Join(dir, "plans")
	}

	v.SetDefault("workspace.backend", BackendFS)
	v.SetDefault("workspace.root", root)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.embedded", false)
	v.SetDefault("nats.store_dir", "")
	v.SetDefault("nats.bucket", "PLANCRAFT_WORKSPACES")
	v.SetDefault("checkpoint.timeout", 10*time.Second)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("server.addr", "127.0.0.1:8765")
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path == "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}
	return v, nil
}

// Load reads configuration from path (or the default location when empty)
// and the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Workspace.Root = expandHome(cfg.Workspace.Root)
	cfg.NATS.StoreDir = expandHome(cfg.NATS.StoreDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendFS, BackendNATS}, c.Workspace.Backend) {
		return fmt.Errorf("workspace.backend must be %q or %q, got %q", BackendFS, BackendNATS, c.Workspace.Backend)
	}
	if c.Workspace.Backend == BackendFS && c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required for the fs backend")
	}
	if c.Workspace.Backend == BackendNATS && c.NATS.URL == "" && !c.NATS.Embedded {
		return fmt.Errorf("nats.url is required unless nats.embedded is set")
	}
	if c.Checkpoint.Timeout <= 0 {
		return fmt.Errorf("checkpoint.timeout must be positive, got %s", c.Checkpoint.Timeout)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}
	return nil
}

// Get returns a single value by dotted key, after file and environment
// overrides are applied.
func Get(path, key string) (any, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
	return v.Get(key), nil
}

// Set writes one dotted key into the file at path, keeping other values.
func Set(path, key, value string) error {
	v := viper.New()
	setDefaults(v)
	if !v.IsSet(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Save(&cfg, path)
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}
