// ABOUTME: Configuration loading and parsing for reqstore
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "REQSTORE_CONFIG"

// Config represents the complete reqstore configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Bodies   BodiesConfig   `yaml:"bodies" toml:"bodies"`
	Events   EventsConfig   `yaml:"events" toml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	App      AppConfig      `yaml:"app" toml:"app"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// BodiesConfig selects where response bodies live
type BodiesConfig struct {
	Driver string   `yaml:"driver" toml:"driver"` // "fs" or "s3"
	S3     S3Config `yaml:"s3" toml:"s3"`
}

// S3Config holds S3-compatible object storage settings
type S3Config struct {
	Bucket    string `yaml:"bucket" toml:"bucket"` // body paths in other buckets are not deleted
	Region    string `yaml:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint"` // optional, for MinIO
	PathStyle bool   `yaml:"path_style" toml:"path_style"`
}

// EventsConfig holds the UI event stream configuration
type EventsConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	BufferSize   int           `yaml:"buffer_size" toml:"buffer_size"`
	PingInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	PingIntervalRaw string `yaml:"ping_interval" toml:"ping_interval"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// AppConfig holds values stamped into exports
type AppConfig struct {
	Version string `yaml:"version" toml:"version"`
}

// Default returns a configuration usable without a file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDatabasePath(), Driver: "sqlite"},
		Bodies:   BodiesConfig{Driver: "fs"},
		Events: EventsConfig{
			Addr:         "127.0.0.1:7717",
			BufferSize:   64,
			PingInterval: 30 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		App:     AppConfig{Version: "dev"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Unset fields keep the values from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Database.Path = expandHome(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath picks the config file location: an explicit flag value wins,
// then $REQSTORE_CONFIG, then the XDG default. The returned bool reports
// whether the file exists.
func ResolvePath(flagValue string) (string, bool) {
	path := flagValue
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath()
	}
	_, err := os.Stat(path)
	return path, err == nil
}

// DefaultPath returns $XDG_CONFIG_HOME/reqstore/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "reqstore", "config.yaml")
}

func defaultDatabasePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "reqstore", "app.db")
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	switch c.Bodies.Driver {
	case "fs":
	case "s3":
		if c.Bodies.S3.Bucket == "" {
			return fmt.Errorf("bodies.s3.bucket is required when bodies.driver is s3")
		}
	default:
		return fmt.Errorf("bodies.driver must be fs or s3, got %q", c.Bodies.Driver)
	}

	if c.Events.BufferSize < 1 {
		return fmt.Errorf("events.buffer_size must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Events.PingIntervalRaw == "" {
		cfg.Events.PingInterval = 30 * time.Second
		return nil
	}

	d, err := time.ParseDuration(cfg.Events.PingIntervalRaw)
	if err != nil {
		return fmt.Errorf("parsing ping_interval %q: %w", cfg.Events.PingIntervalRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("ping_interval must be positive, got %s", d)
	}
	cfg.Events.PingInterval = d
	return nil
}
