// ABOUTME: Configuration loading and parsing for tablebridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDrainTimeout bounds how long a closing session waits for in-flight
// dispatches before pending results are discarded.
const DefaultDrainTimeout = 5 * time.Second

// Config represents the complete tablebridge configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// Token, when set, is required as a Bearer token on all /mcp routes.
	Token string `yaml:"token"`
}

// BackendConfig selects and configures the data backend
type BackendConfig struct {
	// Driver is "bigquery" or "sqlite"
	Driver   string         `yaml:"driver"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// BigQueryConfig holds BigQuery connection parameters
type BigQueryConfig struct {
	Project         string `yaml:"project"`
	Location        string `yaml:"location"`
	CredentialsFile string `yaml:"credentials_file"`
	// Datasets, when non-empty, restricts table listing to these datasets.
	Datasets []string `yaml:"datasets"`
}

// SQLiteConfig holds local sqlite backend configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds streaming session tuning
type SessionConfig struct {
	DrainTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	DrainTimeoutRaw string `yaml:"drain_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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

// applyDefaults fills in defaults for optional fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = "bigquery"
	}
	if c.Session.DrainTimeout == 0 {
		c.Session.DrainTimeout = DefaultDrainTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "bigquery":
		if c.Backend.BigQuery.Project == "" {
			return fmt.Errorf("backend.bigquery.project is required")
		}
		if c.Backend.BigQuery.Location == "" {
			return fmt.Errorf("backend.bigquery.location is required")
		}
	case "sqlite":
		if c.Backend.SQLite.Path == "" {
			return fmt.Errorf("backend.sqlite.path is required")
		}
	default:
		return fmt.Errorf("backend.driver must be \"bigquery\" or \"sqlite\", got %q", c.Backend.Driver)
	}

	if c.Session.DrainTimeout < 0 {
		return fmt.Errorf("session.drain_timeout must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Session.DrainTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Session.DrainTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing drain_timeout %q: %w", cfg.Session.DrainTimeoutRaw, err)
		}
		cfg.Session.DrainTimeout = d
	}
	return nil
}
