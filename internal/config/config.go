// ABOUTME: Configuration loading and parsing for noted-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete noted-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Static   StaticConfig   `yaml:"static"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	// HTTPAddr is the listen address, e.g. "localhost:3000"
	HTTPAddr string `yaml:"http_addr"`
	// PublicURL is the externally reachable base URL, used to build the
	// links embedded in emails and the database URLs returned on exchange
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig holds the credential store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig holds the document database backend configuration
type BackendConfig struct {
	// URL of the CouchDB-compatible server that /db requests are proxied to
	URL string `yaml:"url"`
}

// SMTPConfig holds outbound mail transport configuration.
// An empty host disables dispatch; sign-in links are logged instead.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// StaticConfig holds static asset serving configuration
type StaticConfig struct {
	// Dir is served at the site root when set (the client app bundle)
	Dir string `yaml:"dir"`
}

// AuthConfig holds authorizer tuning
type AuthConfig struct {
	// CacheTTL bounds how long a partition passphrase may be served from
	// memory. Zero disables the cache and every request reads the store.
	CacheTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CacheTTLRaw string `yaml:"cache_ttl"`
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

	// NOTED_DB_PATH overrides the configured store location
	if envPath := os.Getenv("NOTED_DB_PATH"); envPath != "" {
		cfg.Database.Path = envPath
	}

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

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required when smtp.host is set")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Auth.CacheTTLRaw != "" {
		var err error
		cfg.Auth.CacheTTL, err = time.ParseDuration(cfg.Auth.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Auth.CacheTTLRaw, err)
		}
	}
	return nil
}
