package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for catalog-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database configuration (PostgreSQL catalog store)
	Database DatabaseConfig `yaml:"database"`

	// Search index configuration
	Search SearchConfig `yaml:"search"`

	// Refresh and reindex settings
	Refresh RefreshConfig `yaml:"refresh"`

	// Credential encryption key for data source configs (hosts, users, passwords).
	// A 32-byte base64 key or a passphrase. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"catalog_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// SearchConfig holds the search index (Solr) settings.
type SearchConfig struct {
	// Enabled turns index pushes on. When false every index update is discarded.
	Enabled        bool   `yaml:"enabled" env:"SEARCH_ENABLED" env-default:"false"`
	URL            string `yaml:"url" env:"SEARCH_URL" env-default:"http://localhost:8983"`
	Core           string `yaml:"core" env:"SEARCH_CORE" env-default:"catalog"`
	RetryMax       int    `yaml:"retry_max" env:"SEARCH_RETRY_MAX" env-default:"3"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"SEARCH_TIMEOUT_SECONDS" env-default:"10"`
}

// Timeout returns the per-request timeout.
func (c *SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshConfig holds refresh and reindex settings.
type RefreshConfig struct {
	// ReindexBatchSize is the number of datasets pushed per commit by a full reindex.
	ReindexBatchSize int `yaml:"reindex_batch_size" env:"REINDEX_BATCH_SIZE" env-default:"500"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// CREDENTIALS_KEY) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if c.Refresh.ReindexBatchSize <= 0 {
		return fmt.Errorf("refresh.reindex_batch_size must be positive, got %d", c.Refresh.ReindexBatchSize)
	}
	if c.Search.Enabled {
		if c.Search.URL == "" || c.Search.Core == "" {
			return fmt.Errorf("search.url and search.core are required when search is enabled")
		}
		if c.Search.RetryMax < 0 {
			return fmt.Errorf("search.retry_max must not be negative")
		}
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Example returns a configuration populated with the defaults.
func Example() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// WriteExample writes a sample config.yaml to w. Secrets are never written.
func WriteExample(w io.Writer) error {
	cfg, err := Example()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "# catalog-engine configuration")
	fmt.Fprintln(w, "# Secrets come from the environment: PGPASSWORD, CREDENTIALS_KEY")

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
