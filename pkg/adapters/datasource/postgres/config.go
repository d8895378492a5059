package postgres

import (
	"fmt"

	"github.com/ekaya-inc/catalog-engine/pkg/jsonutil"
)

// Config contains PostgreSQL (and Greenplum) connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// DefaultDatabase is the maintenance database used when the config names none.
const DefaultDatabase = "postgres"

// FromMap creates a Config from a data source config map.
// The database is optional; discovery connects to each catalog database in turn.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:     DefaultPort(),
		SSLMode:  DefaultSSLMode(),
		Database: DefaultDatabase,
	}

	host, ok := config["host"].(string)
	if !ok || host == "" {
		return nil, fmt.Errorf("host is required")
	}
	cfg.Host = host

	port, ok, err := jsonutil.FlexibleIntValue(config["port"])
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}
	if ok {
		cfg.Port = port
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	user, ok := config["user"].(string)
	if !ok || user == "" {
		return nil, fmt.Errorf("user is required")
	}
	cfg.User = user

	// Numeric passwords arrive as JSON numbers.
	cfg.Password = jsonutil.FlexibleStringValue(config["password"])

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	}

	if sslMode, ok := config["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	return cfg, nil
}

// WithDatabase returns a copy of the config pointed at another database.
// An empty name keeps the current database.
func (c *Config) WithDatabase(name string) *Config {
	cp := *c
	if name != "" {
		cp.Database = name
	}
	return &cp
}
