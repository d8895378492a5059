package mssql

import (
	"fmt"

	"github.com/ekaya-inc/catalog-engine/pkg/jsonutil"
)

// Supported authentication methods.
const (
	AuthMethodSQL              = "sql"
	AuthMethodServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod determines which authentication to use: "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// DefaultDatabase is used when the config names no database.
const DefaultDatabase = "master"

// FromMap creates a Config from a generic config map and auto-detects the auth method.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Database:          DefaultDatabase,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
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

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	}

	switch encrypt := config["encrypt"].(type) {
	case bool:
		cfg.Encrypt = encrypt
	case string:
		// "true", "false", "strict"
		cfg.Encrypt = encrypt == "true" || encrypt == "strict"
	}

	if trust, ok := config["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	switch timeout := config["connection_timeout"].(type) {
	case float64:
		cfg.ConnectionTimeout = int(timeout)
	case int:
		cfg.ConnectionTimeout = timeout
	}

	if authMethod, ok := config["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := config["client_id"].(string); hasClientID {
		cfg.AuthMethod = AuthMethodServicePrincipal
	} else if username, _ := config["username"].(string); username != "" {
		cfg.AuthMethod = AuthMethodSQL
	} else if user, _ := config["user"].(string); user != "" {
		cfg.AuthMethod = AuthMethodSQL
	} else {
		return nil, fmt.Errorf("could not auto-detect auth method; no credentials provided")
	}

	switch cfg.AuthMethod {
	case AuthMethodSQL:
		if username, ok := config["username"].(string); ok && username != "" {
			cfg.Username = username
		} else if user, ok := config["user"].(string); ok {
			cfg.Username = user
		}
		// Numeric passwords arrive as JSON numbers.
		cfg.Password = jsonutil.FlexibleStringValue(config["password"])

	case AuthMethodServicePrincipal:
		cfg.TenantID, _ = config["tenant_id"].(string)
		cfg.ClientID, _ = config["client_id"].(string)
		cfg.ClientSecret, _ = config["client_secret"].(string)

	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthMethodSQL:
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthMethodServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}

	return nil
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
