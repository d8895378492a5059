package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported data source types.
const (
	DataSourceTypePostgres = "postgres"
	DataSourceTypeMSSQL    = "mssql"
)

// IsValidDataSourceType checks if the given type is supported.
func IsValidDataSourceType(t string) bool {
	return t == DataSourceTypePostgres || t == DataSourceTypeMSSQL
}

// DataSource is an external database server connection (Greenplum/PostgreSQL, SQL Server).
// The Config field contains connection details (credentials, host, etc.)
// which are encrypted at rest by the service layer.
type DataSource struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	DataSourceType string         `json:"data_source_type"`
	Config         map[string]any `json:"config"` // Decrypted config, structure varies by type
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
