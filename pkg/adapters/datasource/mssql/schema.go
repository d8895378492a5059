package mssql

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
)

// SchemaDiscoverer implements datasource.SchemaDiscoverer for SQL Server.
type SchemaDiscoverer struct {
	adapter *Adapter
}

// NewSchemaDiscoverer creates a new SQL Server schema discoverer.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config) (*SchemaDiscoverer, error) {
	adapter, err := NewAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{adapter: adapter}, nil
}

// systemSchemaFilter excludes the schemas SQL Server creates in every database.
const systemSchemaFilter = `
	s.name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
	AND s.name NOT LIKE 'db[_]%'`

// DiscoverSchemas returns the user schemas of the database.
func (s *SchemaDiscoverer) DiscoverSchemas(ctx context.Context) ([]string, error) {
	query := `
	SET NOCOUNT ON;
	SELECT s.name
	FROM sys.schemas s
	WHERE ` + systemSchemaFilter + `
	ORDER BY s.name`

	rows, err := s.adapter.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return schemas, nil
}

// DiscoverRelations returns the user tables and views of a schema.
func (s *SchemaDiscoverer) DiscoverRelations(ctx context.Context, schemaName string) ([]datasource.Relation, error) {
	query := `
	SET NOCOUNT ON;
	SELECT o.name,
	       CASE WHEN o.type = 'V' THEN 'view' ELSE 'table' END AS kind
	FROM sys.objects o
	INNER JOIN sys.schemas s ON s.schema_id = o.schema_id
	WHERE s.name = @p1
	  AND o.type IN ('U', 'V')
	  AND o.is_ms_shipped = 0
	ORDER BY o.name`

	rows, err := s.adapter.db.QueryContext(ctx, query, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var relations []datasource.Relation
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, datasource.Relation{
			Schema: schemaName,
			Name:   name,
			Kind:   datasource.RelationKind(kind),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}
	return relations, nil
}

// Close releases the connection.
func (s *SchemaDiscoverer) Close() error {
	return s.adapter.Close()
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
