package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
)

// SchemaDiscoverer provides PostgreSQL schema discovery.
type SchemaDiscoverer struct {
	pool *pgxpool.Pool
}

// NewSchemaDiscoverer creates a PostgreSQL schema discoverer with its own pool.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config) (*SchemaDiscoverer, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{pool: pool}, nil
}

// Close releases the pool.
func (d *SchemaDiscoverer) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// DiscoverSchemas returns all user schemas (excludes system and temp schemas).
func (d *SchemaDiscoverer) DiscoverSchemas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT nspname
		FROM pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND nspname NOT LIKE 'pg_temp_%'
		  AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname
	`

	rows, err := d.pool.Query(ctx, query)
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

// DiscoverRelations returns the tables and views of a schema.
// Partitioned and foreign tables count as tables; materialized views count as views.
func (d *SchemaDiscoverer) DiscoverRelations(ctx context.Context, schemaName string) ([]datasource.Relation, error) {
	const query = `
		SELECT c.relname,
		       CASE WHEN c.relkind IN ('v', 'm') THEN 'view' ELSE 'table' END AS kind
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p', 'f', 'v', 'm')
		  AND NOT c.relispartition
		ORDER BY c.relname
	`

	rows, err := d.pool.Query(ctx, query, schemaName)
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

// Ensure SchemaDiscoverer implements SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
