package datasource

import "context"

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// RelationKind is the kind of a discovered relation.
type RelationKind string

const (
	RelationTable RelationKind = "table"
	RelationView  RelationKind = "view"
)

// Relation is a table or view found in a source schema.
type Relation struct {
	Schema string       `json:"schema"`
	Name   string       `json:"name"`
	Kind   RelationKind `json:"kind"`
}

// SchemaDiscoverer reads the catalog of one database of a data source.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverSchemas returns the user schema names (system schemas excluded), sorted.
	DiscoverSchemas(ctx context.Context) ([]string, error)

	// DiscoverRelations returns the tables and views of a schema, sorted by name.
	DiscoverRelations(ctx context.Context, schemaName string) ([]Relation, error)

	// Close releases the database connection.
	Close() error
}
