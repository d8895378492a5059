package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
)

// SchemaRepository provides data access for schemas and their counter cache.
type SchemaRepository interface {
	Create(ctx context.Context, schema *models.Schema) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schema, error)
	GetByName(ctx context.Context, databaseID uuid.UUID, name string) (*models.Schema, error)
	ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Schema, error)

	// AdjustActiveCount applies delta to the schema's counter balance in a single
	// UPDATE against the stored value and returns the new active_tables_and_views_count.
	// The balance keeps every delta and the published count is the balance floored
	// at zero, so an increment that only repays a floored decrement leaves it at zero.
	// Returns apperrors.ErrNotFound if the schema row does not exist.
	AdjustActiveCount(ctx context.Context, schemaID uuid.UUID, delta int) (int, error)

	UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error
	// MarkStaleByDatabase stamps every schema of the database stale as of at.
	// Returns the number of schemas updated.
	MarkStaleByDatabase(ctx context.Context, databaseID uuid.UUID, at time.Time) (int64, error)
	// MarkRefreshed records a completed refresh and clears the schema's staleness.
	MarkRefreshed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type schemaRepository struct{}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository() SchemaRepository {
	return &schemaRepository{}
}

var _ SchemaRepository = (*schemaRepository)(nil)

const schemaColumns = `id, database_id, name, stale_at, active_tables_and_views_count,
		refreshed_at, created_at, updated_at`

func (r *schemaRepository) Create(ctx context.Context, schema *models.Schema) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	if schema.ID == uuid.Nil {
		schema.ID = uuid.New()
	}
	schema.CreatedAt = now
	schema.UpdatedAt = now

	// The counter cache always starts at zero; it only moves through AdjustActiveCount.
	schema.ActiveTablesAndViewsCount = 0

	_, err = conn.Exec(ctx, `
		INSERT INTO schemas (id, database_id, name, stale_at, active_tables_and_views_count,
			active_tables_and_views_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $6)`,
		schema.ID, schema.DatabaseID, schema.Name, schema.StaleAt, schema.CreatedAt, schema.UpdatedAt,
	)
	if err != nil {
		switch {
		case isPgError(err, pgUniqueViolation):
			return apperrors.ErrConflict
		case isPgError(err, pgForeignKeyViolation):
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *schemaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSchema(conn.QueryRow(ctx, `SELECT `+schemaColumns+` FROM schemas WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return s, nil
}

func (r *schemaRepository) GetByName(ctx context.Context, databaseID uuid.UUID, name string) (*models.Schema, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSchema(conn.QueryRow(ctx,
		`SELECT `+schemaColumns+` FROM schemas WHERE database_id = $1 AND name = $2`,
		databaseID, name))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return s, nil
}

func (r *schemaRepository) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Schema, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+schemaColumns+` FROM schemas WHERE database_id = $1 ORDER BY name`,
		databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	schemas := make([]*models.Schema, 0)
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemas: %w", err)
	}
	return schemas, nil
}

func (r *schemaRepository) AdjustActiveCount(ctx context.Context, schemaID uuid.UUID, delta int) (int, error) {
	conn, err := querier(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = conn.QueryRow(ctx, `
		UPDATE schemas
		SET active_tables_and_views_balance = active_tables_and_views_balance + $2,
		    active_tables_and_views_count = GREATEST(active_tables_and_views_balance + $2, 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING active_tables_and_views_count`,
		schemaID, delta,
	).Scan(&count)
	if err != nil {
		if database.IsNoRows(err) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to adjust active tables and views count: %w", err)
	}
	return count, nil
}

func (r *schemaRepository) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE schemas SET stale_at = $2, updated_at = NOW() WHERE id = $1`,
		id, staleAt)
	if err != nil {
		return fmt.Errorf("failed to update schema staleness: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *schemaRepository) MarkStaleByDatabase(ctx context.Context, databaseID uuid.UUID, at time.Time) (int64, error) {
	conn, err := querier(ctx)
	if err != nil {
		return 0, err
	}

	result, err := conn.Exec(ctx,
		`UPDATE schemas SET stale_at = $2, updated_at = NOW() WHERE database_id = $1`,
		databaseID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark schemas stale: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *schemaRepository) MarkRefreshed(ctx context.Context, id uuid.UUID, at time.Time) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE schemas SET refreshed_at = $2, stale_at = NULL, updated_at = NOW() WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to mark schema refreshed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanSchema(row pgx.Row) (*models.Schema, error) {
	var s models.Schema
	if err := row.Scan(
		&s.ID, &s.DatabaseID, &s.Name, &s.StaleAt, &s.ActiveTablesAndViewsCount,
		&s.RefreshedAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
