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

// DatasetRepository provides data access for tables, views and chorus views.
// Soft-deleted datasets are invisible to every read.
type DatasetRepository interface {
	// Create inserts a dataset. Returns apperrors.ErrConflict when a live dataset with the
	// same name exists in the schema, apperrors.ErrNotFound when the schema is missing.
	Create(ctx context.Context, ds *models.Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	// LockByID reads the dataset row with FOR UPDATE. Must run inside a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetByName(ctx context.Context, schemaID uuid.UUID, name string) (*models.Dataset, error)
	ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error)
	// ListIndexable returns live, fresh datasets ordered by id, starting after afterID.
	ListIndexable(ctx context.Context, afterID uuid.UUID, limit int) ([]*models.Dataset, error)
	UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type datasetRepository struct{}

// NewDatasetRepository creates a new DatasetRepository.
func NewDatasetRepository() DatasetRepository {
	return &datasetRepository{}
}

var _ DatasetRepository = (*datasetRepository)(nil)

const datasetColumns = `id, schema_id, name, kind, query, stale_at, deleted_at, created_at, updated_at`

func (r *datasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	ds.CreatedAt = now
	ds.UpdatedAt = now

	_, err = conn.Exec(ctx, `
		INSERT INTO datasets (id, schema_id, name, kind, query, stale_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ds.ID, ds.SchemaID, ds.Name, string(ds.Kind), ds.Query, ds.StaleAt, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		switch {
		case isPgError(err, pgUniqueViolation):
			return apperrors.ErrConflict
		case isPgError(err, pgForeignKeyViolation):
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return r.getOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *datasetRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return r.getOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
}

func (r *datasetRepository) GetByName(ctx context.Context, schemaID uuid.UUID, name string) (*models.Dataset, error) {
	return r.getOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE schema_id = $1 AND name = $2 AND deleted_at IS NULL`,
		schemaID, name)
}

func (r *datasetRepository) getOne(ctx context.Context, query string, args ...any) (*models.Dataset, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := scanDataset(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return ds, nil
}

func (r *datasetRepository) ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error) {
	return r.list(ctx,
		`SELECT `+datasetColumns+` FROM datasets
		 WHERE schema_id = $1 AND deleted_at IS NULL
		 ORDER BY name`,
		schemaID)
}

func (r *datasetRepository) ListIndexable(ctx context.Context, afterID uuid.UUID, limit int) ([]*models.Dataset, error) {
	return r.list(ctx,
		`SELECT `+datasetColumns+` FROM datasets
		 WHERE deleted_at IS NULL AND stale_at IS NULL AND id > $1
		 ORDER BY id
		 LIMIT $2`,
		afterID, limit)
}

func (r *datasetRepository) list(ctx context.Context, query string, args ...any) ([]*models.Dataset, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*models.Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}
	return datasets, nil
}

func (r *datasetRepository) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE datasets SET stale_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, staleAt)
	if err != nil {
		return fmt.Errorf("failed to update dataset staleness: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *datasetRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE datasets SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var ds models.Dataset
	var kind string
	if err := row.Scan(
		&ds.ID, &ds.SchemaID, &ds.Name, &kind, &ds.Query, &ds.StaleAt, &ds.DeletedAt,
		&ds.CreatedAt, &ds.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ds.Kind = models.DatasetKind(kind)
	return &ds, nil
}
