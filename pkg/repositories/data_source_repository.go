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

// DataSourceRepository defines the interface for data source data access.
// Config is stored as encrypted TEXT - encryption/decryption is handled by the service layer.
type DataSourceRepository interface {
	// Create inserts a new data source. Returns apperrors.ErrConflict if the name is taken.
	Create(ctx context.Context, ds *models.DataSource, encryptedConfig string) error

	// GetByID retrieves a data source and its encrypted config.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, string, error)

	// List retrieves all data sources with their encrypted configs, ordered by name.
	List(ctx context.Context) ([]*models.DataSource, []string, error)

	// Delete removes a data source and, by cascade, its databases, schemas and datasets.
	Delete(ctx context.Context, id uuid.UUID) error
}

type dataSourceRepository struct{}

// NewDataSourceRepository creates a new data source repository.
func NewDataSourceRepository() DataSourceRepository {
	return &dataSourceRepository{}
}

var _ DataSourceRepository = (*dataSourceRepository)(nil)

func (r *dataSourceRepository) Create(ctx context.Context, ds *models.DataSource, encryptedConfig string) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO data_sources (name, data_source_type, data_source_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err = conn.QueryRow(ctx, query,
		ds.Name, ds.DataSourceType, encryptedConfig, ds.CreatedAt, ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, string, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, name, data_source_type, data_source_config, created_at, updated_at
		FROM data_sources
		WHERE id = $1`

	var ds models.DataSource
	var encryptedConfig string
	err = conn.QueryRow(ctx, query, id).Scan(
		&ds.ID, &ds.Name, &ds.DataSourceType, &encryptedConfig, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get data source: %w", err)
	}
	return &ds, encryptedConfig, nil
}

func (r *dataSourceRepository) List(ctx context.Context) ([]*models.DataSource, []string, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, name, data_source_type, data_source_config, created_at, updated_at
		FROM data_sources
		ORDER BY name`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.DataSource
	var configs []string
	for rows.Next() {
		ds, encryptedConfig, err := scanDataSource(rows)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, ds)
		configs = append(configs, encryptedConfig)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating data sources: %w", err)
	}
	return sources, configs, nil
}

func (r *dataSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanDataSource(rows pgx.Rows) (*models.DataSource, string, error) {
	var ds models.DataSource
	var encryptedConfig string
	if err := rows.Scan(
		&ds.ID, &ds.Name, &ds.DataSourceType, &encryptedConfig, &ds.CreatedAt, &ds.UpdatedAt,
	); err != nil {
		return nil, "", fmt.Errorf("failed to scan data source: %w", err)
	}
	return &ds, encryptedConfig, nil
}
