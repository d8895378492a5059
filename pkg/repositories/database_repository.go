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

// DatabaseRepository provides data access for databases hosted by data sources.
type DatabaseRepository interface {
	Create(ctx context.Context, db *models.Database) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error)
	// LockByID reads the database row with FOR UPDATE. Must run inside a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Database, error)
	ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error)
	UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error
}

type databaseRepository struct{}

// NewDatabaseRepository creates a new DatabaseRepository.
func NewDatabaseRepository() DatabaseRepository {
	return &databaseRepository{}
}

var _ DatabaseRepository = (*databaseRepository)(nil)

const databaseColumns = `id, data_source_id, name, stale_at, created_at, updated_at`

func (r *databaseRepository) Create(ctx context.Context, db *models.Database) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	if db.ID == uuid.Nil {
		db.ID = uuid.New()
	}
	db.CreatedAt = now
	db.UpdatedAt = now

	_, err = conn.Exec(ctx, `
		INSERT INTO databases (id, data_source_id, name, stale_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		db.ID, db.DataSourceID, db.Name, db.StaleAt, db.CreatedAt, db.UpdatedAt,
	)
	if err != nil {
		switch {
		case isPgError(err, pgUniqueViolation):
			return apperrors.ErrConflict
		case isPgError(err, pgForeignKeyViolation):
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create database: %w", err)
	}
	return nil
}

func (r *databaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return r.get(ctx, `SELECT `+databaseColumns+` FROM databases WHERE id = $1`, id)
}

func (r *databaseRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return r.get(ctx, `SELECT `+databaseColumns+` FROM databases WHERE id = $1 FOR UPDATE`, id)
}

func (r *databaseRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Database, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	db, err := scanDatabase(conn.QueryRow(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	return db, nil
}

func (r *databaseRepository) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+databaseColumns+` FROM databases WHERE data_source_id = $1 ORDER BY name`,
		dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	dbs := make([]*models.Database, 0)
	for rows.Next() {
		db, err := scanDatabase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		dbs = append(dbs, db)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating databases: %w", err)
	}
	return dbs, nil
}

func (r *databaseRepository) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE databases SET stale_at = $2, updated_at = NOW() WHERE id = $1`,
		id, staleAt)
	if err != nil {
		return fmt.Errorf("failed to update database staleness: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanDatabase(row pgx.Row) (*models.Database, error) {
	var db models.Database
	if err := row.Scan(&db.ID, &db.DataSourceID, &db.Name, &db.StaleAt, &db.CreatedAt, &db.UpdatedAt); err != nil {
		return nil, err
	}
	return &db, nil
}
