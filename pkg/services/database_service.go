package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// DatabaseService defines the interface for database operations.
type DatabaseService interface {
	Create(ctx context.Context, dataSourceID uuid.UUID, name string) (*models.Database, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Database, error)
	ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error)
	ListSchemas(ctx context.Context, id uuid.UUID) ([]*models.Schema, error)

	// MarkStale marks the database stale and, on the fresh to stale transition,
	// stamps every schema of the database with the same instant.
	MarkStale(ctx context.Context, id uuid.UUID) (*models.Database, error)

	// MarkFresh clears the database's staleness. Schemas stay as they are.
	MarkFresh(ctx context.Context, id uuid.UUID) (*models.Database, error)

	// Refresh re-reads the schema list from the data source. With deep set,
	// every schema present in the source is refreshed as well.
	Refresh(ctx context.Context, id uuid.UUID, deep bool) (*models.RefreshResult, error)
}

type databaseService struct {
	tx          database.Transactor
	databases   repositories.DatabaseRepository
	schemas     repositories.SchemaRepository
	dataSources DataSourceService
	refresher   schemaRefresher
	pipeline    *DatabasePipeline
	marker      *staleness.Marker
	logger      *zap.Logger
}

// NewDatabasePipelineFor returns the standard database pipeline.
func NewDatabasePipelineFor(schemas repositories.SchemaRepository, logger *zap.Logger) *DatabasePipeline {
	return NewDatabasePipeline(NewCascadeStaleness(schemas, logger))
}

// NewDatabaseService creates a new database service with dependencies.
// schemaSvc must be the service returned by NewSchemaService; it performs deep refreshes.
func NewDatabaseService(
	tx database.Transactor,
	databases repositories.DatabaseRepository,
	schemas repositories.SchemaRepository,
	dataSources DataSourceService,
	schemaSvc SchemaService,
	pipeline *DatabasePipeline,
	marker *staleness.Marker,
	logger *zap.Logger,
) DatabaseService {
	refresher, _ := schemaSvc.(schemaRefresher)
	return &databaseService{
		tx:          tx,
		databases:   databases,
		schemas:     schemas,
		dataSources: dataSources,
		refresher:   refresher,
		pipeline:    pipeline,
		marker:      marker,
		logger:      logger.Named("databases"),
	}
}

var _ DatabaseService = (*databaseService)(nil)

func (s *databaseService) Create(ctx context.Context, dataSourceID uuid.UUID, name string) (*models.Database, error) {
	v := apperrors.NewValidationError()
	validateName(v, "name", name)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	db := &models.Database{DataSourceID: dataSourceID, Name: name}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.databases.Create(ctx, db)
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			return nil, nameTaken("name")
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("data source %s: %w", dataSourceID, err)
		}
		return nil, err
	}

	s.logger.Info("Created database",
		zap.String("id", db.ID.String()),
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("name", name))
	return db, nil
}

func (s *databaseService) Get(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	var db *models.Database
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		db, err = s.databases.GetByID(ctx, id)
		return err
	})
	return db, err
}

func (s *databaseService) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error) {
	var dbs []*models.Database
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		dbs, err = s.databases.ListByDataSource(ctx, dataSourceID)
		return err
	})
	return dbs, err
}

func (s *databaseService) ListSchemas(ctx context.Context, id uuid.UUID) ([]*models.Schema, error) {
	var schemas []*models.Schema
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.databases.GetByID(ctx, id); err != nil {
			return err
		}
		var err error
		schemas, err = s.schemas.ListByDatabase(ctx, id)
		return err
	})
	return schemas, err
}

func (s *databaseService) MarkStale(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return s.setStaleness(ctx, id, s.marker.MarkStale)
}

func (s *databaseService) MarkFresh(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return s.setStaleness(ctx, id, s.marker.MarkFresh)
}

func (s *databaseService) setStaleness(ctx context.Context, id uuid.UUID, mark func(staleness.Staleable) staleness.Transition) (*models.Database, error) {
	var db *models.Database
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		db, err = s.databases.LockByID(ctx, id)
		if err != nil {
			return err
		}
		return s.applyStaleness(ctx, db, mark)
	})
	return db, err
}

// applyStaleness writes the staleness change and runs the database pipeline.
// Must run inside a transaction.
func (s *databaseService) applyStaleness(ctx context.Context, db *models.Database, mark func(staleness.Staleable) staleness.Transition) error {
	tr := mark(db)
	if tr.Changed() {
		if err := s.databases.UpdateStaleAt(ctx, db.ID, db.StaleAt); err != nil {
			return err
		}
		s.logger.Info("Changed database staleness",
			zap.String("id", db.ID.String()),
			zap.Bool("stale", tr.IsStale))
	}
	return s.pipeline.Run(ctx, &DatabaseMutation{Database: db, Staleness: tr})
}

func (s *databaseService) Refresh(ctx context.Context, id uuid.UUID, deep bool) (*models.RefreshResult, error) {
	db, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d, err := s.dataSources.OpenDiscoverer(ctx, db.DataSourceID, db.Name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	names, err := d.DiscoverSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover schemas of %s: %w", db.Name, err)
	}

	result := &models.RefreshResult{}
	var present []*models.Schema

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		result = &models.RefreshResult{}
		present = present[:0]

		locked, err := s.databases.LockByID(ctx, id)
		if err != nil {
			return err
		}

		existing, err := s.schemas.ListByDatabase(ctx, id)
		if err != nil {
			return err
		}
		byName := make(map[string]*models.Schema, len(existing))
		for _, schema := range existing {
			byName[schema.Name] = schema
		}

		found := make(map[string]bool, len(names))
		for _, name := range names {
			found[name] = true

			schema, ok := byName[name]
			if !ok {
				schema = &models.Schema{DatabaseID: id, Name: name}
				if err := s.schemas.Create(ctx, schema); err != nil {
					return fmt.Errorf("create schema %s: %w", name, err)
				}
				result.SchemasCreated++
			} else if tr := s.marker.MarkFresh(schema); tr.Changed() {
				if err := s.schemas.UpdateStaleAt(ctx, schema.ID, nil); err != nil {
					return err
				}
				result.SchemasFreshed++
			}
			present = append(present, schema)
		}

		for _, schema := range existing {
			if found[schema.Name] {
				continue
			}
			if tr := s.marker.MarkStale(schema); tr.Changed() {
				if err := s.schemas.UpdateStaleAt(ctx, schema.ID, schema.StaleAt); err != nil {
					return err
				}
				result.SchemasStaled++
			}
		}

		if err := s.applyStaleness(ctx, locked, s.marker.MarkFresh); err != nil {
			return err
		}
		db = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if deep && s.refresher != nil {
		for _, schema := range present {
			sub, err := s.refresher.refreshWith(ctx, d, schema)
			if err != nil {
				return nil, fmt.Errorf("refresh schema %s: %w", schema.Name, err)
			}
			result.Add(sub)
		}
	}

	s.logger.Info("Refreshed database",
		zap.String("id", db.ID.String()),
		zap.String("name", db.Name),
		zap.Bool("deep", deep),
		zap.Int("schemas_created", result.SchemasCreated),
		zap.Int("schemas_staled", result.SchemasStaled),
		zap.Int("schemas_freshed", result.SchemasFreshed))

	return result, nil
}
