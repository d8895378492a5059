package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// SchemaService defines the interface for schema operations.
type SchemaService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Schema, error)

	// MarkStale marks the schema stale. Its datasets and counter are untouched.
	MarkStale(ctx context.Context, id uuid.UUID) (*models.Schema, error)

	// MarkFresh clears the schema's staleness.
	MarkFresh(ctx context.Context, id uuid.UUID) (*models.Schema, error)

	// Refresh re-reads the schema's tables and views from the data source:
	// new relations become datasets, vanished ones go stale, found ones go fresh.
	// Touched fresh datasets are reindexed and vanished ones removed from the
	// index under a single commit at the end. A relation whose kind is not a
	// table or view fails the refresh before anything is written.
	Refresh(ctx context.Context, id uuid.UUID) (*models.RefreshResult, error)
}

// schemaRefresher refreshes a schema with an already open discoverer.
// DatabaseService uses it for deep refreshes.
type schemaRefresher interface {
	refreshWith(ctx context.Context, d datasource.SchemaDiscoverer, schema *models.Schema) (*models.RefreshResult, error)
}

type schemaService struct {
	tx          database.Transactor
	schemas     repositories.SchemaRepository
	databases   repositories.DatabaseRepository
	datasets    repositories.DatasetRepository
	dataSources DataSourceService
	datasetSvc  DatasetService
	indexer     search.Indexer
	marker      *staleness.Marker
	logger      *zap.Logger
}

// NewSchemaService creates a new schema service with dependencies.
func NewSchemaService(
	tx database.Transactor,
	schemas repositories.SchemaRepository,
	databases repositories.DatabaseRepository,
	datasets repositories.DatasetRepository,
	dataSources DataSourceService,
	datasetSvc DatasetService,
	indexer search.Indexer,
	marker *staleness.Marker,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		tx:          tx,
		schemas:     schemas,
		databases:   databases,
		datasets:    datasets,
		dataSources: dataSources,
		datasetSvc:  datasetSvc,
		indexer:     indexer,
		marker:      marker,
		logger:      logger.Named("schemas"),
	}
}

var (
	_ SchemaService   = (*schemaService)(nil)
	_ schemaRefresher = (*schemaService)(nil)
)

func (s *schemaService) Get(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	var schema *models.Schema
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		schema, err = s.schemas.GetByID(ctx, id)
		return err
	})
	return schema, err
}

func (s *schemaService) MarkStale(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	return s.setStaleness(ctx, id, s.marker.MarkStale)
}

func (s *schemaService) MarkFresh(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	return s.setStaleness(ctx, id, s.marker.MarkFresh)
}

func (s *schemaService) setStaleness(ctx context.Context, id uuid.UUID, mark func(staleness.Staleable) staleness.Transition) (*models.Schema, error) {
	var schema *models.Schema
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		schema, err = s.schemas.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tr := mark(schema); tr.Changed() {
			return s.schemas.UpdateStaleAt(ctx, schema.ID, schema.StaleAt)
		}
		return nil
	})
	return schema, err
}

func (s *schemaService) Refresh(ctx context.Context, id uuid.UUID) (*models.RefreshResult, error) {
	schema, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var db *models.Database
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		db, err = s.databases.GetByID(ctx, schema.DatabaseID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", schema.DatabaseID, err)
	}

	d, err := s.dataSources.OpenDiscoverer(ctx, db.DataSourceID, db.Name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return s.refreshWith(ctx, d, schema)
}

func (s *schemaService) refreshWith(ctx context.Context, d datasource.SchemaDiscoverer, schema *models.Schema) (*models.RefreshResult, error) {
	relations, err := d.DiscoverRelations(ctx, schema.Name)
	if err != nil {
		return nil, fmt.Errorf("discover relations of %s: %w", schema.Name, err)
	}
	for _, rel := range relations {
		if kind := models.DatasetKind(rel.Kind); !models.IsValidDatasetKind(kind) || !kind.IsPhysical() {
			return nil, fmt.Errorf("discover relations of %s: relation %s has unsupported kind %q",
				schema.Name, rel.Name, rel.Kind)
		}
	}

	result := &models.RefreshResult{}
	var touched []*models.Dataset
	var staled []string

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		result = &models.RefreshResult{}
		touched = touched[:0]
		staled = staled[:0]

		existing, err := s.datasets.ListBySchema(ctx, schema.ID)
		if err != nil {
			return err
		}
		byName := make(map[string]*models.Dataset, len(existing))
		for _, ds := range existing {
			byName[ds.Name] = ds
		}

		found := make(map[string]bool, len(relations))
		for _, rel := range relations {
			found[rel.Name] = true

			ds, ok := byName[rel.Name]
			switch {
			case !ok:
				created, err := s.datasetSvc.Create(ctx, schema.ID, rel.Name, models.DatasetKind(rel.Kind), SkipSearchIndex())
				if err != nil {
					return fmt.Errorf("create dataset %s: %w", rel.Name, err)
				}
				result.DatasetsCreated++
				touched = append(touched, created)

			case !ds.Kind.IsPhysical():
				// A chorus view already owns the name; refresh never touches chorus views.
				s.logger.Warn("Relation name collides with a chorus view",
					zap.String("schema_id", schema.ID.String()),
					zap.String("name", rel.Name))

			default:
				wasStale := staleness.IsStale(ds)
				fresh, err := s.datasetSvc.MarkFresh(ctx, ds.ID, SkipSearchIndex())
				if err != nil {
					return fmt.Errorf("mark dataset %s fresh: %w", ds.Name, err)
				}
				if wasStale {
					result.DatasetsFreshed++
				}
				touched = append(touched, fresh)
			}
		}

		for _, ds := range existing {
			if found[ds.Name] || !ds.Kind.IsPhysical() || staleness.IsStale(ds) {
				continue
			}
			if _, err := s.datasetSvc.MarkStale(ctx, ds.ID, SkipSearchIndex()); err != nil {
				return fmt.Errorf("mark dataset %s stale: %w", ds.Name, err)
			}
			result.DatasetsStaled++
			staled = append(staled, search.DocumentID(ds.ID))
		}

		now := s.marker.Now()
		if err := s.schemas.MarkRefreshed(ctx, schema.ID, now); err != nil {
			return err
		}
		schema.RefreshedAt = &now
		schema.StaleAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(touched) > 0 || len(staled) > 0 {
		for _, ds := range touched {
			ds.SkipSearchIndex = false
		}
		// Vanished relations leave the index in the same commit that pushes the rest.
		bulk := search.BulkSync(ctx, s.indexer, search.DocumentsFromDatasets(touched), staled, s.logger)
		result.Reindexed = bulk.Succeeded
		result.ReindexFailed = bulk.Failed + bulk.RemoveFailed
		result.Unindexed = bulk.Removed
	}

	s.logger.Info("Refreshed schema",
		zap.String("id", schema.ID.String()),
		zap.String("name", schema.Name),
		zap.Int("created", result.DatasetsCreated),
		zap.Int("staled", result.DatasetsStaled),
		zap.Int("freshed", result.DatasetsFreshed),
		zap.Int("reindexed", result.Reindexed),
		zap.Int("reindex_failed", result.ReindexFailed),
		zap.Int("unindexed", result.Unindexed))

	return result, nil
}
