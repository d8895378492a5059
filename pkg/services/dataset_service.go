package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/logging"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
	sqlcheck "github.com/ekaya-inc/catalog-engine/pkg/sql"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// MutationOption adjusts a single dataset write.
type MutationOption func(*mutationOptions)

type mutationOptions struct {
	skipSearchIndex bool
}

// SkipSearchIndex suppresses the post-commit index update for this write.
// Bulk callers use it and reindex once at the end.
func SkipSearchIndex() MutationOption {
	return func(o *mutationOptions) { o.skipSearchIndex = true }
}

func applyOptions(opts []MutationOption) mutationOptions {
	var o mutationOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DatasetService defines the interface for dataset operations.
// Every write runs the dataset pipeline in the same transaction as the row write.
type DatasetService interface {
	// Create creates a discovered table or view. New datasets are fresh.
	Create(ctx context.Context, schemaID uuid.UUID, name string, kind models.DatasetKind, opts ...MutationOption) (*models.Dataset, error)

	// CreateChorusView creates a user-derived dataset backed by query.
	CreateChorusView(ctx context.Context, schemaID uuid.UUID, name, query string, opts ...MutationOption) (*models.Dataset, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error)

	// MarkStale marks the dataset stale. An already stale dataset keeps its timestamp.
	MarkStale(ctx context.Context, id uuid.UUID, opts ...MutationOption) (*models.Dataset, error)

	// MarkFresh clears the dataset's staleness.
	MarkFresh(ctx context.Context, id uuid.UUID, opts ...MutationOption) (*models.Dataset, error)

	// Destroy soft-deletes the dataset and drops it from the search index.
	Destroy(ctx context.Context, id uuid.UUID, opts ...MutationOption) error
}

type datasetService struct {
	tx       database.Transactor
	datasets repositories.DatasetRepository
	schemas  repositories.SchemaRepository
	pipeline *DatasetPipeline
	indexer  search.Indexer
	marker   *staleness.Marker
	logger   *zap.Logger
}

// NewDatasetPipelineFor returns the standard dataset pipeline: counter cache, then reindex gate.
func NewDatasetPipelineFor(schemas repositories.SchemaRepository, logger *zap.Logger) *DatasetPipeline {
	return NewDatasetPipeline(
		NewCounterCache(schemas, logger),
		NewReindexGate(),
	)
}

// NewDatasetService creates a new dataset service with dependencies.
func NewDatasetService(
	tx database.Transactor,
	datasets repositories.DatasetRepository,
	schemas repositories.SchemaRepository,
	pipeline *DatasetPipeline,
	indexer search.Indexer,
	marker *staleness.Marker,
	logger *zap.Logger,
) DatasetService {
	return &datasetService{
		tx:       tx,
		datasets: datasets,
		schemas:  schemas,
		pipeline: pipeline,
		indexer:  indexer,
		marker:   marker,
		logger:   logger.Named("datasets"),
	}
}

var _ DatasetService = (*datasetService)(nil)

func (s *datasetService) Create(ctx context.Context, schemaID uuid.UUID, name string, kind models.DatasetKind, opts ...MutationOption) (*models.Dataset, error) {
	v := apperrors.NewValidationError()
	validateName(v, "name", name)
	if !kind.IsPhysical() {
		v.Add("kind", msgNotIncluded)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	ds := &models.Dataset{SchemaID: schemaID, Name: name, Kind: kind}
	return s.create(ctx, ds, applyOptions(opts))
}

func (s *datasetService) CreateChorusView(ctx context.Context, schemaID uuid.UUID, name, query string, opts ...MutationOption) (*models.Dataset, error) {
	v := apperrors.NewValidationError()
	validateName(v, "name", name)
	if r := sqlcheck.CheckForInjection("name", name); r != nil {
		s.logger.Warn("Rejected chorus view name",
			zap.String("schema_id", schemaID.String()),
			zap.String("fingerprint", r.Fingerprint))
		v.Add("name", msgInvalidChars)
	}
	normalized := validateQuery(v, "query", query)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	ds := &models.Dataset{SchemaID: schemaID, Name: name, Kind: models.DatasetKindChorusView, Query: &normalized}
	return s.create(ctx, ds, applyOptions(opts))
}

func (s *datasetService) create(ctx context.Context, ds *models.Dataset, o mutationOptions) (*models.Dataset, error) {
	ds.SkipSearchIndex = o.skipSearchIndex

	var m *DatasetMutation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.schemas.GetByID(ctx, ds.SchemaID); err != nil {
			return fmt.Errorf("schema %s: %w", ds.SchemaID, err)
		}

		if _, err := s.datasets.GetByName(ctx, ds.SchemaID, ds.Name); err == nil {
			return nameTaken("name")
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		if err := s.datasets.Create(ctx, ds); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return nameTaken("name")
			}
			return err
		}

		m = &DatasetMutation{Op: OpCreate, Dataset: ds, Staleness: staleness.Unchanged(ds)}
		return s.pipeline.Run(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("id", ds.ID.String()),
		zap.String("schema_id", ds.SchemaID.String()),
		zap.String("name", ds.Name),
		zap.String("kind", string(ds.Kind)),
	}
	if ds.Query != nil {
		fields = append(fields, zap.String("query", logging.SanitizeQuery(*ds.Query)))
	}
	s.logger.Info("Created dataset", fields...)

	s.afterCommit(ctx, m)
	return ds, nil
}

func (s *datasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	var ds *models.Dataset
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		ds, err = s.datasets.GetByID(ctx, id)
		return err
	})
	return ds, err
}

func (s *datasetService) ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error) {
	var datasets []*models.Dataset
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.schemas.GetByID(ctx, schemaID); err != nil {
			return err
		}
		var err error
		datasets, err = s.datasets.ListBySchema(ctx, schemaID)
		return err
	})
	return datasets, err
}

func (s *datasetService) MarkStale(ctx context.Context, id uuid.UUID, opts ...MutationOption) (*models.Dataset, error) {
	return s.update(ctx, id, applyOptions(opts), s.marker.MarkStale)
}

func (s *datasetService) MarkFresh(ctx context.Context, id uuid.UUID, opts ...MutationOption) (*models.Dataset, error) {
	return s.update(ctx, id, applyOptions(opts), s.marker.MarkFresh)
}

func (s *datasetService) update(ctx context.Context, id uuid.UUID, o mutationOptions, mark func(staleness.Staleable) staleness.Transition) (*models.Dataset, error) {
	var m *DatasetMutation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ds, err := s.datasets.LockByID(ctx, id)
		if err != nil {
			return err
		}
		ds.SkipSearchIndex = o.skipSearchIndex

		tr := mark(ds)
		if tr.Changed() {
			if err := s.datasets.UpdateStaleAt(ctx, ds.ID, ds.StaleAt); err != nil {
				return err
			}
		}

		m = &DatasetMutation{Op: OpUpdate, Dataset: ds, Staleness: tr}
		return s.pipeline.Run(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if m.Staleness.Changed() {
		s.logger.Info("Changed dataset staleness",
			zap.String("id", id.String()),
			zap.Bool("stale", m.Staleness.IsStale))
	}

	s.afterCommit(ctx, m)
	return m.Dataset, nil
}

func (s *datasetService) Destroy(ctx context.Context, id uuid.UUID, opts ...MutationOption) error {
	o := applyOptions(opts)

	var m *DatasetMutation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ds, err := s.datasets.LockByID(ctx, id)
		if err != nil {
			return err
		}
		ds.SkipSearchIndex = o.skipSearchIndex

		now := s.marker.Now()
		if err := s.datasets.SoftDelete(ctx, ds.ID, now); err != nil {
			return err
		}
		ds.DeletedAt = &now

		m = &DatasetMutation{Op: OpDestroy, Dataset: ds, Staleness: staleness.Unchanged(ds)}
		return s.pipeline.Run(ctx, m)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Destroyed dataset", zap.String("id", id.String()))

	s.afterCommit(ctx, m)
	return nil
}

// afterCommit applies the index decision made inside the transaction.
// Index failures are logged; the committed write stands.
func (s *datasetService) afterCommit(ctx context.Context, m *DatasetMutation) {
	if m == nil {
		return
	}
	if _, inTx := database.GetScope(ctx); inTx && (m.Reindex || m.RemoveFromIndex) {
		// Joined an outer transaction; the outer caller owns indexing.
		s.logger.Debug("Deferring index update to enclosing transaction",
			zap.String("dataset_id", m.Dataset.ID.String()))
		return
	}

	switch {
	case m.Reindex:
		s.indexUpdate(ctx, "push", m.Dataset, func() error {
			return s.indexer.Push(ctx, search.DocumentFromDataset(m.Dataset))
		})
	case m.RemoveFromIndex:
		s.indexUpdate(ctx, "remove", m.Dataset, func() error {
			return s.indexer.Remove(ctx, search.DocumentID(m.Dataset.ID))
		})
	}
}

func (s *datasetService) indexUpdate(ctx context.Context, action string, ds *models.Dataset, apply func() error) {
	err := apply()
	if err == nil {
		err = s.indexer.Commit(ctx)
	}
	if err != nil {
		indexUpdates.WithLabelValues(action, "failure").Inc()
		s.logger.Error("Failed to update search index",
			zap.String("action", action),
			zap.String("dataset_id", ds.ID.String()),
			zap.Error(err))
		return
	}
	indexUpdates.WithLabelValues(action, "success").Inc()
}
