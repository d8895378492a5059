package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
)

// CounterCache keeps Schema.ActiveTablesAndViewsCount in step with dataset writes.
type CounterCache struct {
	schemas repositories.SchemaRepository
	logger  *zap.Logger
}

// NewCounterCache creates the counter cache hook.
func NewCounterCache(schemas repositories.SchemaRepository, logger *zap.Logger) *CounterCache {
	return &CounterCache{
		schemas: schemas,
		logger:  logger.Named("counter_cache"),
	}
}

var _ DatasetHook = (*CounterCache)(nil)

func (c *CounterCache) Name() string { return "counter_cache" }

// CounterDelta returns the change to the owning schema's counter implied by m.
//
// Chorus views count against the schema by existence: create is -1, destroy is +1,
// and their staleness never matters. Tables and views count while fresh and live.
func CounterDelta(m *DatasetMutation) int {
	if m.Dataset.Kind == models.DatasetKindChorusView {
		switch m.Op {
		case OpCreate:
			return -1
		case OpDestroy:
			return 1
		}
		return 0
	}

	before := !m.Staleness.WasStale && m.Op != OpCreate
	after := !m.Staleness.IsStale && m.Op != OpDestroy
	return b2i(after) - b2i(before)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AfterDatasetWrite applies the delta as a single atomic update of the schema row.
func (c *CounterCache) AfterDatasetWrite(ctx context.Context, m *DatasetMutation) error {
	delta := CounterDelta(m)
	if delta == 0 {
		return nil
	}

	count, err := c.schemas.AdjustActiveCount(ctx, m.Dataset.SchemaID, delta)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("schema %s: %w", m.Dataset.SchemaID, apperrors.ErrNotFound)
		}
		return err
	}

	counterAdjustments.WithLabelValues(direction(delta)).Inc()
	c.logger.Debug("Adjusted active tables and views count",
		zap.String("schema_id", m.Dataset.SchemaID.String()),
		zap.String("dataset_id", m.Dataset.ID.String()),
		zap.String("op", string(m.Op)),
		zap.Int("delta", delta),
		zap.Int("count", count))
	return nil
}

func direction(delta int) string {
	if delta > 0 {
		return "increment"
	}
	return "decrement"
}
