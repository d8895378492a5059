package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
)

// CascadeStaleness stamps every schema of a database stale when the database goes stale.
// Marking the database fresh leaves its schemas alone.
type CascadeStaleness struct {
	schemas repositories.SchemaRepository
	logger  *zap.Logger
}

// NewCascadeStaleness creates the cascade hook.
func NewCascadeStaleness(schemas repositories.SchemaRepository, logger *zap.Logger) *CascadeStaleness {
	return &CascadeStaleness{
		schemas: schemas,
		logger:  logger.Named("cascade_staleness"),
	}
}

var _ DatabaseHook = (*CascadeStaleness)(nil)

func (c *CascadeStaleness) Name() string { return "cascade_staleness" }

func (c *CascadeStaleness) AfterDatabaseWrite(ctx context.Context, m *DatabaseMutation) error {
	if !m.Staleness.BecameStale() || m.Database.StaleAt == nil {
		return nil
	}

	n, err := c.schemas.MarkStaleByDatabase(ctx, m.Database.ID, *m.Database.StaleAt)
	if err != nil {
		return fmt.Errorf("mark schemas of database %s stale: %w", m.Database.ID, err)
	}

	cascadedSchemas.Add(float64(n))
	c.logger.Info("Cascaded database staleness to schemas",
		zap.String("database_id", m.Database.ID.String()),
		zap.Int64("schemas", n))
	return nil
}
