package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// MutationOp is the kind of row write that triggered a pipeline run.
type MutationOp string

const (
	OpCreate  MutationOp = "create"
	OpUpdate  MutationOp = "update"
	OpDestroy MutationOp = "destroy"
)

// DatasetMutation describes one dataset row write.
// Hooks read Op, Dataset and Staleness and may set the index decisions.
type DatasetMutation struct {
	Op        MutationOp
	Dataset   *models.Dataset
	Staleness staleness.Transition

	// Reindex is set by the ReindexGate; the service pushes after commit.
	Reindex bool
	// RemoveFromIndex is set for destroys that should drop the indexed document.
	RemoveFromIndex bool
}

// DatasetHook runs inside the transaction that wrote the dataset row.
// Returning an error aborts the transaction.
type DatasetHook interface {
	Name() string
	AfterDatasetWrite(ctx context.Context, m *DatasetMutation) error
}

// DatasetPipeline runs its hooks in order.
type DatasetPipeline struct {
	hooks []DatasetHook
}

// NewDatasetPipeline creates a pipeline running hooks in the given order.
func NewDatasetPipeline(hooks ...DatasetHook) *DatasetPipeline {
	return &DatasetPipeline{hooks: hooks}
}

// Run invokes every hook in order and stops at the first error.
func (p *DatasetPipeline) Run(ctx context.Context, m *DatasetMutation) error {
	for _, h := range p.hooks {
		if err := h.AfterDatasetWrite(ctx, m); err != nil {
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
	}
	return nil
}

// DatabaseMutation describes a database staleness write.
type DatabaseMutation struct {
	Database  *models.Database
	Staleness staleness.Transition
}

// DatabaseHook runs inside the transaction that wrote the database row.
type DatabaseHook interface {
	Name() string
	AfterDatabaseWrite(ctx context.Context, m *DatabaseMutation) error
}

// DatabasePipeline runs its hooks in order.
type DatabasePipeline struct {
	hooks []DatabaseHook
}

// NewDatabasePipeline creates a pipeline running hooks in the given order.
func NewDatabasePipeline(hooks ...DatabaseHook) *DatabasePipeline {
	return &DatabasePipeline{hooks: hooks}
}

// Run invokes every hook in order and stops at the first error.
func (p *DatabasePipeline) Run(ctx context.Context, m *DatabaseMutation) error {
	for _, h := range p.hooks {
		if err := h.AfterDatabaseWrite(ctx, m); err != nil {
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
	}
	return nil
}
