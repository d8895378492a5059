package services

import (
	"context"

	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// ShouldReindex reports whether d belongs in the search index after a write.
func ShouldReindex(d *models.Dataset) bool {
	return !staleness.IsStale(d) && !d.SkipSearchIndex
}

// ReindexGate decides the post-commit index action of a dataset write.
type ReindexGate struct{}

// NewReindexGate creates the reindex gate hook.
func NewReindexGate() *ReindexGate {
	return &ReindexGate{}
}

var _ DatasetHook = (*ReindexGate)(nil)

func (g *ReindexGate) Name() string { return "reindex_gate" }

func (g *ReindexGate) AfterDatasetWrite(_ context.Context, m *DatasetMutation) error {
	if m.Op == OpDestroy {
		m.Reindex = false
		m.RemoveFromIndex = !m.Dataset.SkipSearchIndex
		return nil
	}

	m.Reindex = ShouldReindex(m.Dataset)
	reindexDecisions.WithLabelValues(decision(m.Reindex)).Inc()
	return nil
}

func decision(reindex bool) string {
	if reindex {
		return "push"
	}
	return "skip"
}
