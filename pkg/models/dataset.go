package models

import (
	"time"

	"github.com/google/uuid"
)

// DatasetKind discriminates the dataset variants.
type DatasetKind string

const (
	DatasetKindTable      DatasetKind = "table"
	DatasetKindView       DatasetKind = "view"
	DatasetKindChorusView DatasetKind = "chorus_view"
)

// ValidDatasetKinds contains all valid dataset kind values.
var ValidDatasetKinds = []DatasetKind{
	DatasetKindTable,
	DatasetKindView,
	DatasetKindChorusView,
}

// IsValidDatasetKind checks if the given kind is valid.
func IsValidDatasetKind(k DatasetKind) bool {
	for _, v := range ValidDatasetKinds {
		if v == k {
			return true
		}
	}
	return false
}

// IsPhysical returns true for kinds backed by a relation in the data source.
func (k DatasetKind) IsPhysical() bool {
	return k == DatasetKindTable || k == DatasetKindView
}

// Dataset is a table, view or chorus view (a virtual dataset derived from a query).
type Dataset struct {
	ID        uuid.UUID   `json:"id"`
	SchemaID  uuid.UUID   `json:"schema_id"`
	Name      string      `json:"name"`
	Kind      DatasetKind `json:"kind"`
	Query     *string     `json:"query,omitempty"` // chorus views only
	StaleAt   *time.Time  `json:"stale_at,omitempty"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// SkipSearchIndex suppresses the post-commit index push for this instance.
	// Set by bulk callers (schema refresh) that reindex once at the end.
	SkipSearchIndex bool `json:"-"`
}

func (d *Dataset) StaleSince() *time.Time     { return d.StaleAt }
func (d *Dataset) SetStaleSince(t *time.Time) { d.StaleAt = t }
