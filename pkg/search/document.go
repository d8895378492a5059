// Package search pushes catalog datasets into the external search index.
package search

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/catalog-engine/pkg/models"
)

// Document is the indexed representation of a dataset.
type Document struct {
	ID        string    `json:"id"`
	Type      string    `json:"type_s"`
	DatasetID string    `json:"dataset_id_s"`
	SchemaID  string    `json:"schema_id_s"`
	Name      string    `json:"name_t"`
	Kind      string    `json:"kind_s"`
	Query     string    `json:"query_t,omitempty"`
	UpdatedAt time.Time `json:"updated_at_dt"`
}

// DocumentType returns the index type for a dataset kind, e.g. "tables" or "chorus_views".
func DocumentType(kind models.DatasetKind) string {
	return inflection.Plural(string(kind))
}

// DocumentID returns the index key of a dataset.
func DocumentID(id uuid.UUID) string {
	return "dataset:" + id.String()
}

// DocumentFromDataset builds the index document for d.
func DocumentFromDataset(d *models.Dataset) Document {
	doc := Document{
		ID:        DocumentID(d.ID),
		Type:      DocumentType(d.Kind),
		DatasetID: d.ID.String(),
		SchemaID:  d.SchemaID.String(),
		Name:      d.Name,
		Kind:      string(d.Kind),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.Query != nil {
		doc.Query = *d.Query
	}
	return doc
}

// DocumentsFromDatasets builds documents for every dataset in order.
func DocumentsFromDatasets(datasets []*models.Dataset) []Document {
	docs := make([]Document, len(datasets))
	for i, d := range datasets {
		docs[i] = DocumentFromDataset(d)
	}
	return docs
}
