package models

import (
	"time"

	"github.com/google/uuid"
)

// Schema groups the datasets of a database.
// ActiveTablesAndViewsCount is a counter cache maintained by atomic deltas;
// it is never written directly.
type Schema struct {
	ID                        uuid.UUID  `json:"id"`
	DatabaseID                uuid.UUID  `json:"database_id"`
	Name                      string     `json:"name"`
	StaleAt                   *time.Time `json:"stale_at,omitempty"`
	ActiveTablesAndViewsCount int        `json:"active_tables_and_views_count"`
	RefreshedAt               *time.Time `json:"refreshed_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

func (s *Schema) StaleSince() *time.Time     { return s.StaleAt }
func (s *Schema) SetStaleSince(t *time.Time) { s.StaleAt = t }
