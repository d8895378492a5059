package models

import (
	"time"

	"github.com/google/uuid"
)

// Database is a database hosted by a data source. It owns its schemas exclusively.
type Database struct {
	ID           uuid.UUID  `json:"id"`
	DataSourceID uuid.UUID  `json:"data_source_id"`
	Name         string     `json:"name"`
	StaleAt      *time.Time `json:"stale_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (d *Database) StaleSince() *time.Time     { return d.StaleAt }
func (d *Database) SetStaleSince(t *time.Time) { d.StaleAt = t }
