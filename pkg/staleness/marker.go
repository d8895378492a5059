// Package staleness tracks the "stale since" timestamp of catalog entities.
package staleness

import "time"

// Staleable is implemented by entities carrying a nullable stale-since timestamp.
type Staleable interface {
	StaleSince() *time.Time
	SetStaleSince(t *time.Time)
}

// Transition is the change notification produced by every marker call.
type Transition struct {
	WasStale bool
	IsStale  bool
}

// Unchanged returns a transition for an entity whose staleness was not touched.
func Unchanged(e Staleable) Transition {
	s := IsStale(e)
	return Transition{WasStale: s, IsStale: s}
}

// Changed reports whether the staleness flipped.
func (t Transition) Changed() bool { return t.WasStale != t.IsStale }

// BecameStale reports a fresh -> stale flip.
func (t Transition) BecameStale() bool { return !t.WasStale && t.IsStale }

// BecameFresh reports a stale -> fresh flip.
func (t Transition) BecameFresh() bool { return t.WasStale && !t.IsStale }

// IsStale returns true iff the entity has a stale-since timestamp.
func IsStale(e Staleable) bool {
	return e.StaleSince() != nil
}

// Marker sets and clears stale-since timestamps.
type Marker struct {
	now func() time.Time
}

// NewMarker creates a Marker. A nil clock defaults to time.Now in UTC.
func NewMarker(now func() time.Time) *Marker {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Marker{now: now}
}

// Now returns the marker's current instant.
func (m *Marker) Now() time.Time {
	return m.now()
}

// MarkStale stamps the entity stale. An already stale entity keeps its original timestamp.
func (m *Marker) MarkStale(e Staleable) Transition {
	return m.MarkStaleAt(e, m.now())
}

// MarkStaleAt stamps the entity stale as of at.
func (m *Marker) MarkStaleAt(e Staleable, at time.Time) Transition {
	was := IsStale(e)
	if !was {
		e.SetStaleSince(&at)
	}
	return Transition{WasStale: was, IsStale: true}
}

// MarkFresh clears the stale-since timestamp.
func (m *Marker) MarkFresh(e Staleable) Transition {
	was := IsStale(e)
	e.SetStaleSince(nil)
	return Transition{WasStale: was, IsStale: false}
}
