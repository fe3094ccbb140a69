// Package cache holds the current enriched roster snapshot.
package cache

import (
	"sync/atomic"
	"time"

	"clanchecker/service/internal/models"
)

// Snapshot is one complete refresh result. A snapshot is never mutated after
// it is stored; a refresh builds a new one and swaps it in.
type Snapshot struct {
	LastUpdated *time.Time             `json:"lastUpdated"`
	Data        []models.EnrichedEntry `json:"data"`
}

// Populated reports whether any refresh has succeeded yet
func (s *Snapshot) Populated() bool {
	return s != nil && s.LastUpdated != nil
}

// Store keeps the current snapshot behind an atomic pointer so readers always
// see either the previous or the next snapshot in full.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding an empty, never-refreshed snapshot
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Data: []models.EnrichedEntry{}})
	return s
}

// Load returns the current snapshot
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Replace publishes a new snapshot. The store takes ownership of data.
func (s *Store) Replace(data []models.EnrichedEntry, at time.Time) *Snapshot {
	if data == nil {
		data = []models.EnrichedEntry{}
	}
	ts := at
	snap := &Snapshot{LastUpdated: &ts, Data: data}
	s.current.Store(snap)
	return snap
}

// IsStale reports whether the snapshot was never populated or is older than maxAge
func (s *Store) IsStale(now time.Time, maxAge time.Duration) bool {
	snap := s.Load()
	if !snap.Populated() {
		return true
	}
	return now.Sub(*snap.LastUpdated) > maxAge
}
