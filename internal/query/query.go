// Package query filters the cached roster for the players endpoint.
package query

import (
	"context"
	"time"

	"clanchecker/service/internal/cache"
	"clanchecker/service/internal/models"
	"clanchecker/service/internal/tag"

	"github.com/rs/zerolog/log"
)

// Membership filter values
const (
	StatusInClan    = "inClan"
	StatusNotInClan = "notInClan"
)

// NotFoundMessage is set on results with no matching entries
const NotFoundMessage = "Not Found"

// Filter selects roster entries. Empty fields match everything.
type Filter struct {
	AssignedClanTag string
	DiscordUserID   string
	PlayerTag       string
	Status          string
}

// Result is the players endpoint response
type Result struct {
	LastUpdated *time.Time             `json:"lastUpdated"`
	Count       int                    `json:"count"`
	Data        []models.EnrichedEntry `json:"data"`
	Message     string                 `json:"message,omitempty"`
}

// Matches reports whether e satisfies every supplied filter. Tags compare in
// normalized form, so a supplied tag that is only a marker ("#") selects
// entries without that tag. A status other than inClan or notInClan is ignored.
func (f Filter) Matches(e models.EnrichedEntry) bool {
	if f.AssignedClanTag != "" && tag.Key(e.AssignedClanTag) != tag.Key(f.AssignedClanTag) {
		return false
	}
	if f.DiscordUserID != "" && e.DiscordUserID != f.DiscordUserID {
		return false
	}
	if f.PlayerTag != "" && tag.Key(e.PlayerTag) != tag.Key(f.PlayerTag) {
		return false
	}

	switch f.Status {
	case StatusInClan:
		return e.IsInAssignedClan
	case StatusNotInClan:
		return !e.IsInAssignedClan
	}
	return true
}

// Apply returns the entries of snap matching f, in snapshot order
func Apply(snap *cache.Snapshot, f Filter) Result {
	res := Result{Data: []models.EnrichedEntry{}}
	if snap == nil {
		res.Message = NotFoundMessage
		return res
	}

	res.LastUpdated = snap.LastUpdated
	for _, e := range snap.Data {
		if f.Matches(e) {
			res.Data = append(res.Data, e)
		}
	}

	res.Count = len(res.Data)
	if res.Count == 0 {
		res.Message = NotFoundMessage
	}
	return res
}

// Refresher brings the snapshot up to date on demand
type Refresher interface {
	EnsureFresh(ctx context.Context, maxAge time.Duration) (*cache.Snapshot, error)
}

// Service answers player queries from the cache
type Service struct {
	store      *cache.Store
	refresher  Refresher
	staleAfter time.Duration
}

// NewService creates a query service. With a nil refresher queries always
// read the cached snapshot; otherwise a stale snapshot is refreshed first.
func NewService(store *cache.Store, refresher Refresher, staleAfter time.Duration) *Service {
	return &Service{
		store:      store,
		refresher:  refresher,
		staleAfter: staleAfter,
	}
}

// Players returns the entries matching f. It never fails: when an on-demand
// refresh fails the previous snapshot is queried instead.
func (s *Service) Players(ctx context.Context, f Filter) Result {
	return Apply(s.Snapshot(ctx), f)
}

// Snapshot returns the snapshot queries are answered from
func (s *Service) Snapshot(ctx context.Context) *cache.Snapshot {
	if s.refresher == nil {
		return s.store.Load()
	}

	// A refresh shared with other callers must outlive this request
	snap, err := s.refresher.EnsureFresh(context.WithoutCancel(ctx), s.staleAfter)
	if err != nil {
		log.Warn().Err(err).Msg("On-demand refresh failed, serving cached roster")
	}
	if snap == nil {
		return s.store.Load()
	}
	return snap
}
