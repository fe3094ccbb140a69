// Package refresh rebuilds the roster snapshot: fetch the sheet, parse it,
// enrich every entry and swap the result into the cache.
package refresh

import (
	"context"
	"fmt"
	"time"

	"clanchecker/service/internal/cache"
	"clanchecker/service/internal/metrics"
	"clanchecker/service/internal/models"
	"clanchecker/service/internal/roster"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Refresh triggers, used as metric and log labels
const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerQuery   = "query"
	TriggerManual  = "manual"
)

const flightKey = "roster"

// RowSource supplies raw spreadsheet rows, header first
type RowSource interface {
	FetchRows(ctx context.Context) ([][]string, error)
}

// Authenticator verifies lookup credentials before a refresh spends any lookups
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Enricher turns roster entries into enriched entries, preserving order
type Enricher interface {
	Run(ctx context.Context, entries []models.RosterEntry) ([]models.EnrichedEntry, error)
}

// Publisher receives every successfully stored snapshot
type Publisher interface {
	Publish(ctx context.Context, snap *cache.Snapshot) error
}

// Deps are the collaborators of a pipeline. Auth and Mirror are optional.
type Deps struct {
	Source   RowSource
	Columns  roster.ColumnMap
	Auth     Authenticator
	Enricher Enricher
	Store    *cache.Store
	Mirror   Publisher
}

// Pipeline runs refreshes, at most one at a time
type Pipeline struct {
	source   RowSource
	columns  roster.ColumnMap
	auth     Authenticator
	enricher Enricher
	store    *cache.Store
	mirror   Publisher

	now   func() time.Time
	group singleflight.Group
}

// NewPipeline creates a refresh pipeline
func NewPipeline(d Deps) *Pipeline {
	return &Pipeline{
		source:   d.Source,
		columns:  d.Columns,
		auth:     d.Auth,
		enricher: d.Enricher,
		store:    d.Store,
		mirror:   d.Mirror,
		now:      time.Now,
	}
}

// Store returns the cache the pipeline writes to
func (p *Pipeline) Store() *cache.Store {
	return p.store
}

// Refresh rebuilds the snapshot. Calls made while a refresh is in flight wait
// for that refresh and share its result instead of starting another.
// On failure the cache keeps its previous snapshot.
func (p *Pipeline) Refresh(ctx context.Context, trigger string) (*cache.Snapshot, error) {
	return p.do(trigger, func() (*cache.Snapshot, error) {
		return p.refresh(ctx, trigger)
	})
}

func (p *Pipeline) do(trigger string, fn func() (*cache.Snapshot, error)) (*cache.Snapshot, error) {
	ch := p.group.DoChan(flightKey, func() (interface{}, error) {
		return fn()
	})

	res := <-ch
	if res.Shared {
		log.Debug().Str("trigger", trigger).Msg("Joined in-flight refresh")
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*cache.Snapshot), nil
}

// EnsureFresh returns the cached snapshot, refreshing first when it is missing
// or older than maxAge. If that refresh fails the stale snapshot is returned
// together with the error.
func (p *Pipeline) EnsureFresh(ctx context.Context, maxAge time.Duration) (*cache.Snapshot, error) {
	if !p.store.IsStale(p.now(), maxAge) {
		metrics.RecordCacheHit()
		return p.store.Load(), nil
	}

	metrics.RecordCacheMiss()
	snap, err := p.do(TriggerQuery, func() (*cache.Snapshot, error) {
		// A refresh may have completed between the check above and this flight
		if !p.store.IsStale(p.now(), maxAge) {
			return p.store.Load(), nil
		}
		return p.refresh(ctx, TriggerQuery)
	})
	if err != nil {
		return p.store.Load(), err
	}
	return snap, nil
}

func (p *Pipeline) refresh(ctx context.Context, trigger string) (*cache.Snapshot, error) {
	start := time.Now()
	log.Info().Str("trigger", trigger).Msg("Refreshing roster")

	snap, err := p.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordSync(trigger, "error", duration.Seconds())
		metrics.RecordError("refresh", "sync_failed")
		log.Error().
			Err(err).
			Str("trigger", trigger).
			Dur("duration", duration).
			Msg("Roster refresh failed, keeping previous snapshot")
		return nil, err
	}

	metrics.RecordSync(trigger, "success", duration.Seconds())
	log.Info().
		Str("trigger", trigger).
		Int("entries", len(snap.Data)).
		Dur("duration", duration).
		Msg("Roster refresh complete")

	return snap, nil
}

// Run performs one refresh without single-flight protection
func (p *Pipeline) Run(ctx context.Context) (*cache.Snapshot, error) {
	rows, err := p.source.FetchRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	entries := p.columns.Parse(rows)
	log.Debug().
		Int("rows", len(rows)).
		Int("entries", len(entries)).
		Msg("Roster parsed")

	if p.auth != nil {
		if err := p.auth.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("failed to authenticate lookup client: %w", err)
		}
	}

	enriched, err := p.enricher.Run(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich roster: %w", err)
	}

	snap := p.store.Replace(enriched, p.now())

	inClan := 0
	for _, e := range snap.Data {
		if e.IsInAssignedClan {
			inClan++
		}
	}
	metrics.UpdateRosterStats(len(snap.Data), inClan)

	if p.mirror != nil {
		if err := p.mirror.Publish(ctx, snap); err != nil {
			metrics.RecordError("redis", "publish_failed")
			log.Warn().Err(err).Msg("Failed to mirror snapshot")
		}
	}

	return snap, nil
}
