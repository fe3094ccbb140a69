// Package batch enriches roster entries with live player data in fixed-size
// groups, pausing between groups to stay under the game API's request rate.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clanchecker/service/internal/client"
	"clanchecker/service/internal/metrics"
	"clanchecker/service/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSize  = 15
	DefaultDelay = 400 * time.Millisecond
)

// Lookuper resolves a player tag; failures are reported in the result, not as errors
type Lookuper interface {
	Lookup(ctx context.Context, playerTag string) models.LookupResult
}

// LookupFunc adapts a function to Lookuper
type LookupFunc func(ctx context.Context, playerTag string) models.LookupResult

// Lookup calls f
func (f LookupFunc) Lookup(ctx context.Context, playerTag string) models.LookupResult {
	return f(ctx, playerTag)
}

// Enricher runs lookups group by group
type Enricher struct {
	lookup Lookuper
	size   int
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewEnricher creates an enricher. A non-positive size falls back to
// DefaultSize and a negative delay to DefaultDelay.
func NewEnricher(lookup Lookuper, size int, delay time.Duration) *Enricher {
	if size <= 0 {
		size = DefaultSize
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Enricher{
		lookup: lookup,
		size:   size,
		delay:  delay,
		sleep:  wait,
	}
}

// Partition splits items into contiguous groups of at most size elements
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultSize
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}

// Run enriches every entry. Output[i] always corresponds to entries[i]; a
// failed lookup degrades the entry instead of dropping it. Run fails only when
// ctx is cancelled or the API rejects the credentials, since every remaining
// lookup would be rejected too.
func (e *Enricher) Run(ctx context.Context, entries []models.RosterEntry) ([]models.EnrichedEntry, error) {
	results := make([]models.EnrichedEntry, len(entries))
	groups := Partition(entries, e.size)

	offset := 0
	for i, group := range groups {
		start := time.Now()

		lookupErrs := make([]error, len(group))
		var wg sync.WaitGroup
		for j, entry := range group {
			wg.Add(1)
			go func(j int, entry models.RosterEntry) {
				defer wg.Done()
				res := e.lookup.Lookup(ctx, entry.PlayerTag)
				lookupErrs[j] = res.Err
				results[offset+j] = models.Enrich(entry, res)
			}(j, entry)
		}
		wg.Wait()

		// Lookups cut short by cancellation are not real results
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rejected(lookupErrs); err != nil {
			return nil, err
		}

		metrics.RecordBatch()
		log.Debug().
			Int("batch", i+1).
			Int("batches", len(groups)).
			Int("size", len(group)).
			Dur("duration", time.Since(start)).
			Msg("Lookup batch complete")

		offset += len(group)

		if i < len(groups)-1 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// rejected returns the first credential rejection among a group's lookups
func rejected(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, client.ErrAccessDenied) {
			return fmt.Errorf("lookup credentials rejected: %w", err)
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
