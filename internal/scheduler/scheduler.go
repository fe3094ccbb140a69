package scheduler

import (
	"context"
	"fmt"
	"sync"

	"clanchecker/service/internal/cache"
	"clanchecker/service/internal/refresh"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule refreshes the roster every three minutes
const DefaultSchedule = "@every 3m"

// Refresher runs a roster refresh
type Refresher interface {
	Refresh(ctx context.Context, trigger string) (*cache.Snapshot, error)
}

// Scheduler triggers periodic roster refreshes
type Scheduler struct {
	schedule  string
	refresher Refresher
	cron      *cron.Cron
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewScheduler creates a new scheduler instance
func NewScheduler(schedule string, refresher Refresher) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		schedule:  schedule,
		refresher: refresher,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		stopChan:  make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.tick(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule roster refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.schedule).
		Msg("Roster refresh scheduled")

	go func() {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping scheduler")
			s.Stop()
		case <-s.stopChan:
		}
	}()

	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")
		<-s.cron.Stop().Done()
		close(s.stopChan)
		log.Info().Msg("Scheduler stopped")
	})
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.refresher.Refresh(ctx, refresh.TriggerTimer); err != nil {
		log.Error().Err(err).Msg("Scheduled roster refresh failed")
	}
}
