package monitoring

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/debugferro/identity-be/internal/metrics"
	"github.com/debugferro/identity-be/internal/services"
)

// Scheduler runs periodic maintenance, currently the audit event retention
// purge.
type Scheduler struct {
	eventSvc  services.EventServiceProvider
	schedule  cron.Schedule
	retention time.Duration
	ticker    *time.Ticker
	done      chan bool
	nextRun   time.Time
}

// NewScheduler creates a scheduler that purges events older than retention
// according to the given cron expression.
func NewScheduler(eventSvc services.EventServiceProvider, cronExpr string, retention time.Duration) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		eventSvc:  eventSvc,
		schedule:  schedule,
		retention: retention,
		done:      make(chan bool),
		nextRun:   schedule.Next(time.Now()),
	}, nil
}

// Run starts the scheduler's ticking loop.
func (s *Scheduler) Run() {
	log.Info().Time("next_run", s.nextRun).Msg("Starting background scheduler...")
	s.ticker = time.NewTicker(1 * time.Minute)
	defer s.ticker.Stop()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping background scheduler.")
			return
		case <-s.ticker.C:
			now := time.Now()
			if now.After(s.nextRun) {
				s.purgeOldEvents(now)
				s.nextRun = s.schedule.Next(now)
			}
		}
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.done <- true
}

func (s *Scheduler) purgeOldEvents(now time.Time) {
	cutoff := now.Add(-s.retention)
	purged, err := s.eventSvc.PurgeOlderThan(cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to purge old events")
		return
	}
	metrics.EventsPurgedTotal.Add(float64(purged))
	if purged > 0 {
		log.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Scheduler: Purged old audit events")
	}
}
