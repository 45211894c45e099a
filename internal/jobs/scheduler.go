// Package jobs schedules the nightly reconciliation sweep that keeps the
// metadata index convergent with the object store.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"medialab/api/internal/gallery"
)

type Scheduler struct {
	cron   *cron.Cron
	runner *gallery.Runner
	log    zerolog.Logger
}

func NewScheduler(runner *gallery.Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		log:    log,
	}
}

// Start registers the nightly sweep. With no index configured there is
// nothing to reconcile and the scheduler stays idle.
func (s *Scheduler) Start() error {
	if s.runner == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 3 * * *", s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.Context {
	stopped := s.cron.Stop()
	return stopped
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	report, err := s.runner.ReconcileIndex(ctx, false)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled index sweep failed")
		return
	}
	s.log.Info().
		Int("processed", report.Processed).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("errors", len(report.Errors)).
		Msg("scheduled index sweep finished")
}
