// Package scheduler runs the daily background jobs: the inactivity penalty
// sweep and the upcoming-event reminders.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/notify"
	"github.com/NegroPrimo123/Students-Bot/internal/sweep"
)

type Scheduler struct {
	cron      *cron.Cron
	sweeper   *sweep.Runner
	reminders *notify.Reminders
	log       *zerolog.Logger
}

func New(sweeper *sweep.Runner, reminders *notify.Reminders, log *zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		sweeper:   sweeper,
		reminders: reminders,
		log:       log,
	}
}

// Start registers the jobs and launches the cron loop. Specs are standard
// five-field cron expressions evaluated in server local time.
func (s *Scheduler) Start(ctx context.Context, penaltySpec, reminderSpec string) error {
	if _, err := s.cron.AddFunc(penaltySpec, func() {
		if _, err := s.sweeper.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled penalty sweep failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(reminderSpec, func() {
		if err := s.reminders.Send(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled reminders failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("penalty", penaltySpec).Str("reminders", reminderSpec).
		Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
