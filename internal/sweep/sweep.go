// Package sweep implements the inactivity penalty: students with no
// participation tied to any recent event lose a flat rating point. The same
// Runner backs both the cron schedule and the manual admin trigger.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
	"github.com/NegroPrimo123/Students-Bot/internal/review"
)

const (
	// PenaltyAmount is flat per sweep, independent of how many events
	// were missed.
	PenaltyAmount = 1.0
	WindowDays    = 30
)

type Penalty struct {
	Student     model.Student
	MissedCount int
}

type Result struct {
	PenalizedStudents int `json:"penalized_students"`
	RecentEvents      int `json:"recent_events"`
}

// Compute decides who gets penalized. It is pure: given the student list, the
// events of the trailing window and the set of students with at least one
// participation (any status) in that window, it returns the penalties to
// apply. No recent events means nothing to measure against.
func Compute(students []model.Student, recentEvents []model.Event, active map[int64]struct{}) []Penalty {
	if len(recentEvents) == 0 {
		return nil
	}
	var penalties []Penalty
	for _, s := range students {
		if _, ok := active[s.ID]; ok {
			continue
		}
		penalties = append(penalties, Penalty{Student: s, MissedCount: len(recentEvents)})
	}
	return penalties
}

type Runner struct {
	repo     repo.Repository
	notifier review.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewRunner(r repo.Repository, notifier review.Notifier, log *zerolog.Logger) *Runner {
	return &Runner{repo: r, notifier: notifier, log: log, now: time.Now}
}

// Run executes one sweep. It does not guard against double invocation within a
// day; at-most-once-per-day is the scheduling layer's contract.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	since := r.now().AddDate(0, 0, -WindowDays)

	recentEvents, err := r.repo.GetRecentEvents(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load recent events: %w", err)
	}
	if len(recentEvents) == 0 {
		r.log.Info().Msg("no recent events, penalty sweep is a no-op")
		return Result{}, nil
	}

	students, err := r.repo.GetAllStudents(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load students: %w", err)
	}
	active, err := r.repo.StudentIDsWithEventSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load recent participants: %w", err)
	}

	penalties := Compute(students, recentEvents, active)
	penalized := 0
	for _, p := range penalties {
		newRating, err := r.repo.UpdateStudentRatingTx(ctx, p.Student.ID, func(current float64) float64 {
			return review.Clamp(current - PenaltyAmount)
		})
		if err != nil {
			r.log.Error().Err(err).Int64("student_id", p.Student.ID).Msg("failed to apply penalty")
			continue
		}
		penalized++
		r.log.Info().
			Int64("student_id", p.Student.ID).
			Float64("rating", newRating).
			Int("missed_events", p.MissedCount).
			Msg("inactivity penalty applied")

		r.notifier.Notify(p.Student.TelegramID, penaltyMessage(p.MissedCount, newRating))
	}

	r.log.Info().Int("penalized", penalized).Int("recent_events", len(recentEvents)).
		Msg("penalty sweep finished")
	return Result{PenalizedStudents: penalized, RecentEvents: len(recentEvents)}, nil
}

func penaltyMessage(missedCount int, newRating float64) string {
	return fmt.Sprintf(
		"Warning! Your rating went down by %.1f\n\n"+
			"You did not take part in any of the %d events of the last %d days.\n"+
			"New rating: %.2f/5.0\n\n"+
			"Take part in events and attach certificates to avoid penalties!\n"+
			"Use /events to see what is available.",
		PenaltyAmount, missedCount, WindowDays, newRating)
}
