package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

// reminderWindowDays selects events still worth announcing.
const reminderWindowDays = 3

// Reminders announces recently created events to students of the matching
// course who have not submitted a participation yet.
type Reminders struct {
	repo       repo.Repository
	dispatcher *Dispatcher
	log        *zerolog.Logger
	now        func() time.Time
}

func NewReminders(r repo.Repository, d *Dispatcher, log *zerolog.Logger) *Reminders {
	return &Reminders{repo: r, dispatcher: d, log: log, now: time.Now}
}

func (r *Reminders) Send(ctx context.Context) error {
	since := r.now().AddDate(0, 0, -reminderWindowDays)
	events, err := r.repo.GetRecentEvents(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load recent events: %w", err)
	}
	if len(events) == 0 {
		r.log.Info().Msg("no recent events for reminders")
		return nil
	}

	var batch []Message
	for _, event := range events {
		students, err := r.repo.GetStudentsByCourse(ctx, event.Course)
		if err != nil {
			r.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to load students for reminder")
			continue
		}
		for _, student := range students {
			participating, err := r.repo.HasParticipation(ctx, student.ID, event.ID)
			if err != nil {
				r.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to check participation")
				continue
			}
			if participating {
				continue
			}
			batch = append(batch, Message{
				ChatID: student.TelegramID,
				Text: fmt.Sprintf(
					"Reminder about a new event!\n\n%s\n\n%s\n\nPoints: %d\n\n"+
						"Take part and attach your certificate to earn rating points.",
					event.Title, event.Description, event.PointsAwarded),
			})
		}
	}

	sent, failed := r.dispatcher.Broadcast(batch)
	r.log.Info().Int("events", len(events)).Int("sent", sent).Int("errors", failed).
		Msg("event reminders dispatched")
	return nil
}
