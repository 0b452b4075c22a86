// Package review owns the participation status state machine and is the only
// place participation-driven rating arithmetic happens.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

var ErrInvalidStatus = errors.New("invalid review status")

// Notifier delivers a best-effort message to a student. Implementations must
// never block the caller on delivery problems.
type Notifier interface {
	Notify(chatID int64, text string)
}

// UnitChange is the rating delta one approval of an event is worth.
func UnitChange(points int) float64 {
	return float64(points) * 0.25
}

// Clamp bounds a rating to the allowed [1.0, 5.0] range.
func Clamp(rating float64) float64 {
	if rating < model.RatingMin {
		return model.RatingMin
	}
	if rating > model.RatingMax {
		return model.RatingMax
	}
	return rating
}

// Delta returns the unclamped rating change for a status transition.
// Approving a not-yet-approved submission earns the unit change, revoking an
// approval takes it back, and every other transition (including rejecting a
// pending submission) leaves the rating alone.
func Delta(oldStatus, newStatus model.ParticipationStatus, points int) float64 {
	switch {
	case newStatus == model.StatusApproved && oldStatus != model.StatusApproved:
		return UnitChange(points)
	case newStatus == model.StatusRejected && oldStatus == model.StatusApproved:
		return -UnitChange(points)
	default:
		return 0
	}
}

type Engine struct {
	repo     repo.Repository
	notifier Notifier
	log      *zerolog.Logger
}

func NewEngine(r repo.Repository, notifier Notifier, log *zerolog.Logger) *Engine {
	return &Engine{repo: r, notifier: notifier, log: log}
}

// SetParticipationStatus applies a review decision. The transition runs
// against the most recently persisted status under the repository's locking,
// so concurrent reviews of the same participation serialize rather than race.
// Only approved/rejected are accepted as targets; that is the full set of
// decisions an administrator can make.
func (e *Engine) SetParticipationStatus(ctx context.Context, id int64, newStatus model.ParticipationStatus, comment string) (*repo.ReviewResult, error) {
	if newStatus != model.StatusApproved && newStatus != model.StatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	result, err := e.repo.ReviewParticipationTx(ctx, id, newStatus, comment,
		func(oldStatus model.ParticipationStatus, points int, current float64) (float64, bool) {
			delta := Delta(oldStatus, newStatus, points)
			if delta == 0 {
				return current, false
			}
			return Clamp(current + delta), true
		})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("participation_id", id).
		Str("old_status", string(result.OldStatus)).
		Str("new_status", string(newStatus)).
		Bool("rating_changed", result.RatingChanged).
		Float64("rating", result.NewRating).
		Msg("participation reviewed")

	// Notification is downstream of the committed state: the persisted rows
	// are authoritative regardless of delivery outcome.
	e.notifier.Notify(result.Student.TelegramID, statusChangeMessage(result))
	return result, nil
}

func statusChangeMessage(r *repo.ReviewResult) string {
	msg := "Your participation status changed!\n\n"
	msg += fmt.Sprintf("Event: %s\n", r.Event.Title)
	msg += fmt.Sprintf("Points: %d\n", r.Event.PointsAwarded)
	msg += fmt.Sprintf("Status: %s\n", StatusText(r.Participation.Status))
	if r.Participation.AdminComment != "" {
		msg += fmt.Sprintf("Admin comment: %s\n", r.Participation.AdminComment)
	}
	if r.RatingChanged {
		msg += fmt.Sprintf("\nYour rating is now: %.2f/5.0", r.NewRating)
	}
	return msg
}

// StatusText is the student-facing wording for a review status.
func StatusText(s model.ParticipationStatus) string {
	switch s {
	case model.StatusApproved:
		return "approved"
	case model.StatusRejected:
		return "rejected"
	default:
		return "awaiting review"
	}
}
