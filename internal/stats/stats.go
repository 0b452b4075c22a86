// Package stats provides read-only rollups for admin dashboards.
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

// LowRatingThreshold marks a student as at-risk on the admin dashboard.
const LowRatingThreshold = 3.0

type AdminStatistics struct {
	TotalStudents         int     `json:"total_students"`
	TotalEvents           int     `json:"total_events"`
	PendingParticipations int     `json:"pending_participations"`
	LowRatingStudents     int     `json:"low_rating_students"`
	ApprovalRate          string  `json:"approval_rate"`
	AverageRating         float64 `json:"average_rating"`
}

type EventStatistics struct {
	Event             *model.Event `json:"event"`
	TotalParticipants int          `json:"total_participants"`
	Approved          int          `json:"approved"`
	Pending           int          `json:"pending"`
	Rejected          int          `json:"rejected"`
	ApprovalRate      string       `json:"approval_rate"`
}

type StudentStatistics struct {
	TotalParticipations int    `json:"total_participations"`
	Approved            int    `json:"approved"`
	Pending             int    `json:"pending"`
	Rejected            int    `json:"rejected"`
	SuccessRate         string `json:"success_rate"`
	TotalPoints         int    `json:"total_points"`
}

type Aggregator struct {
	repo repo.Repository
}

func NewAggregator(r repo.Repository) *Aggregator {
	return &Aggregator{repo: r}
}

func (a *Aggregator) Admin(ctx context.Context) (*AdminStatistics, error) {
	totalStudents, err := a.repo.CountStudents(ctx)
	if err != nil {
		return nil, err
	}
	totalEvents, err := a.repo.CountEvents(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := a.repo.CountParticipationsByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, err
	}
	lowRating, err := a.repo.GetLowRatingStudents(ctx, LowRatingThreshold)
	if err != nil {
		return nil, err
	}
	total, err := a.repo.CountParticipations(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := a.repo.CountParticipationsByStatus(ctx, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	avg, err := a.repo.AverageRating(ctx)
	if err != nil {
		return nil, err
	}

	return &AdminStatistics{
		TotalStudents:         totalStudents,
		TotalEvents:           totalEvents,
		PendingParticipations: pending,
		LowRatingStudents:     len(lowRating),
		ApprovalRate:          Rate(approved, total),
		AverageRating:         math.Round(avg*100) / 100,
	}, nil
}

func (a *Aggregator) Event(ctx context.Context, eventID int64) (*EventStatistics, error) {
	event, err := a.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	parts, err := a.repo.GetParticipationsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s := &EventStatistics{Event: event, TotalParticipants: len(parts)}
	for _, p := range parts {
		switch p.Status {
		case model.StatusApproved:
			s.Approved++
		case model.StatusPending:
			s.Pending++
		case model.StatusRejected:
			s.Rejected++
		}
	}
	s.ApprovalRate = RateOrZero(s.Approved, s.TotalParticipants)
	return s, nil
}

func (a *Aggregator) Student(ctx context.Context, studentID int64) (*StudentStatistics, error) {
	if _, err := a.repo.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	parts, err := a.repo.GetParticipationsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	s := &StudentStatistics{TotalParticipations: len(parts)}
	for _, p := range parts {
		switch p.Status {
		case model.StatusApproved:
			s.Approved++
			event, err := a.repo.GetEventByID(ctx, p.EventID)
			if err == nil {
				s.TotalPoints += event.PointsAwarded
			}
		case model.StatusPending:
			s.Pending++
		case model.StatusRejected:
			s.Rejected++
		}
	}
	s.SuccessRate = RateOrZero(s.Approved, s.TotalParticipations)
	return s, nil
}

// Rate renders approved/total as a two-decimal percentage, "0.00%" for an
// empty total. Division by zero must never leak into a dashboard.
func Rate(approved, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(approved)/float64(total)*100)
}

// RateOrZero is Rate with the short "0%" form used by the per-entity views.
func RateOrZero(approved, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(approved)/float64(total)*100)
}
