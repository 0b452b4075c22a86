package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

func TestRateZeroForms(t *testing.T) {
	assert.Equal(t, "0.00%", Rate(0, 0))
	assert.Equal(t, "0%", RateOrZero(0, 0))
}

func TestRateFormatting(t *testing.T) {
	assert.Equal(t, "50.00%", Rate(1, 2))
	assert.Equal(t, "33.33%", Rate(1, 3))
	assert.Equal(t, "100.00%", RateOrZero(3, 3))
	assert.Equal(t, "0.00%", RateOrZero(0, 4))
}

func TestAdminStatisticsEmpty(t *testing.T) {
	agg := NewAggregator(repo.NewMemory())

	s, err := agg.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalStudents)
	assert.Equal(t, 0, s.TotalEvents)
	assert.Equal(t, "0.00%", s.ApprovalRate)
}

func TestStudentStatisticsCountsApprovedPointsOnly(t *testing.T) {
	mem := repo.NewMemory()
	agg := NewAggregator(mem)
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)

	approvedEvent, err := mem.CreateEvent(ctx, &model.Event{Title: "A", Course: 1, PointsAwarded: 3})
	require.NoError(t, err)
	pendingEvent, err := mem.CreateEvent(ctx, &model.Event{Title: "B", Course: 1, PointsAwarded: 5})
	require.NoError(t, err)
	rejectedEvent, err := mem.CreateEvent(ctx, &model.Event{Title: "C", Course: 1, PointsAwarded: 7})
	require.NoError(t, err)

	mustParticipate := func(eventID int64, status model.ParticipationStatus) {
		t.Helper()
		id, err := mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID})
		require.NoError(t, err)
		if status != model.StatusPending {
			_, err = mem.ReviewParticipationTx(ctx, id, status, "",
				func(_ model.ParticipationStatus, _ int, current float64) (float64, bool) {
					return current, false
				})
			require.NoError(t, err)
		}
	}
	mustParticipate(approvedEvent, model.StatusApproved)
	mustParticipate(pendingEvent, model.StatusPending)
	mustParticipate(rejectedEvent, model.StatusRejected)

	s, err := agg.Student(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalParticipations)
	assert.Equal(t, 1, s.Approved)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, "33.33%", s.SuccessRate)
	assert.Equal(t, 3, s.TotalPoints)
}

func TestStudentStatisticsUnknownStudent(t *testing.T) {
	agg := NewAggregator(repo.NewMemory())
	_, err := agg.Student(context.Background(), 42)
	assert.ErrorIs(t, err, repo.ErrStudentNotFound)
}

func TestEventStatistics(t *testing.T) {
	mem := repo.NewMemory()
	agg := NewAggregator(mem)
	ctx := context.Background()

	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Contest", Course: 1, PointsAwarded: 2})
	require.NoError(t, err)

	for i, status := range []model.ParticipationStatus{model.StatusApproved, model.StatusApproved, model.StatusPending, model.StatusRejected} {
		studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: int64(100 + i), Course: 1})
		require.NoError(t, err)
		id, err := mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID})
		require.NoError(t, err)
		if status != model.StatusPending {
			_, err = mem.ReviewParticipationTx(ctx, id, status, "",
				func(_ model.ParticipationStatus, _ int, current float64) (float64, bool) {
					return current, false
				})
			require.NoError(t, err)
		}
	}

	s, err := agg.Event(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalParticipants)
	assert.Equal(t, 2, s.Approved)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, "50.00%", s.ApprovalRate)
}

func TestEventStatisticsNoParticipants(t *testing.T) {
	mem := repo.NewMemory()
	agg := NewAggregator(mem)
	ctx := context.Background()

	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Empty", Course: 1})
	require.NoError(t, err)

	s, err := agg.Event(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, "0%", s.ApprovalRate)
}
