package repo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
)

func TestCreateStudentRejectsDuplicateTelegramID(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)

	_, err = mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	assert.ErrorIs(t, err, ErrDuplicateStudent)
}

func TestCreateStudentStartsAtDefaultRating(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1, Rating: 9.9})
	require.NoError(t, err)

	s, err := mem.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingDefault, s.Rating, 1e-9)
}

func TestRatingSelfHealsOnRead(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)

	_, err = mem.UpdateStudentRatingTx(ctx, id, func(float64) float64 { return math.NaN() })
	require.NoError(t, err)

	s, err := mem.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingDefault, s.Rating, 1e-9)

	_, err = mem.UpdateStudentRatingTx(ctx, id, func(float64) float64 { return 42 })
	require.NoError(t, err)
	s, err = mem.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingMax, s.Rating, 1e-9)
}

func TestCreateEventDefaultsPointsToOne(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.CreateEvent(ctx, &model.Event{Title: "A", Course: 1})
	require.NoError(t, err)

	e, err := mem.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, e.PointsAwarded)
}

func TestCreateParticipationRejectsDuplicate(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "A", Course: 1})
	require.NoError(t, err)

	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID})
	require.NoError(t, err)

	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID})
	assert.ErrorIs(t, err, ErrDuplicateParticipation)

	ok, err := mem.HasParticipation(ctx, studentID, eventID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteEventRefusesWhenParticipationsExist(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "A", Course: 1})
	require.NoError(t, err)
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID})
	require.NoError(t, err)

	assert.ErrorIs(t, mem.DeleteEvent(ctx, eventID), ErrEventHasParticipations)

	emptyID, err := mem.CreateEvent(ctx, &model.Event{Title: "B", Course: 1})
	require.NoError(t, err)
	require.NoError(t, mem.DeleteEvent(ctx, emptyID))
	_, err = mem.GetEventByID(ctx, emptyID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestArchiveAndRestore(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.CreateEvent(ctx, &model.Event{Title: "A", Course: 1})
	require.NoError(t, err)

	archived, err := mem.SetEventArchived(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	assert.NotNil(t, archived.ArchivedAt)

	active, err := mem.GetActiveEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	restored, err := mem.SetEventArchived(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
	assert.Nil(t, restored.ArchivedAt)
}

func TestGetEventsByCourseSkipsArchived(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	keep, err := mem.CreateEvent(ctx, &model.Event{Title: "Keep", Course: 1})
	require.NoError(t, err)
	hide, err := mem.CreateEvent(ctx, &model.Event{Title: "Hide", Course: 1})
	require.NoError(t, err)
	_, err = mem.SetEventArchived(ctx, hide, true)
	require.NoError(t, err)

	events, err := mem.GetEventsByCourse(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, keep, events[0].ID)
}

func TestStudentIDsWithEventSince(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -60)
	mem.SetClock(func() time.Time { return old })
	oldEvent, err := mem.CreateEvent(ctx, &model.Event{Title: "Old", Course: 1})
	require.NoError(t, err)
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: oldEvent})
	require.NoError(t, err)
	mem.SetClock(time.Now)

	since := time.Now().AddDate(0, 0, -30)
	ids, err := mem.StudentIDsWithEventSince(ctx, since)
	require.NoError(t, err)
	assert.Empty(t, ids)

	recent, err := mem.CreateEvent(ctx, &model.Event{Title: "New", Course: 1})
	require.NoError(t, err)
	other, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 200, Course: 1})
	require.NoError(t, err)
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: other, EventID: recent})
	require.NoError(t, err)

	ids, err = mem.StudentIDsWithEventSince(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{other: {}}, ids)
}

func TestUpdateStudentProfilePartial(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_, err := mem.CreateStudent(ctx, &model.Student{
		TelegramID: 100, FirstName: "Anna", LastName: "Lee", Course: 1, Group: "IS-1-1",
	})
	require.NoError(t, err)

	group := "IS-2-1"
	course := 2
	updated, err := mem.UpdateStudentProfile(ctx, 100, ProfileUpdate{Course: &course, Group: &group})
	require.NoError(t, err)
	assert.Equal(t, "Anna", updated.FirstName)
	assert.Equal(t, 2, updated.Course)
	assert.Equal(t, "IS-2-1", updated.Group)

	_, err = mem.UpdateStudentProfile(ctx, 999, ProfileUpdate{Group: &group})
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
