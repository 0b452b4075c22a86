package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

type recordingNotifier struct {
	chatIDs []int64
	texts   []string
}

func (n *recordingNotifier) Notify(chatID int64, text string) {
	n.chatIDs = append(n.chatIDs, chatID)
	n.texts = append(n.texts, text)
}

func newRunnerFixture() (*Runner, *repo.Memory, *recordingNotifier) {
	mem := repo.NewMemory()
	notifier := &recordingNotifier{}
	log := zerolog.Nop()
	return NewRunner(mem, notifier, &log), mem, notifier
}

func TestComputeNoRecentEventsIsNoop(t *testing.T) {
	students := []model.Student{{ID: 1}, {ID: 2}}
	assert.Nil(t, Compute(students, nil, map[int64]struct{}{}))
}

func TestComputePenalizesOnlyInactive(t *testing.T) {
	students := []model.Student{{ID: 1}, {ID: 2}, {ID: 3}}
	events := []model.Event{{ID: 10}, {ID: 11}}
	active := map[int64]struct{}{2: {}}

	penalties := Compute(students, events, active)
	require.Len(t, penalties, 2)
	assert.Equal(t, int64(1), penalties[0].Student.ID)
	assert.Equal(t, int64(3), penalties[1].Student.ID)
	assert.Equal(t, 2, penalties[0].MissedCount)
}

func TestRunNoRecentEvents(t *testing.T) {
	runner, mem, notifier := newRunnerFixture()
	ctx := context.Background()

	_, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PenalizedStudents)
	assert.Equal(t, 0, result.RecentEvents)
	assert.Empty(t, notifier.chatIDs)
}

func TestRunPenalizesInactiveStudents(t *testing.T) {
	runner, mem, notifier := newRunnerFixture()
	ctx := context.Background()

	activeID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	inactiveID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 200, Course: 1})
	require.NoError(t, err)

	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Contest", Course: 1, PointsAwarded: 2})
	require.NoError(t, err)

	// A pending submission is still activity; only full absence is penalized.
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: activeID, EventID: eventID})
	require.NoError(t, err)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PenalizedStudents)
	assert.Equal(t, 1, result.RecentEvents)

	active, err := mem.GetStudentByID(ctx, activeID)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingDefault, active.Rating, 1e-9)

	inactive, err := mem.GetStudentByID(ctx, inactiveID)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingDefault-PenaltyAmount, inactive.Rating, 1e-9)

	require.Len(t, notifier.chatIDs, 1)
	assert.Equal(t, int64(200), notifier.chatIDs[0])
	assert.Contains(t, notifier.texts[0], "rating went down")
}

func TestRunClampsAtFloor(t *testing.T) {
	runner, mem, _ := newRunnerFixture()
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	_, err = mem.CreateEvent(ctx, &model.Event{Title: "Contest", Course: 1})
	require.NoError(t, err)

	// Drive the rating near the floor, then sweep repeatedly.
	_, err = mem.UpdateStudentRatingTx(ctx, studentID, func(float64) float64 { return 1.4 })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = runner.Run(ctx)
		require.NoError(t, err)
	}

	student, err := mem.GetStudentByID(ctx, studentID)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingMin, student.Rating, 1e-9)
}

func TestRunIgnoresArchivedEvents(t *testing.T) {
	runner, mem, _ := newRunnerFixture()
	ctx := context.Background()

	_, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Old Contest", Course: 1})
	require.NoError(t, err)
	_, err = mem.SetEventArchived(ctx, eventID, true)
	require.NoError(t, err)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PenalizedStudents)
}

func TestRunWindowExcludesOldEvents(t *testing.T) {
	runner, mem, _ := newRunnerFixture()
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -WindowDays-10)
	mem.SetClock(func() time.Time { return old })
	_, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 1})
	require.NoError(t, err)
	_, err = mem.CreateEvent(ctx, &model.Event{Title: "Ancient", Course: 1})
	require.NoError(t, err)
	mem.SetClock(time.Now)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PenalizedStudents)
	assert.Equal(t, 0, result.RecentEvents)
}
