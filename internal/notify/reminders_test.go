package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

func TestRemindersSkipParticipatingStudents(t *testing.T) {
	mem := repo.NewMemory()
	q := &fakeQueue{}
	log := zerolog.Nop()
	d := NewDispatcher(q, &log)
	d.BulkDelay = 0
	r := NewReminders(mem, d, &log)
	ctx := context.Background()

	participant, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	require.NoError(t, err)
	_, err = mem.CreateStudent(ctx, &model.Student{TelegramID: 200, Course: 2})
	require.NoError(t, err)
	_, err = mem.CreateStudent(ctx, &model.Student{TelegramID: 300, Course: 1})
	require.NoError(t, err)

	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Hackathon", Course: 2, PointsAwarded: 2})
	require.NoError(t, err)
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: participant, EventID: eventID})
	require.NoError(t, err)

	require.NoError(t, r.Send(ctx))

	// Only the course-2 student without a submission is reminded.
	require.Len(t, q.published, 1)
	var msg Message
	require.NoError(t, json.Unmarshal(q.published[0], &msg))
	assert.Equal(t, int64(200), msg.ChatID)
	assert.Contains(t, msg.Text, "Hackathon")
}

func TestRemindersNoRecentEvents(t *testing.T) {
	mem := repo.NewMemory()
	q := &fakeQueue{}
	log := zerolog.Nop()
	d := NewDispatcher(q, &log)
	r := NewReminders(mem, d, &log)
	ctx := context.Background()

	_, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	require.NoError(t, err)

	require.NoError(t, r.Send(ctx))
	assert.Empty(t, q.published)
}
