package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissing(t *testing.T) {
	s := NewStore(DefaultTTL)
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestSetGetClear(t *testing.T) {
	s := NewStore(DefaultTTL)
	s.Set(1, State{Step: StepAwaitingName})

	st, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingName, st.Step)

	s.Clear(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestUpdateMergesIntoExistingState(t *testing.T) {
	s := NewStore(DefaultTTL)
	s.Set(1, State{Step: StepAwaitingCourse, LastName: "Lee", FirstName: "Anna"})

	s.Update(1, func(st *State) {
		st.Step = StepAwaitingGroup
		st.Course = 2
	})

	st, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingGroup, st.Step)
	assert.Equal(t, 2, st.Course)
	assert.Equal(t, "Lee", st.LastName)
	assert.Equal(t, "Anna", st.FirstName)
}

func TestUpdateCreatesWhenAbsent(t *testing.T) {
	s := NewStore(DefaultTTL)
	s.Update(7, func(st *State) { st.Step = StepEditingName })

	st, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, StepEditingName, st.Step)
}

func TestTTLExpiry(t *testing.T) {
	s := NewStore(time.Hour)
	current := time.Now()
	s.SetClock(func() time.Time { return current })

	s.Set(1, State{Step: StepAwaitingCertificate, CertificateFileID: "file-1"})

	current = current.Add(30 * time.Minute)
	_, ok := s.Get(1)
	assert.True(t, ok)

	current = current.Add(31 * time.Minute)
	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestUpdateRefreshesTTL(t *testing.T) {
	s := NewStore(time.Hour)
	current := time.Now()
	s.SetClock(func() time.Time { return current })

	s.Set(1, State{Step: StepAwaitingName})

	current = current.Add(50 * time.Minute)
	s.Update(1, func(st *State) { st.LastName = "Lee" })

	current = current.Add(50 * time.Minute)
	st, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Lee", st.LastName)
}

func TestLenEvictsExpired(t *testing.T) {
	s := NewStore(time.Hour)
	current := time.Now()
	s.SetClock(func() time.Time { return current })

	s.Set(1, State{})
	s.Set(2, State{})
	assert.Equal(t, 2, s.Len())

	current = current.Add(2 * time.Hour)
	assert.Equal(t, 0, s.Len())
}
