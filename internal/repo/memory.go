package repo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
)

// Memory is an in-memory Repository used by tests and local runs without
// postgres. It honors the same uniqueness constraints and serializes every
// rating mutation behind one mutex, which is the in-process equivalent of the
// row locks the SQL implementation takes.
type Memory struct {
	mu             sync.Mutex
	students       map[int64]*model.Student
	events         map[int64]*model.Event
	participations map[int64]*model.Participation
	nextID         int64
	now            func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		students:       make(map[int64]*model.Student),
		events:         make(map[int64]*model.Event),
		participations: make(map[int64]*model.Participation),
		nextID:         1,
		now:            time.Now,
	}
}

// SetClock overrides the time source; tests use it to control created_at.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) nextIDLocked() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func healMemRating(s *model.Student) {
	switch {
	case math.IsNaN(s.Rating):
		s.Rating = model.RatingDefault
	case s.Rating < model.RatingMin:
		s.Rating = model.RatingMin
	case s.Rating > model.RatingMax:
		s.Rating = model.RatingMax
	}
}

func (m *Memory) CreateStudent(_ context.Context, s *model.Student) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.TelegramID == s.TelegramID {
			return 0, ErrDuplicateStudent
		}
	}
	cp := *s
	cp.ID = m.nextIDLocked()
	cp.Rating = model.RatingDefault
	cp.CreatedAt = m.now()
	m.students[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) GetStudentByTelegramID(_ context.Context, telegramID int64) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.TelegramID == telegramID {
			healMemRating(s)
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrStudentNotFound
}

func (m *Memory) GetStudentByID(_ context.Context, id int64) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	healMemRating(s)
	cp := *s
	return &cp, nil
}

func (m *Memory) listStudents(filter func(*model.Student) bool) []model.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Student
	for _, s := range m.students {
		if filter == nil || filter(s) {
			healMemRating(s)
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) GetAllStudents(_ context.Context) ([]model.Student, error) {
	return m.listStudents(nil), nil
}

func (m *Memory) GetStudentsByCourse(_ context.Context, course int) ([]model.Student, error) {
	return m.listStudents(func(s *model.Student) bool { return s.Course == course }), nil
}

func (m *Memory) GetLowRatingStudents(_ context.Context, below float64) ([]model.Student, error) {
	return m.listStudents(func(s *model.Student) bool { return s.Rating < below }), nil
}

func (m *Memory) UpdateStudentProfile(_ context.Context, telegramID int64, upd ProfileUpdate) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.TelegramID != telegramID {
			continue
		}
		if upd.FirstName != nil {
			s.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			s.LastName = *upd.LastName
		}
		if upd.MiddleName != nil {
			s.MiddleName = *upd.MiddleName
		}
		if upd.Course != nil {
			s.Course = *upd.Course
		}
		if upd.Group != nil {
			s.Group = *upd.Group
		}
		cp := *s
		return &cp, nil
	}
	return nil, ErrStudentNotFound
}

func (m *Memory) UpdateStudentRatingTx(_ context.Context, studentID int64, apply func(current float64) float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return 0, ErrStudentNotFound
	}
	current := s.Rating
	if math.IsNaN(current) {
		current = model.RatingDefault
	}
	s.Rating = apply(current)
	return s.Rating, nil
}

func (m *Memory) CountStudents(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students), nil
}

func (m *Memory) AverageRating(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.students) == 0 {
		return model.RatingDefault, nil
	}
	var sum float64
	for _, s := range m.students {
		healMemRating(s)
		sum += s.Rating
	}
	return sum / float64(len(m.students)), nil
}

func (m *Memory) CreateEvent(_ context.Context, e *model.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = m.nextIDLocked()
	if cp.PointsAwarded <= 0 {
		cp.PointsAwarded = 1
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.events[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) GetEventByID(_ context.Context, id int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) listEvents(filter func(*model.Event) bool) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if filter == nil || filter(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) GetActiveEvents(_ context.Context) ([]model.Event, error) {
	return m.listEvents(func(e *model.Event) bool { return !e.IsArchived }), nil
}

func (m *Memory) GetAllEvents(_ context.Context) ([]model.Event, error) {
	return m.listEvents(nil), nil
}

func (m *Memory) GetArchivedEvents(_ context.Context) ([]model.Event, error) {
	return m.listEvents(func(e *model.Event) bool { return e.IsArchived }), nil
}

func (m *Memory) GetEventsByCourse(_ context.Context, course int) ([]model.Event, error) {
	return m.listEvents(func(e *model.Event) bool { return e.Course == course && !e.IsArchived }), nil
}

func (m *Memory) GetRecentEvents(_ context.Context, since time.Time) ([]model.Event, error) {
	return m.listEvents(func(e *model.Event) bool {
		return !e.IsArchived && !e.CreatedAt.Before(since)
	}), nil
}

func (m *Memory) UpdateEvent(_ context.Context, id int64, upd EventUpdate) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.PointsAwarded != nil {
		e.PointsAwarded = *upd.PointsAwarded
	}
	if upd.Course != nil {
		e.Course = *upd.Course
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) SetEventArchived(_ context.Context, id int64, archived bool) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	e.IsArchived = archived
	if archived {
		t := m.now()
		e.ArchivedAt = &t
	} else {
		e.ArchivedAt = nil
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	for _, p := range m.participations {
		if p.EventID == id {
			return ErrEventHasParticipations
		}
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) CountEvents(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), nil
}

func (m *Memory) CreateParticipation(_ context.Context, p *model.Participation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participations {
		if existing.StudentID == p.StudentID && existing.EventID == p.EventID {
			return 0, ErrDuplicateParticipation
		}
	}
	cp := *p
	cp.ID = m.nextIDLocked()
	if cp.Status == "" {
		cp.Status = model.StatusPending
	}
	cp.CreatedAt = m.now()
	m.participations[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) GetParticipationByID(_ context.Context, id int64) (*model.Participation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participations[id]
	if !ok {
		return nil, ErrParticipationNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) listParticipations(filter func(*model.Participation) bool) []model.Participation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Participation
	for _, p := range m.participations {
		if filter == nil || filter(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) GetPendingParticipations(_ context.Context) ([]model.Participation, error) {
	return m.listParticipations(func(p *model.Participation) bool { return p.Status == model.StatusPending }), nil
}

func (m *Memory) GetParticipationsByStudent(_ context.Context, studentID int64) ([]model.Participation, error) {
	return m.listParticipations(func(p *model.Participation) bool { return p.StudentID == studentID }), nil
}

func (m *Memory) GetParticipationsByEvent(_ context.Context, eventID int64) ([]model.Participation, error) {
	return m.listParticipations(func(p *model.Participation) bool { return p.EventID == eventID }), nil
}

func (m *Memory) HasParticipation(_ context.Context, studentID, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participations {
		if p.StudentID == studentID && p.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountParticipations(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.participations), nil
}

func (m *Memory) CountParticipationsByStatus(_ context.Context, status model.ParticipationStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.participations {
		if p.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *Memory) StudentIDsWithEventSince(_ context.Context, since time.Time) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[int64]struct{})
	for _, p := range m.participations {
		e, ok := m.events[p.EventID]
		if !ok || e.IsArchived || e.CreatedAt.Before(since) {
			continue
		}
		ids[p.StudentID] = struct{}{}
	}
	return ids, nil
}

func (m *Memory) ReviewParticipationTx(_ context.Context, id int64, newStatus model.ParticipationStatus, comment string, rate RatingFunc) (*ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participations[id]
	if !ok {
		return nil, ErrParticipationNotFound
	}
	e, ok := m.events[p.EventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	s, ok := m.students[p.StudentID]
	if !ok {
		return nil, ErrStudentNotFound
	}
	healMemRating(s)

	oldStatus := p.Status
	newRating, changed := rate(oldStatus, e.PointsAwarded, s.Rating)

	p.Status = newStatus
	if comment != "" {
		p.AdminComment = comment
	}
	if changed {
		s.Rating = newRating
	}

	pc, sc, ec := *p, *s, *e
	return &ReviewResult{
		Participation: &pc,
		Student:       &sc,
		Event:         &ec,
		OldStatus:     oldStatus,
		RatingChanged: changed,
		NewRating:     sc.Rating,
	}, nil
}

func (m *Memory) MigrateUp(string) error   { return nil }
func (m *Memory) MigrateDown(string) error { return nil }
