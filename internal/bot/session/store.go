// Package session keeps ephemeral per-conversant dialogue state. Nothing in
// here is durable truth: losing a session only restarts the current flow.
package session

import (
	"sync"
	"time"
)

type Step int

const (
	StepIdle Step = iota
	StepAwaitingName
	StepAwaitingCourse
	StepAwaitingGroup
	StepAwaitingCertificate
	StepCertificateUploaded
	StepAwaitingEventCertificate
	StepEditingName
	StepEditingGroup
)

// State holds the fields of all dialogue steps; which of them are meaningful
// depends on Step. Name parts and Course are collected during registration,
// EditingCourse and GroupsPage drive the group-edit pagination, the
// certificate fields and SelectedEventID belong to the intake flow.
type State struct {
	Step Step

	Username   string
	LastName   string
	FirstName  string
	MiddleName string
	Course     int

	EditingCourse int
	GroupsPage    int

	CertificateFileID   string
	CertificateFileName string
	SelectedEventID     int64
}

type entry struct {
	state   State
	touched time.Time
}

// Store is an in-memory session map with TTL eviction. All operations are
// total; the transport delivers one update at a time per conversant, so no
// per-entry locking beyond the map mutex is needed.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]*entry
	now     func() time.Time
}

const DefaultTTL = time.Hour

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) liveLocked(id int64) (*entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.touched) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	return e, true
}

// Get returns the session if one exists and has not expired.
func (s *Store) Get(id int64) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(id)
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Ensure returns the existing session or creates an empty one.
func (s *Store) Ensure(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(id)
	if !ok {
		e = &entry{touched: s.now()}
		s.entries[id] = e
	}
	return e.state
}

// Set replaces the session wholesale.
func (s *Store) Set(id int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{state: st, touched: s.now()}
}

// Update merges changes into the session via the mutator, creating the
// session when absent.
func (s *Store) Update(id int64, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(id)
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	fn(&e.state)
	e.touched = s.now()
}

func (s *Store) Clear(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len counts live sessions, evicting expired ones along the way.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		s.liveLocked(id)
	}
	return len(s.entries)
}
