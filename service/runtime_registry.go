package service

import (
	"sync"
	"time"
)

// RuntimeKey identifies one submission analysis
type RuntimeKey struct {
	AssignmentID int64
	StudentID    int64
	SubmissionID int64
}

type runtimeState struct {
	startedAt      time.Time
	lastProgressAt time.Time
	lastErrorAt    time.Time
}

// RuntimeRegistry tracks in-flight analyses: when they started, when they
// last made progress and whether they failed. Status polling uses it to tell
// a running analysis from a stalled or failed one.
type RuntimeRegistry struct {
	mu     sync.Mutex
	states map[RuntimeKey]*runtimeState
	now    func() time.Time
}

// NewRuntimeRegistry creates an empty registry
func NewRuntimeRegistry() *RuntimeRegistry {
	return &RuntimeRegistry{
		states: make(map[RuntimeKey]*runtimeState),
		now:    time.Now,
	}
}

func (r *RuntimeRegistry) state(key RuntimeKey) *runtimeState {
	s, ok := r.states[key]
	if !ok {
		s = &runtimeState{}
		r.states[key] = s
	}
	return s
}

// MarkStarted records the start time; a later call keeps the first one
func (r *RuntimeRegistry) MarkStarted(key RuntimeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(key)
	if s.startedAt.IsZero() {
		s.startedAt = r.now()
	}
}

// MarkProgress records that one more pair finished
func (r *RuntimeRegistry) MarkProgress(key RuntimeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(key).lastProgressAt = r.now()
}

// MarkError records a failure
func (r *RuntimeRegistry) MarkError(key RuntimeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(key).lastErrorAt = r.now()
}

// StartedAt returns the recorded start time
func (r *RuntimeRegistry) StartedAt(key RuntimeKey) (time.Time, bool) {
	return r.get(key, func(s *runtimeState) time.Time { return s.startedAt })
}

// LastProgressAt returns the time of the last progress mark
func (r *RuntimeRegistry) LastProgressAt(key RuntimeKey) (time.Time, bool) {
	return r.get(key, func(s *runtimeState) time.Time { return s.lastProgressAt })
}

// LastErrorAt returns the time of the last error mark
func (r *RuntimeRegistry) LastErrorAt(key RuntimeKey) (time.Time, bool) {
	return r.get(key, func(s *runtimeState) time.Time { return s.lastErrorAt })
}

func (r *RuntimeRegistry) get(key RuntimeKey, field func(*runtimeState) time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[key]
	if !ok {
		return time.Time{}, false
	}
	t := field(s)
	return t, !t.IsZero()
}

// LastActivity returns the last progress time, else the start time, else now
func (r *RuntimeRegistry) LastActivity(key RuntimeKey) time.Time {
	if t, ok := r.LastProgressAt(key); ok {
		return t
	}
	if t, ok := r.StartedAt(key); ok {
		return t
	}
	return r.now()
}

// Clear forgets an analysis
func (r *RuntimeRegistry) Clear(key RuntimeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, key)
}

// Len returns the number of tracked analyses
func (r *RuntimeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
