// Package session owns one client connection end to end: the read loop that
// dispatches inbound messages, the single-writer frame serialization, and
// the per-session turn bookkeeping the pipeline checks supersession against.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/voxline/voxline/internal/turn"
)

// State holds the mutable per-session bookkeeping. The turn id is read
// concurrently by pipeline workers while only the handler's read loop
// advances it, so it lives behind an atomic. The metrics map is insert-only
// from the handler and removed from by finished turns.
type State struct {
	// ID uniquely identifies the session for logs and metrics records.
	ID string

	turnID atomic.Int64

	// active and finisher are touched only by the handler's read loop.
	active   *turn.Orchestrator
	finisher *finisher

	mu      sync.Mutex
	metrics map[int]*turn.TurnMetrics
}

// NewState creates a session with a fresh random id and turn id 0.
func NewState() *State {
	return &State{
		ID:      uuid.NewString(),
		metrics: make(map[int]*turn.TurnMetrics),
	}
}

// TurnID returns the current turn id.
func (s *State) TurnID() int {
	return int(s.turnID.Load())
}

// AdvanceTurn increments the turn id and returns the new value. Ids are
// never reused; advancing past a live turn supersedes it.
func (s *State) AdvanceTurn() int {
	return int(s.turnID.Add(1))
}

// PutMetrics registers a live turn's metrics.
func (s *State) PutMetrics(turnID int, m *turn.TurnMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[turnID] = m
}

// TakeMetrics removes and returns a turn's metrics, or nil when the turn is
// unknown or already finished.
func (s *State) TakeMetrics(turnID int) *turn.TurnMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics[turnID]
	delete(s.metrics, turnID)
	return m
}

// LiveTurns returns how many turns still hold a metrics entry.
func (s *State) LiveTurns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics)
}
