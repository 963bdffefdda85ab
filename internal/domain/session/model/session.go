// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTransition is returned when a state edge is not in the lifecycle.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Session is the mutable record of one page-to-receiver cast. State, error
// detail and the liveness timestamp are guarded by an internal mutex; the
// identity and request echo fields are immutable after construction.
type Session struct {
	ID           string
	Dir          string
	URL          string
	ReceiverName string
	ReceiverHost string
	ReceiverPort int
	Title        string
	Width        int
	Height       int
	FPS          int
	VideoBitrate string
	Audio        bool
	CreatedAt    time.Time

	mu       sync.Mutex
	state    State
	detail   string
	lastOKAt time.Time
}

// NewSession creates a session record in the starting state.
func NewSession(id, dir string) *Session {
	return &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: time.Now(),
		state:     StateStarting,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Detail returns the human-readable reason attached to an error state, or ""
// for healthy sessions.
func (s *Session) Detail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

// Transition moves the session along a lifecycle edge. Edges not in the
// transition table fail with ErrInvalidTransition and leave the state intact.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// Fail moves the session to the error state with a reason. Failing a session
// that is already terminal keeps the first outcome.
func (s *Session) Fail(detail string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(StateError) {
		return false
	}
	s.state = StateError
	s.detail = detail
	return true
}

// CloseTerminal forces the stopped state unless the session already reached a
// terminal state. Used at the end of teardown so a session never remains in a
// transient state.
func (s *Session) CloseTerminal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = StateStopped
}

// TouchOK records a successful liveness observation. The timestamp never
// moves backwards.
func (s *Session) TouchOK(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.lastOKAt) {
		s.lastOKAt = t
	}
}

// LastOKAt returns the most recent liveness timestamp; zero when the pipeline
// never produced fresh output.
func (s *Session) LastOKAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOKAt
}
