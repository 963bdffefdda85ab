// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"sync"
	"time"
)

// StopSignal is a latching one-way flag. Once raised it stays raised; every
// raise after the first is a no-op, so concurrent stop requests coalesce.
type StopSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewStopSignal creates an unraised signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Raise latches the signal.
func (s *StopSignal) Raise() {
	s.once.Do(func() { close(s.ch) })
}

// Raised reports whether the signal has latched.
func (s *StopSignal) Raised() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal latches.
func (s *StopSignal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal latches or the duration elapses, reporting
// whether it latched in time.
func (s *StopSignal) Wait(d time.Duration) bool {
	select {
	case <-s.ch:
		return true
	case <-time.After(d):
		return false
	}
}
