// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package model holds the session aggregate and its lifecycle states.
package model

// State is the lifecycle state of a cast session.
type State string

const (
	// StateStarting covers display, browser and encoder bring-up plus warmup.
	StateStarting State = "starting"
	// StatePlaying means the pipeline produces fresh output and the receiver
	// was commanded.
	StatePlaying State = "playing"
	// StateStopping means teardown was requested and is in progress.
	StateStopping State = "stopping"
	// StateStopped is the terminal state after a clean teardown.
	StateStopped State = "stopped"
	// StateError is the terminal state after a failure; resources are torn
	// down but the record keeps its reason.
	StateError State = "error"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateError
}

// CanTransition reports whether the edge s -> to is part of the lifecycle.
// Terminal states have no outgoing edges; a repeated stop request while
// already stopping is not an edge and callers treat it as a no-op.
func (s State) CanTransition(to State) bool {
	switch s {
	case StateStarting:
		return to == StatePlaying || to == StateStopping || to == StateStopped || to == StateError
	case StatePlaying:
		return to == StateStopping || to == StateStopped || to == StateError
	case StateStopping:
		return to == StateStopped
	default:
		return false
	}
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateStarting, StatePlaying, StateStopping, StateStopped, StateError:
		return true
	}
	return false
}
