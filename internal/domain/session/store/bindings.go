// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"errors"
	"fmt"
	"sync"
)

// ErrReceiverBusy is returned when a receiver name is already bound to a live
// session.
var ErrReceiverBusy = errors.New("receiver already in use")

// Bindings enforces the one-session-per-receiver rule. A receiver name is
// bound to exactly one session id from bind until release; a second bind for
// the same name fails while the first is held.
type Bindings struct {
	mu     sync.Mutex
	byName map[string]string // receiver name -> session id
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{byName: make(map[string]string)}
}

// Bind claims the receiver name for the session.
func (b *Bindings) Bind(name, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if holder, ok := b.byName[name]; ok {
		return fmt.Errorf("%w: %q held by session %s", ErrReceiverBusy, name, holder)
	}
	b.byName[name] = sessionID
	return nil
}

// Owner returns the session currently holding the receiver name.
func (b *Bindings) Owner(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byName[name]
	return id, ok
}

// Release frees the binding, but only if the session still owns it. A stale
// release from a session that already lost the name never evicts the current
// holder.
func (b *Bindings) Release(name, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byName[name] == sessionID {
		delete(b.byName, name)
	}
}
