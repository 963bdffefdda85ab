// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store keeps the in-memory session records and their on-disk
// working directories.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/pagecast/internal/domain/session/model"
)

// ErrNotFound is returned for lookups of unknown session ids.
var ErrNotFound = errors.New("session not found")

// Registry owns all session records and their per-session directories under a
// common root. Every session gets a private directory named after its id, so
// two sessions never share output paths.
type Registry struct {
	root string

	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewRegistry creates a registry rooted at dir, creating the root if needed.
func NewRegistry(root string) (*Registry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions root: %w", err)
	}
	return &Registry{
		root:     root,
		sessions: make(map[string]*model.Session),
	}, nil
}

// Root returns the sessions root directory.
func (r *Registry) Root() string { return r.root }

// Create allocates a new session id, makes its directory and registers the
// record in the starting state. The imprint callback (optional) runs on the
// fresh record before it becomes visible to Get and List, so readers never
// observe a half-populated session.
func (r *Registry) Create(imprint func(*model.Session)) (*model.Session, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	dir := filepath.Join(r.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	sess := model.NewSession(id, dir)
	if imprint != nil {
		imprint(sess)
	}
	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess, nil
}

// Get returns the session record for id.
func (r *Registry) Get(id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// List returns all session records ordered by creation time.
func (r *Registry) List() []*model.Session {
	r.mu.RLock()
	out := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the record and its directory. Removing an unknown id is a
// no-op so delete is idempotent.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = os.RemoveAll(sess.Dir)
}
