// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package display

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Allocator hands out display identifiers for concurrent sessions. A display
// number is never reused until the session that held it has released it,
// which keeps Xvfb socket paths disjoint across live sessions.
type Allocator struct {
	mu    sync.Mutex
	base  int
	inUse map[int]bool
}

// NewAllocator creates an allocator starting at :base (conventionally :99).
func NewAllocator(base int) *Allocator {
	if base <= 0 {
		base = 99
	}
	return &Allocator{base: base, inUse: make(map[int]bool)}
}

// Acquire reserves the lowest free display number and returns it as ":N".
func (a *Allocator) Acquire() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.base
	for a.inUse[n] {
		n++
	}
	a.inUse[n] = true
	return fmt.Sprintf(":%d", n)
}

// Release frees a previously acquired display identifier. Unknown or
// malformed identifiers are ignored.
func (a *Allocator) Release(displayID string) {
	n, err := strconv.Atoi(strings.TrimPrefix(displayID, ":"))
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, n)
}
