// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"sync"
)

// errGroupClosed is returned by Go after CloseAndWait started.
var errGroupClosed = errors.New("task group closed")

// taskGroup tracks session background goroutines so daemon shutdown can wait
// for every orchestration loop to drain.
type taskGroup struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Go runs fn on the group. It fails once the group is closing, so no new
// session loop can start mid-shutdown.
func (g *taskGroup) Go(fn func()) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errGroupClosed
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		fn()
	}()
	return nil
}

// CloseAndWait refuses new tasks and blocks until the running ones finish or
// the context expires.
func (g *taskGroup) CloseAndWait(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
