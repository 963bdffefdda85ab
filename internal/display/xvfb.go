// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package display owns the virtual framebuffer a session renders into.
package display

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/procgroup"
)

// ErrSpawn is returned when the Xvfb binary is missing or exits immediately.
var ErrSpawn = errors.New("xvfb spawn failed")

const (
	defaultDepth = 24
	// spawnProbe is how long a fresh Xvfb must survive before Start reports
	// success; an immediate exit (bad display, port clash) fails inside it.
	spawnProbe = 200 * time.Millisecond
	stopGrace  = 3 * time.Second
	killWait   = 2 * time.Second
)

// Server is a handle to one spawned Xvfb instance bound to a display
// identifier. The display identity is passed explicitly to every child that
// needs it; the handle never mutates the process environment, so concurrent
// sessions on distinct displays coexist.
type Server struct {
	Display    string // e.g. ":99"
	Width      int
	Height     int
	Depth      int
	BinPath    string
	HideCursor bool

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// New returns an Xvfb handle for the given display geometry.
func New(displayID string, width, height int, binPath string) *Server {
	if binPath == "" {
		binPath = "Xvfb"
	}
	return &Server{
		Display:    displayID,
		Width:      width,
		Height:     height,
		Depth:      defaultDepth,
		BinPath:    binPath,
		HideCursor: true,
	}
}

// Start spawns the Xvfb process. A second call while the server is alive is a
// no-op. TCP listening is refused; clients attach through the unix socket.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alive() {
		return nil
	}

	args := []string{
		s.Display,
		"-screen", "0", fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth),
		"-nolisten", "tcp",
	}
	if s.HideCursor {
		args = append(args, "-nocursor")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	logger := log.WithComponent("display")
	cmd := exec.Command(s.BinPath, args...) // #nosec G204 -- argv is built from validated fields
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		return fmt.Errorf("%w: %s exited immediately on %s", ErrSpawn, s.BinPath, s.Display)
	case <-time.After(spawnProbe):
	}

	s.cmd = cmd
	s.done = done
	logger.Info().
		Str(log.FieldDisplay, s.Display).
		Int(log.FieldPID, cmd.Process.Pid).
		Str("geometry", fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)).
		Msg("virtual display started")
	return nil
}

// Stop terminates the Xvfb process group: SIGTERM, 3s grace, SIGKILL.
// Idempotent; a handle that never started is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd, s.done = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return
	}
	logger := log.WithComponent("display")
	if err := procgroup.Terminate(cmd, done, stopGrace, killWait); err != nil {
		logger.Warn().Err(err).Str(log.FieldDisplay, s.Display).Msg("virtual display did not exit cleanly")
		return
	}
	logger.Info().Str(log.FieldDisplay, s.Display).Msg("virtual display stopped")
}

// Running reports liveness by non-blocking reap.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive()
}

// Name returns the display identifier, e.g. ":99".
func (s *Server) Name() string { return s.Display }

func (s *Server) alive() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
