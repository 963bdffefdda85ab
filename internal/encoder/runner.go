// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/metrics"
	"github.com/ManuGH/pagecast/internal/procgroup"
)

var (
	// ErrAlreadyRunning is returned by Start while an encoder process is alive.
	ErrAlreadyRunning = errors.New("encoder already running")
	// ErrSpawn is returned when the ffmpeg binary cannot be started.
	ErrSpawn = errors.New("encoder spawn failed")
)

const (
	stopGrace = 5 * time.Second
	killWait  = 2 * time.Second
)

// Runner manages a single ffmpeg capture process writing into a session
// directory.
type Runner struct {
	BinPath string
	Display string
	OutDir  string
	Profile Profile

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	ring *LineRing
}

// NewRunner creates an encoder runner for the given display and output
// directory. Profile defaults are applied here so the runner and its argv
// always agree.
func NewRunner(binPath, displayID, outDir string, profile Profile) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Runner{
		BinPath: binPath,
		Display: displayID,
		OutDir:  outDir,
		Profile: profile.WithDefaults(),
		ring:    NewLineRing(256),
	}
}

// Start spawns ffmpeg. It is not idempotent: a second call while the process
// is alive fails with ErrAlreadyRunning.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.alive() {
		return ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	args, err := BuildArgs(r.Display, r.OutDir, r.Profile)
	if err != nil {
		return err
	}

	logger := log.WithComponent("encoder")
	cmd := exec.Command(r.BinPath, args...) // #nosec G204 -- argv built by BuildArgs, no shell
	cmd.Stderr = r.ring
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		metrics.IncEncoderStart("error")
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		close(done)
		if err != nil {
			metrics.IncEncoderExit("error")
			logger.Warn().
				Err(err).
				Str(log.FieldDisplay, r.Display).
				Strs("stderr", r.ring.LastN(10)).
				Msg("encoder exited with error")
			return
		}
		metrics.IncEncoderExit("ok")
	}()

	r.cmd = cmd
	r.done = done
	metrics.IncEncoderStart("ok")
	logger.Info().
		Str(log.FieldDisplay, r.Display).
		Int(log.FieldPID, cmd.Process.Pid).
		Str(log.FieldPath, r.OutDir).
		Msg("encoder started")
	return nil
}

// Stop terminates the encoder process group: SIGTERM, 5s grace, SIGKILL.
// Idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	cmd, done := r.cmd, r.done
	r.cmd, r.done = nil, nil
	r.mu.Unlock()

	if cmd == nil {
		return
	}
	logger := log.WithComponent("encoder")
	if err := procgroup.Terminate(cmd, done, stopGrace, killWait); err != nil {
		logger.Warn().Err(err).Str(log.FieldDisplay, r.Display).Msg("encoder did not exit cleanly")
		return
	}
	logger.Info().Str(log.FieldDisplay, r.Display).Msg("encoder stopped")
}

// Running reports liveness by non-blocking reap.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive()
}

// Freshness reports the recency of the runner's output directory.
func (r *Runner) Freshness() hls.Report {
	return hls.Evaluate(r.OutDir, r.Profile.StaleAfter)
}

func (r *Runner) alive() bool {
	if r.cmd == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
