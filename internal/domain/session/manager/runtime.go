// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/pagecast/internal/domain/session/model"
	"github.com/rs/zerolog"

	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/metrics"
)

// runtime is the live half of a session: its collaborators, stop latch and
// loop-drained channel. The manager signals it, never reaches into it.
type runtime struct {
	sess   *model.Session
	collab Collaborators
	stop   *StopSignal
	done   chan struct{}
	bound  bool
}

// run drives one session from bring-up to teardown. It is the only goroutine
// that mutates the session's collaborators, so teardown never races with
// bring-up.
func (m *Manager) run(rt *runtime) {
	defer close(rt.done)
	defer m.teardown(rt)

	logger := log.WithComponent("manager").With().
		Str(log.FieldSessionID, rt.sess.ID).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-rt.stop.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if !m.bringUp(ctx, rt, logger) {
		return
	}
	if !m.warmup(ctx, rt, logger) {
		return
	}
	m.watchdog(rt, logger)
}

func (m *Manager) bringUp(ctx context.Context, rt *runtime, logger zerolog.Logger) bool {
	steps := []struct {
		name  string
		start func(context.Context) error
	}{
		{"display", rt.collab.Display.Start},
		{"browser", rt.collab.Browser.Open},
		{"encoder", rt.collab.Encoder.Start},
	}
	for _, step := range steps {
		if rt.stop.Raised() {
			return false
		}
		if err := step.start(ctx); err != nil {
			m.fail(rt, step.name+"_start", fmt.Sprintf("%s start failed: %v", step.name, err), logger)
			return false
		}
		logger.Debug().Str(log.FieldEvent, step.name+"_up").Msg("component started")
	}
	return true
}

// warmup polls for the first playable output: the master playlist must exist
// and the newest output must be fresh. Success commands the receiver, claims
// the binding and transitions to playing. Each poll sleeps on the stop signal
// so a stop wakes warmup within one tick.
func (m *Manager) warmup(ctx context.Context, rt *runtime, logger zerolog.Logger) bool {
	tick := m.WarmupTick
	if tick <= 0 {
		tick = defaultWarmupTick
	}
	deadline := m.WarmupDeadline
	if deadline <= 0 {
		deadline = defaultWarmupDeadline
	}
	deadlineAt := time.Now().Add(deadline)

	for {
		if rt.stop.Wait(tick) {
			return false
		}
		if time.Now().After(deadlineAt) {
			m.fail(rt, "warmup_timeout",
				fmt.Sprintf("no playable output within %s", deadline), logger)
			return false
		}
		if !rt.collab.Encoder.Running() {
			m.fail(rt, "encoder_exit", "encoder exited during warmup", logger)
			return false
		}
		report := rt.collab.Encoder.Freshness()
		if !hls.PlaylistExists(rt.sess.Dir) || report.Stale {
			continue
		}

		mediaURL := fmt.Sprintf("%s/cast/%s/%s", m.MediaBase, rt.sess.ID, hls.MasterPlaylistName)
		if m.Sender != nil {
			if owner, held := m.Bindings.Owner(rt.sess.ReceiverName); held && owner != rt.sess.ID {
				// Another live session owns this receiver name; playing over it
				// would hijack its playback. The stream stays available locally.
				logger.Warn().
					Str(log.FieldReceiver, rt.sess.ReceiverName).
					Str(log.FieldEvent, "receiver_held").
					Msg("receiver bound to another session, play skipped")
			} else if m.Sender.Play(ctx, rt.sess.ReceiverName, rt.sess.ReceiverHost, rt.sess.ReceiverPort, mediaURL) {
				if err := m.Bindings.Bind(rt.sess.ReceiverName, rt.sess.ID); err == nil {
					rt.bound = true
				}
			} else {
				logger.Warn().
					Str(log.FieldReceiver, rt.sess.ReceiverName).
					Msg("receiver did not accept play, stream stays available")
			}
		}

		rt.sess.TouchOK(time.Now())
		if err := rt.sess.Transition(model.StatePlaying); err != nil {
			// A concurrent stop moved the state; teardown handles the rest.
			return false
		}
		logger.Info().Str(log.FieldEvent, "playing").Msg("session warmed up")
		return true
	}
}

// watchdog enforces steady-state freshness. A known output age beyond the
// stale threshold fails the session; an unknown age is tolerated, since
// segment rotation can briefly leave nothing to measure.
func (m *Manager) watchdog(rt *runtime, logger zerolog.Logger) {
	tick := m.WatchdogTick
	if tick <= 0 {
		tick = defaultWatchdogTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stop.Done():
			return
		case <-ticker.C:
		}

		if !rt.collab.Encoder.Running() {
			m.fail(rt, "encoder_exit", "encoder exited unexpectedly", logger)
			return
		}
		report := rt.collab.Encoder.Freshness()
		age := report.Age()
		if age == nil {
			continue
		}
		if *age > m.staleAfter() {
			m.fail(rt, "stale_output",
				fmt.Sprintf("output stalled for %s", age.Round(time.Millisecond)), logger)
			return
		}
		rt.sess.TouchOK(time.Now())
	}
}

// fail moves the session to error and records the reason. The first failure
// wins; later ones only log.
func (m *Manager) fail(rt *runtime, reason, detail string, logger zerolog.Logger) {
	if rt.sess.Fail(detail) {
		metrics.IncSessionFailure(reason)
		logger.Error().
			Str(log.FieldEvent, reason).
			Str(log.FieldNewState, string(model.StateError)).
			Msg(detail)
		return
	}
	logger.Debug().Str(log.FieldEvent, reason).Msg(detail)
}

// teardown releases everything a session holds, in strict reverse bring-up
// order. Every step tolerates failure so one stuck component never leaks the
// others.
func (m *Manager) teardown(rt *runtime) {
	logger := log.WithComponent("manager").With().
		Str(log.FieldSessionID, rt.sess.ID).
		Logger()

	rt.collab.Encoder.Stop()
	rt.collab.Browser.Close()
	rt.collab.Display.Stop()

	if rt.bound {
		if m.Sender != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.Sender.Stop(ctx, rt.sess.ReceiverName, rt.sess.ReceiverHost, rt.sess.ReceiverPort)
			cancel()
		}
		m.Bindings.Release(rt.sess.ReceiverName, rt.sess.ID)
		rt.bound = false
	}

	rt.sess.CloseTerminal()

	m.mu.Lock()
	delete(m.runtimes, rt.sess.ID)
	m.mu.Unlock()

	logger.Info().
		Str(log.FieldEvent, "teardown_complete").
		Str(log.FieldNewState, string(rt.sess.State())).
		Msg("session resources released")
}
