// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager orchestrates the lifecycle of cast sessions: bring-up of
// display, browser and encoder, warmup, the freshness watchdog and guaranteed
// teardown.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/pagecast/internal/domain/session/model"
	"github.com/ManuGH/pagecast/internal/domain/session/store"
	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/metrics"
	"github.com/ManuGH/pagecast/internal/sender"
)

// Orchestration timing. The warmup tick polls for first output, the watchdog
// tick checks steady-state freshness, and the join timeout bounds how long a
// stop request waits for the session loop to drain.
const (
	defaultWarmupTick     = 500 * time.Millisecond
	defaultWarmupDeadline = 15 * time.Second
	defaultWatchdogTick   = time.Second
	defaultStopJoin       = 10 * time.Second
)

// Manager creates, observes and stops sessions. One background goroutine per
// session drives its lifecycle; the manager only ever signals it.
type Manager struct {
	Registry *store.Registry
	Bindings *store.Bindings
	Sender   MediaSender
	Factory  RuntimeFactory

	// MediaBase is the externally reachable URL prefix receivers fetch HLS
	// from, e.g. "http://192.168.1.10:8080".
	MediaBase  string
	StaleAfter time.Duration

	WarmupTick     time.Duration
	WarmupDeadline time.Duration
	WatchdogTick   time.Duration
	StopJoin       time.Duration

	mu       sync.Mutex
	runtimes map[string]*runtime
	tasks    taskGroup
}

// New creates a Manager with default timing.
func New(reg *store.Registry, snd MediaSender, factory RuntimeFactory, mediaBase string) *Manager {
	return &Manager{
		Registry:       reg,
		Bindings:       store.NewBindings(),
		Sender:         snd,
		Factory:        factory,
		MediaBase:      mediaBase,
		StaleAfter:     hls.DefaultStaleAfter,
		WarmupTick:     defaultWarmupTick,
		WarmupDeadline: defaultWarmupDeadline,
		WatchdogTick:   defaultWatchdogTick,
		StopJoin:       defaultStopJoin,
		runtimes:       make(map[string]*runtime),
	}
}

// Start validates the request, creates the session record and launches its
// orchestration loop. It returns as soon as the session exists; bring-up
// progress is observable through Status. The receiver binding is claimed
// later, when warmup succeeds and the receiver accepts play.
func (m *Manager) Start(req StartRequest) (*model.Session, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	// The request fields are imprinted before the record is published, so a
	// concurrent list or status read never sees a half-populated session.
	sess, err := m.Registry.Create(func(s *model.Session) {
		s.URL = req.URL
		s.ReceiverName = req.ReceiverName
		s.ReceiverHost = req.ReceiverHost
		s.ReceiverPort = req.ReceiverPort
		s.Title = req.Title
		s.Width = req.Width
		s.Height = req.Height
		s.FPS = req.FPS
		s.VideoBitrate = req.VideoBitrate
		s.Audio = req.Audio
	})
	if err != nil {
		return nil, err
	}

	collab, err := m.Factory(sess, req)
	if err != nil {
		m.Registry.Delete(sess.ID)
		return nil, err
	}

	rt := &runtime{
		sess:   sess,
		collab: collab,
		stop:   NewStopSignal(),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.runtimes[sess.ID] = rt
	m.mu.Unlock()

	if err := m.tasks.Go(func() { m.run(rt) }); err != nil {
		m.mu.Lock()
		delete(m.runtimes, sess.ID)
		m.mu.Unlock()
		m.Registry.Delete(sess.ID)
		return nil, fmt.Errorf("daemon is shutting down: %w", err)
	}

	metrics.SessionsStarted.Inc()
	return sess, nil
}

// Get returns the session record for id.
func (m *Manager) Get(id string) (*model.Session, error) {
	return m.Registry.Get(id)
}

// List returns all session records.
func (m *Manager) List() []*model.Session {
	return m.Registry.List()
}

// Status assembles the observable view of one session.
func (m *Manager) Status(id string) (Status, error) {
	sess, err := m.Registry.Get(id)
	if err != nil {
		return Status{}, err
	}
	return m.snapshot(sess), nil
}

// StatusAll returns the observable view of every session.
func (m *Manager) StatusAll() []Status {
	sessions := m.Registry.List()
	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, m.snapshot(sess))
	}
	return out
}

// Stop requests teardown of the session, waits for its loop to drain and
// removes the record with its directory. Stopping an already terminal session
// just removes the record. Unknown ids fail with store.ErrNotFound.
func (m *Manager) Stop(ctx context.Context, id string) error {
	sess, err := m.Registry.Get(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	rt := m.runtimes[id]
	m.mu.Unlock()

	if rt == nil {
		// Loop already drained; only the record is left.
		m.Registry.Delete(id)
		return nil
	}

	// Invalid edges (already stopping or terminal) mean a concurrent stop got
	// there first; the signal below is idempotent either way.
	_ = sess.Transition(model.StateStopping)
	rt.stop.Raise()

	// Eager receiver stop: playback halts even when the session loop is wedged
	// in a slow teardown. Only the binding owner may command its receiver.
	if m.Sender != nil {
		if owner, held := m.Bindings.Owner(sess.ReceiverName); held && owner == id {
			m.Sender.Stop(ctx, sess.ReceiverName, sess.ReceiverHost, sess.ReceiverPort)
		}
	}

	join := m.StopJoin
	if join <= 0 {
		join = defaultStopJoin
	}
	select {
	case <-rt.done:
	case <-time.After(join):
		logger := log.WithComponent("manager")
		logger.Warn().
			Str(log.FieldSessionID, id).
			Msg("session loop did not drain before join timeout")
	case <-ctx.Done():
	}

	m.Registry.Delete(id)
	metrics.SessionsStopped.Inc()
	return nil
}

// Receivers lists receivers known to the discovery capability.
func (m *Manager) Receivers(ctx context.Context) ([]sender.Receiver, error) {
	if m.Sender == nil {
		return nil, nil
	}
	return m.Sender.Discover(ctx)
}

// Shutdown stops every live session and waits for all loops to drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	rts := make([]*runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		rts = append(rts, rt)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, rt := range rts {
		rt := rt
		g.Go(func() error {
			_ = rt.sess.Transition(model.StateStopping)
			rt.stop.Raise()
			select {
			case <-rt.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return m.tasks.CloseAndWait(ctx)
}

func (m *Manager) staleAfter() time.Duration {
	if m.StaleAfter > 0 {
		return m.StaleAfter
	}
	return hls.DefaultStaleAfter
}

func (m *Manager) snapshot(sess *model.Session) Status {
	st := Status{
		ID:           sess.ID,
		State:        sess.State(),
		Detail:       sess.Detail(),
		URL:          sess.URL,
		ReceiverName: sess.ReceiverName,
		ReceiverHost: sess.ReceiverHost,
		ReceiverPort: sess.ReceiverPort,
		Title:        sess.Title,
		Width:        sess.Width,
		Height:       sess.Height,
		FPS:          sess.FPS,
		VideoBitrate: sess.VideoBitrate,
		Audio:        sess.Audio,
		CreatedAt:    sess.CreatedAt,
	}
	if hls.PlaylistExists(sess.Dir) {
		u := fmt.Sprintf("%s/cast/%s/%s", m.MediaBase, sess.ID, hls.MasterPlaylistName)
		st.HLSURL = &u
	}
	report := hls.Evaluate(sess.Dir, m.staleAfter())
	st.LastSegmentAgeMS = report.SegmentAgeMS()
	if t := sess.LastOKAt(); !t.IsZero() {
		st.LastOKAt = &t
	}
	return st
}

// Status is the wire-facing snapshot of a session.
type Status struct {
	ID               string      `json:"id"`
	State            model.State `json:"state"`
	Detail           string      `json:"detail,omitempty"`
	URL              string      `json:"url"`
	ReceiverName     string      `json:"receiver_name"`
	ReceiverHost     string      `json:"receiver_host,omitempty"`
	ReceiverPort     int         `json:"receiver_port,omitempty"`
	Title            string      `json:"title,omitempty"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	FPS              int         `json:"fps"`
	VideoBitrate     string      `json:"video_bitrate"`
	Audio            bool        `json:"audio"`
	CreatedAt        time.Time   `json:"created_at"`
	HLSURL           *string     `json:"hls_url"`
	LastSegmentAgeMS *int64      `json:"last_segment_age_ms"`
	LastOKAt         *time.Time  `json:"last_ok_at,omitempty"`
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
