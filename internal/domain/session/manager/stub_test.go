// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/sender"
)

// callLog records lifecycle calls across stub collaborators so tests can
// assert teardown ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) indexOf(name string) int {
	for i, c := range l.snapshot() {
		if c == name {
			return i
		}
	}
	return -1
}

func (l *callLog) lastIndexOf(name string) int {
	calls := l.snapshot()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i] == name {
			return i
		}
	}
	return -1
}

type stubDisplay struct {
	log      *callLog
	startErr error
	mu       sync.Mutex
	running  bool
}

func (d *stubDisplay) Start(context.Context) error {
	d.log.add("display.start")
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	return nil
}

func (d *stubDisplay) Stop() {
	d.log.add("display.stop")
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *stubDisplay) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *stubDisplay) Name() string { return ":99" }

type stubBrowser struct {
	log     *callLog
	openErr error
	mu      sync.Mutex
	open    bool
}

func (b *stubBrowser) Open(context.Context) error {
	b.log.add("browser.open")
	if b.openErr != nil {
		return b.openErr
	}
	b.mu.Lock()
	b.open = true
	b.mu.Unlock()
	return nil
}

func (b *stubBrowser) Close() {
	b.log.add("browser.close")
	b.mu.Lock()
	b.open = false
	b.mu.Unlock()
}

func (b *stubBrowser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// stubEncoder optionally writes a master playlist on start so warmup can
// observe playable output, and reports freshness through freshFn.
type stubEncoder struct {
	log           *callLog
	dir           string
	startErr      error
	writePlaylist bool
	freshFn       func() hls.Report

	mu      sync.Mutex
	running bool
}

func freshReport() hls.Report {
	age := 50 * time.Millisecond
	return hls.Report{SegmentAge: &age, Stale: false}
}

func staleReport() hls.Report {
	age := time.Minute
	return hls.Report{SegmentAge: &age, Stale: true}
}

func (e *stubEncoder) Start(context.Context) error {
	e.log.add("encoder.start")
	if e.startErr != nil {
		return e.startErr
	}
	if e.writePlaylist {
		_ = os.WriteFile(filepath.Join(e.dir, hls.MasterPlaylistName), []byte("#EXTM3U\n"), 0o644)
	}
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	return nil
}

func (e *stubEncoder) Stop() {
	e.log.add("encoder.stop")
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *stubEncoder) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *stubEncoder) kill() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *stubEncoder) Freshness() hls.Report {
	if e.freshFn != nil {
		return e.freshFn()
	}
	return freshReport()
}

// stubSender records every receiver command.
type stubSender struct {
	log      *callLog
	playOK   bool
	mu       sync.Mutex
	playURLs []string
}

func (s *stubSender) Discover(context.Context) ([]sender.Receiver, error) { return nil, nil }

func (s *stubSender) Play(_ context.Context, _, _ string, _ int, mediaURL string) bool {
	s.log.add("sender.play")
	s.mu.Lock()
	s.playURLs = append(s.playURLs, mediaURL)
	s.mu.Unlock()
	return s.playOK
}

func (s *stubSender) Stop(context.Context, string, string, int) bool {
	s.log.add("sender.stop")
	return true
}

func (s *stubSender) playedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.playURLs))
	copy(out, s.playURLs)
	return out
}

// stubRig bundles a manager with its stub collaborators. The factory hands
// out the same stubs for every session, which the single-session tests rely
// on.
type stubRig struct {
	mgr     *Manager
	log     *callLog
	display *stubDisplay
	browser *stubBrowser
	encoder *stubEncoder
	sender  *stubSender
}

func validRequest() StartRequest {
	return StartRequest{
		URL:          "https://example.com/dashboard",
		ReceiverName: "living-room",
		ReceiverHost: "192.168.1.50",
	}
}
