// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package hls inspects the recency of a session's playlist and segments.
package hls

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MasterPlaylistName is the master playlist filename written by the encoder.
const MasterPlaylistName = "index.m3u8"

// DefaultStaleAfter is the freshness threshold applied when a profile does not
// override it.
const DefaultStaleAfter = 8 * time.Second

// Report describes the recency of a session directory.
//
// SegmentAge is the age of the newest segment and is nil when no segment file
// exists yet. PlaylistAge is the fallback age of the playlist file, nil when
// the playlist does not exist either.
type Report struct {
	SegmentAge  *time.Duration
	PlaylistAge *time.Duration
	Stale       bool
}

// Age returns the effective age: newest segment when available, otherwise the
// playlist fallback, otherwise nil (nothing written yet).
func (r Report) Age() *time.Duration {
	if r.SegmentAge != nil {
		return r.SegmentAge
	}
	return r.PlaylistAge
}

// SegmentAgeMS is the client-facing segment age in milliseconds, nil when no
// segment has been observed.
func (r Report) SegmentAgeMS() *int64 {
	if r.SegmentAge == nil {
		return nil
	}
	ms := r.SegmentAge.Milliseconds()
	return &ms
}

// Evaluate scans dir for segment files and reports their recency against
// staleAfter. It is a pure function of the directory contents and the clock.
func Evaluate(dir string, staleAfter time.Duration) Report {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	now := time.Now()

	var newest time.Time
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".ts") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(newest) {
				newest = info.ModTime()
			}
		}
	}

	if !newest.IsZero() {
		age := now.Sub(newest)
		return Report{SegmentAge: &age, Stale: age > staleAfter}
	}

	// No segments yet: fall back to the playlist mtime.
	if info, err := os.Stat(filepath.Join(dir, MasterPlaylistName)); err == nil {
		age := now.Sub(info.ModTime())
		return Report{PlaylistAge: &age, Stale: age > staleAfter}
	}

	return Report{Stale: true}
}

// PlaylistExists reports whether the master playlist has been written.
func PlaylistExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MasterPlaylistName))
	return err == nil && !info.IsDir()
}
