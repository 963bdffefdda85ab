// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestEvaluateEmptyDirIsStale(t *testing.T) {
	r := Evaluate(t.TempDir(), time.Second)
	assert.True(t, r.Stale)
	assert.Nil(t, r.Age())
	assert.Nil(t, r.SegmentAgeMS())
}

func TestEvaluateFreshSegment(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "variant_1080p0.ts"), 100*time.Millisecond)

	r := Evaluate(dir, 8*time.Second)
	require.NotNil(t, r.SegmentAge)
	assert.False(t, r.Stale)
	// the measured age includes test overhead; allow 50ms of slack
	assert.InDelta(t, 100, float64(*r.SegmentAgeMS()), 50)
}

func TestEvaluateStaleSegment(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "variant_720p3.ts"), 20*time.Second)

	r := Evaluate(dir, 8*time.Second)
	assert.True(t, r.Stale)
	require.NotNil(t, r.SegmentAge)
	assert.Greater(t, *r.SegmentAgeMS(), int64(19000))
}

func TestEvaluateNewestSegmentWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a0.ts"), 30*time.Second)
	touch(t, filepath.Join(dir, "a1.ts"), time.Second)

	r := Evaluate(dir, 8*time.Second)
	assert.False(t, r.Stale)
	require.NotNil(t, r.SegmentAge)
	assert.Less(t, *r.SegmentAgeMS(), int64(5000))
}

func TestEvaluatePlaylistFallback(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, MasterPlaylistName), 500*time.Millisecond)

	r := Evaluate(dir, 8*time.Second)
	assert.False(t, r.Stale)
	assert.Nil(t, r.SegmentAge, "playlist fallback must not masquerade as a segment age")
	assert.Nil(t, r.SegmentAgeMS())
	require.NotNil(t, r.Age())
}

func TestEvaluateIgnoresNonSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "notes.txt"), time.Second)

	r := Evaluate(dir, 8*time.Second)
	assert.True(t, r.Stale)
	assert.Nil(t, r.Age())
}

func TestPlaylistExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, PlaylistExists(dir))
	touch(t, filepath.Join(dir, MasterPlaylistName), 0)
	assert.True(t, PlaylistExists(dir))
}
