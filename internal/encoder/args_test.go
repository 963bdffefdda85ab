// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsDeterministic(t *testing.T) {
	p := Profile{Width: 1280, Height: 720, FPS: 30, VideoBitrate: "2500k"}

	a, err := BuildArgs(":99", "/tmp/out", p)
	require.NoError(t, err)
	b, err := BuildArgs(":99", "/tmp/out", p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildArgsVideoOnly(t *testing.T) {
	args, err := BuildArgs(":42", "/tmp/s1", Profile{
		Width: 1920, Height: 1080, FPS: 15, VideoBitrate: "3500k",
	})
	require.NoError(t, err)

	assert.Contains(t, args, "x11grab")
	assert.Contains(t, args, ":42")
	assert.Contains(t, args, "1920x1080")
	assert.NotContains(t, args, "pulse")
	assert.NotContains(t, args, "aac")
	assert.Contains(t, args, "/tmp/s1/variant_1080p.m3u8")

	// bufsize is twice the rate, gop covers two seconds
	assert.Equal(t, "7000k", argAfter(t, args, "-bufsize"))
	assert.Equal(t, "30", argAfter(t, args, "-g"))
	assert.Equal(t, "30", argAfter(t, args, "-keyint_min"))
	assert.Equal(t, "index.m3u8", argAfter(t, args, "-master_pl_name"))
}

func TestBuildArgsWithAudio(t *testing.T) {
	args, err := BuildArgs(":42", "/tmp/s2", Profile{
		Width: 1280, Height: 720, FPS: 25, VideoBitrate: "2000k",
		Audio: true, AudioDevice: "pulse-src.monitor",
	})
	require.NoError(t, err)

	assert.Contains(t, args, "pulse")
	assert.Contains(t, args, "pulse-src.monitor")
	assert.Contains(t, args, "aac")
	assert.Equal(t, "2", argAfter(t, args, "-ac"))

	// audio input comes after the x11grab input, before the codec flags
	assert.Less(t, indexOf(args, "x11grab"), indexOf(args, "pulse"))
	assert.Less(t, indexOf(args, "pulse"), indexOf(args, "libx264"))
}

func TestBuildArgsRejectsBadBitrate(t *testing.T) {
	_, err := BuildArgs(":1", "/tmp", Profile{VideoBitrate: "fast"})
	require.Error(t, err)
}

func TestProfileDefaults(t *testing.T) {
	p := Profile{}.WithDefaults()
	assert.Equal(t, 1920, p.Width)
	assert.Equal(t, 1080, p.Height)
	assert.Equal(t, 15, p.FPS)
	assert.Equal(t, "3500k", p.VideoBitrate)
	assert.Equal(t, 2, p.SegmentSecs)
	assert.Equal(t, 6, p.ListSize)
	assert.Equal(t, "variant_1080p.m3u8", p.VariantName())
}

func TestParseBitrate(t *testing.T) {
	buf, err := Profile{VideoBitrate: "1500k"}.BufSize()
	require.NoError(t, err)
	assert.Equal(t, "3000k", buf)

	buf, err = Profile{VideoBitrate: "2M"}.BufSize()
	require.NoError(t, err)
	assert.Equal(t, "4M", buf)

	_, err = Profile{VideoBitrate: "k"}.BufSize()
	assert.Error(t, err)
}

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}
