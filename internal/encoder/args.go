// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package encoder spawns the ffmpeg screen-grab that turns a virtual display
// into a sliding-window HLS stream.
package encoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
	"unicode"

	"github.com/ManuGH/pagecast/internal/hls"
)

// Profile is the capture/encode configuration for one session.
type Profile struct {
	Width        int
	Height       int
	FPS          int
	VideoBitrate string // e.g. "3500k"; also the maxrate
	Audio        bool
	AudioDevice  string // pulse source, default "default"
	AudioBitrate string
	SegmentSecs  int
	ListSize     int
	StaleAfter   time.Duration
}

// WithDefaults fills unset fields with the standard ladder values.
func (p Profile) WithDefaults() Profile {
	if p.Width <= 0 {
		p.Width = 1920
	}
	if p.Height <= 0 {
		p.Height = 1080
	}
	if p.FPS <= 0 {
		p.FPS = 15
	}
	if p.VideoBitrate == "" {
		p.VideoBitrate = "3500k"
	}
	if p.AudioDevice == "" {
		p.AudioDevice = "default"
	}
	if p.AudioBitrate == "" {
		p.AudioBitrate = "128k"
	}
	if p.SegmentSecs <= 0 {
		p.SegmentSecs = 2
	}
	if p.ListSize <= 0 {
		p.ListSize = 6
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = hls.DefaultStaleAfter
	}
	return p
}

// VariantName is the variant playlist filename for this profile.
func (p Profile) VariantName() string {
	return fmt.Sprintf("variant_%dp.m3u8", p.Height)
}

// GOP is the keyframe interval: two seconds of frames, so every segment
// boundary lands on a keyframe.
func (p Profile) GOP() int { return p.FPS * 2 }

// BufSize is the rate-control buffer: twice the target bitrate, same unit.
func (p Profile) BufSize() (string, error) {
	rate, suffix, err := parseBitrate(p.VideoBitrate)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%s", rate*2, suffix), nil
}

func parseBitrate(v string) (int, string, error) {
	var digits, suffix []rune
	for _, ch := range v {
		if unicode.IsDigit(ch) {
			digits = append(digits, ch)
		} else {
			suffix = append(suffix, ch)
		}
	}
	if len(digits) == 0 {
		return 0, "", fmt.Errorf("invalid bitrate %q", v)
	}
	rate, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, "", fmt.Errorf("invalid bitrate %q: %w", v, err)
	}
	if len(suffix) == 0 {
		suffix = []rune("k")
	}
	return rate, string(suffix), nil
}

// BuildArgs constructs the ffmpeg argument vector for capturing displayID
// into outDir. It is a pure function of its inputs: repeat calls with an
// equal profile yield an equal vector.
func BuildArgs(displayID, outDir string, p Profile) ([]string, error) {
	p = p.WithDefaults()
	bufsize, err := p.BufSize()
	if err != nil {
		return nil, err
	}

	args := []string{
		"-loglevel", "warning",
		"-nostdin",
		"-y",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(p.FPS),
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-i", displayID,
	}

	if p.Audio {
		args = append(args,
			"-f", "pulse",
			"-i", p.AudioDevice,
		)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-b:v", p.VideoBitrate,
		"-maxrate", p.VideoBitrate,
		"-bufsize", bufsize,
		"-g", strconv.Itoa(p.GOP()),
		"-keyint_min", strconv.Itoa(p.GOP()),
		"-sc_threshold", "0",
	)

	if p.Audio {
		args = append(args,
			"-c:a", "aac",
			"-b:a", p.AudioBitrate,
			"-ac", "2",
		)
	}

	args = append(args,
		"-hls_time", strconv.Itoa(p.SegmentSecs),
		"-hls_list_size", strconv.Itoa(p.ListSize),
		"-hls_flags", "delete_segments+independent_segments",
		"-master_pl_name", hls.MasterPlaylistName,
		"-f", "hls",
		filepath.Join(outDir, p.VariantName()),
	)
	return args, nil
}
