// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config resolves the daemon configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"
)

// Config is the resolved daemon configuration. Precedence: environment > default.
type Config struct {
	SessionsDir      string // root for per-session directories
	HostAddr         string // bind address for the control plane
	HostPort         int    // bind port for the control plane
	HostnameOverride string // host announced to receivers instead of the bind addr
	LogLevel         string

	FFmpegBin   string
	XvfbBin     string
	ChromeBin   string // optional explicit Chromium binary for the launcher
	DisplayBase int    // first display number handed out by the allocator
}

// FromEnv builds a Config from environment variables, falling back to the
// documented defaults.
func FromEnv() Config {
	sessions := ParseString("SESSIONS_DIR", "./sessions")
	if abs, err := filepath.Abs(sessions); err == nil {
		sessions = abs
	}
	return Config{
		SessionsDir:      sessions,
		HostAddr:         ParseString("HOST_ADDR", "0.0.0.0"),
		HostPort:         ParseInt("HOST_PORT", 8080),
		HostnameOverride: ParseString("FC_HOSTNAME_OVERRIDE", ""),
		LogLevel:         ParseString("LOG_LEVEL", "info"),
		FFmpegBin:        ParseString("PAGECAST_FFMPEG", "ffmpeg"),
		XvfbBin:          ParseString("PAGECAST_XVFB", "Xvfb"),
		ChromeBin:        ParseString("PAGECAST_CHROME_BIN", ""),
		DisplayBase:      ParseInt("PAGECAST_DISPLAY_BASE", 99),
	}
}

// ListenAddr is the control-plane bind address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HostAddr, c.HostPort)
}

// MediaBaseURL is the URL prefix announced to receivers. The bind address is
// often 0.0.0.0, which is not reachable from a receiver, so an override host
// takes precedence when set.
func (c Config) MediaBaseURL() string {
	host := c.HostnameOverride
	if host == "" {
		host = c.HostAddr
	}
	return fmt.Sprintf("http://%s:%d", host, c.HostPort)
}
