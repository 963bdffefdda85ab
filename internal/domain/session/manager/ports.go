// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ManuGH/pagecast/internal/domain/session/model"
	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/sender"
)

// Display is the virtual framebuffer a session renders into.
type Display interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Name() string
}

// Browser renders the target page on the session display.
type Browser interface {
	Open(ctx context.Context) error
	Close()
	Running() bool
}

// Encoder captures the display into segmented HLS output.
type Encoder interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Freshness() hls.Report
}

// MediaSender commands the network receiver. Play and Stop are best effort
// and report success as a bool rather than an error, mirroring the fact that
// a deaf receiver must not fail an otherwise healthy pipeline.
type MediaSender interface {
	Discover(ctx context.Context) ([]sender.Receiver, error)
	Play(ctx context.Context, name, host string, port int, mediaURL string) bool
	Stop(ctx context.Context, name, host string, port int) bool
}

// Collaborators bundles the per-session process handles.
type Collaborators struct {
	Display Display
	Browser Browser
	Encoder Encoder
}

// RuntimeFactory builds the collaborators for one session. Implementations
// must not start anything; the orchestrator owns bring-up order.
type RuntimeFactory func(sess *model.Session, req StartRequest) (Collaborators, error)

// StartRequest is the public shape of a session creation request.
type StartRequest struct {
	URL          string `json:"url"`
	ReceiverName string `json:"receiver_name"`
	ReceiverHost string `json:"receiver_host,omitempty"`
	ReceiverPort int    `json:"receiver_port,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	FPS          int    `json:"fps,omitempty"`
	VideoBitrate string `json:"video_bitrate,omitempty"`
	Audio        bool   `json:"audio,omitempty"`
	AudioDevice  string `json:"audio_device,omitempty"`
	Cookie       string `json:"cookie,omitempty"`
	CookiesPath  string `json:"cookies_path,omitempty"`
	UserDataDir  string `json:"user_data_dir,omitempty"`
	Title        string `json:"title,omitempty"`
	WaitUntil    string `json:"wait_until,omitempty"`
	HideUI       *bool  `json:"hide_browser_ui,omitempty"`
}

// ErrValidation marks requests rejected before any resource is touched.
var ErrValidation = errors.New("invalid session request")

// Normalize validates the request and fills defaults in place.
func (r *StartRequest) Normalize() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ErrValidation)
	}
	if r.ReceiverName == "" {
		return fmt.Errorf("%w: receiver_name is required", ErrValidation)
	}
	if r.Cookie != "" && r.CookiesPath != "" {
		return fmt.Errorf("%w: cookie and cookies_path are mutually exclusive", ErrValidation)
	}
	switch r.WaitUntil {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("%w: unknown wait_until %q", ErrValidation, r.WaitUntil)
	}

	if r.Width <= 0 {
		r.Width = 1920
	}
	if r.Height <= 0 {
		r.Height = 1080
	}
	if r.FPS <= 0 {
		r.FPS = 15
	}
	if r.VideoBitrate == "" {
		r.VideoBitrate = "3500k"
	}
	if r.ReceiverPort <= 0 {
		r.ReceiverPort = sender.DefaultPort
	}
	if r.WaitUntil == "" {
		r.WaitUntil = "networkidle"
	}
	if r.HideUI == nil {
		hide := true
		r.HideUI = &hide
	}
	return nil
}
