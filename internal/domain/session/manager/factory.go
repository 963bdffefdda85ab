// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"time"

	"github.com/ManuGH/pagecast/internal/browser"
	"github.com/ManuGH/pagecast/internal/display"
	"github.com/ManuGH/pagecast/internal/domain/session/model"
	"github.com/ManuGH/pagecast/internal/encoder"
)

// FactoryConfig carries the process-level wiring a runtime factory needs.
type FactoryConfig struct {
	Displays   *display.Allocator
	XvfbBin    string
	ChromeBin  string
	FFmpegBin  string
	StaleAfter time.Duration
}

// NewRuntimeFactory returns the production factory: Xvfb display, rod-driven
// Chromium and an ffmpeg HLS encoder, all bound to one allocated display.
func NewRuntimeFactory(cfg FactoryConfig) RuntimeFactory {
	return func(sess *model.Session, req StartRequest) (Collaborators, error) {
		displayID := cfg.Displays.Acquire()

		disp := display.New(displayID, req.Width, req.Height, cfg.XvfbBin)

		ctl := browser.NewController(displayID, cfg.ChromeBin)
		spec := browser.LaunchSpec{
			URL:         req.URL,
			Width:       req.Width,
			Height:      req.Height,
			Cookie:      req.Cookie,
			CookiesPath: req.CookiesPath,
			UserDataDir: req.UserDataDir,
			HideUI:      req.HideUI == nil || *req.HideUI,
			WaitUntil:   req.WaitUntil,
		}
		if err := spec.Validate(); err != nil {
			cfg.Displays.Release(displayID)
			return Collaborators{}, err
		}

		enc := encoder.NewRunner(cfg.FFmpegBin, displayID, sess.Dir, encoder.Profile{
			Width:        req.Width,
			Height:       req.Height,
			FPS:          req.FPS,
			VideoBitrate: req.VideoBitrate,
			Audio:        req.Audio,
			AudioDevice:  req.AudioDevice,
			StaleAfter:   cfg.StaleAfter,
		})

		return Collaborators{
			Display: &allocatedDisplay{Server: disp, pool: cfg.Displays},
			Browser: &boundBrowser{ctl: ctl, spec: spec},
			Encoder: enc,
		}, nil
	}
}

// allocatedDisplay returns its display number to the pool when stopped.
type allocatedDisplay struct {
	*display.Server
	pool *display.Allocator
}

func (d *allocatedDisplay) Stop() {
	d.Server.Stop()
	d.pool.Release(d.Server.Display)
}

// boundBrowser pairs a controller with the launch spec for its one page.
type boundBrowser struct {
	ctl  *browser.Controller
	spec browser.LaunchSpec
}

func (b *boundBrowser) Open(ctx context.Context) error { return b.ctl.Open(ctx, b.spec) }
func (b *boundBrowser) Close()                         { b.ctl.Close() }
func (b *boundBrowser) Running() bool                  { return b.ctl.Running() }
