// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package browser drives a Chromium instance rendered into a virtual display.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/ManuGH/pagecast/internal/log"
)

var (
	// ErrCookieSourceConflict is returned when both an inline cookie header and
	// a cookies file are requested for the same launch.
	ErrCookieSourceConflict = errors.New("cookie and cookies_path are mutually exclusive")
	// ErrLaunch wraps failures to spawn or attach to the browser.
	ErrLaunch = errors.New("browser launch failed")
)

const defaultNavTimeout = 30 * time.Second

// keepAwakeJS is injected before any page script runs. Pages throttle timers
// and media when they believe they are hidden; a captured page has no human
// viewer, so it must always believe it is visible.
const keepAwakeJS = `
Object.defineProperty(document, 'hidden', {get: () => false});
Object.defineProperty(document, 'visibilityState', {get: () => 'visible'});
window.addEventListener('visibilitychange', e => e.stopImmediatePropagation(), true);
`

// LaunchSpec describes one page session.
type LaunchSpec struct {
	URL          string
	Width        int
	Height       int
	Cookie       string            // raw Cookie header, sent with every request
	CookiesPath  string            // JSON cookie file, exclusive with Cookie
	ExtraHeaders map[string]string // additional headers sent with every request
	UserDataDir  string
	HideUI       bool          // fullscreen the window so no chrome is captured
	WaitUntil    string        // load | domcontentloaded | networkidle
	NavTimeout   time.Duration // bound on reaching the wait condition, default 30s
}

func (s LaunchSpec) navTimeout() time.Duration {
	if s.NavTimeout > 0 {
		return s.NavTimeout
	}
	return defaultNavTimeout
}

// headerPairs flattens the extra headers plus the inline cookie into the
// alternating key/value form the devtools protocol takes, ordered
// deterministically.
func (s LaunchSpec) headerPairs() []string {
	keys := make([]string, 0, len(s.ExtraHeaders))
	for k := range s.ExtraHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys)+2)
	for _, k := range keys {
		pairs = append(pairs, k, s.ExtraHeaders[k])
	}
	if s.Cookie != "" {
		pairs = append(pairs, "Cookie", s.Cookie)
	}
	return pairs
}

// Validate rejects specs that must never reach a spawn attempt.
func (s LaunchSpec) Validate() error {
	if s.Cookie != "" && s.CookiesPath != "" {
		return ErrCookieSourceConflict
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be absolute http(s): %q", s.URL)
	}
	return nil
}

// Controller owns one headed Chromium bound to a display. Headed, not
// headless: the compositor must paint into the framebuffer for x11grab to see
// anything.
type Controller struct {
	Display string
	BinPath string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewController creates a browser controller for the given display.
func NewController(displayID, binPath string) *Controller {
	return &Controller{Display: displayID, BinPath: binPath}
}

// Open validates the spec, launches Chromium on the controller's display and
// navigates to the target URL, blocking until the configured lifecycle event.
func (c *Controller) Open(ctx context.Context, spec LaunchSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := log.WithComponent("browser")

	l := launcher.New().
		Headless(false).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("window-size", fmt.Sprintf("%d,%d", spec.Width, spec.Height)).
		Set("window-position", "0,0").
		Env(append(launcherEnv(), "DISPLAY="+c.Display)...)
	if spec.HideUI {
		l = l.Set("kiosk")
	}
	if c.BinPath != "" {
		l = l.Bin(c.BinPath)
	}
	if spec.UserDataDir != "" {
		l = l.UserDataDir(spec.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	if err := c.openPage(browser, spec, logger); err != nil {
		_ = browser.Close()
		l.Kill()
		return err
	}

	c.launcher = l
	c.browser = browser
	logger.Info().
		Str(log.FieldDisplay, c.Display).
		Str(log.FieldURL, spec.URL).
		Msg("browser page open")
	return nil
}

func (c *Controller) openPage(browser *rod.Browser, spec LaunchSpec, logger zerolog.Logger) error {
	if spec.CookiesPath != "" {
		cookies, err := LoadCookies(spec.CookiesPath)
		if err != nil {
			return err
		}
		if err := browser.SetCookies(cookies); err != nil {
			return fmt.Errorf("set cookies: %w", err)
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  spec.Width,
		Height: spec.Height,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if pairs := spec.headerPairs(); len(pairs) > 0 {
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	if _, err := page.EvalOnNewDocument(keepAwakeJS); err != nil {
		return fmt.Errorf("inject keep-awake: %w", err)
	}

	navPage := page.Timeout(spec.navTimeout())
	wait := navPage.WaitNavigation(waitEvent(spec.WaitUntil))
	if err := page.Navigate(spec.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	wait()
	if err := navPage.GetContext().Err(); err != nil {
		return fmt.Errorf("%w: page did not reach %s within %s", ErrLaunch,
			waitEvent(spec.WaitUntil), spec.navTimeout())
	}

	if spec.HideUI {
		// Best effort: the page still captures fine in a normal window if the
		// window manager refuses the request.
		if err := page.SetWindow(&proto.BrowserBounds{
			WindowState: proto.BrowserWindowStateFullscreen,
		}); err != nil {
			logger.Warn().Err(err).Str(log.FieldDisplay, c.Display).Msg("fullscreen request refused")
		}
	}

	c.page = page
	return nil
}

// Close tears the session down page-first, tolerating partial failure so a
// crashed renderer never blocks display shutdown. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	page, browser, l := c.page, c.browser, c.launcher
	c.page, c.browser, c.launcher = nil, nil, nil
	c.mu.Unlock()

	logger := log.WithComponent("browser")
	if page != nil {
		if err := page.Close(); err != nil {
			logger.Debug().Err(err).Msg("page close failed")
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			logger.Debug().Err(err).Msg("browser close failed")
		}
	}
	if l != nil {
		l.Kill()
	}
}

// Running reports whether a browser connection is currently held.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser != nil
}

// launcherEnv is the parent environment without any inherited DISPLAY, so the
// session display passed alongside it is the only one the browser sees.
func launcherEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "DISPLAY=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func waitEvent(name string) proto.PageLifecycleEventName {
	switch name {
	case "domcontentloaded":
		return proto.PageLifecycleEventNameDOMContentLoaded
	case "networkidle":
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameLoad
	}
}
