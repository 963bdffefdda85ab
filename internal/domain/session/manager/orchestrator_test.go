// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/pagecast/internal/domain/session/model"
	"github.com/ManuGH/pagecast/internal/domain/session/store"
	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/sender"
)

func newRig(t *testing.T) *stubRig {
	t.Helper()
	reg, err := store.NewRegistry(t.TempDir())
	require.NoError(t, err)

	cl := &callLog{}
	rig := &stubRig{
		log:     cl,
		display: &stubDisplay{log: cl},
		browser: &stubBrowser{log: cl},
		encoder: &stubEncoder{log: cl, writePlaylist: true},
		sender:  &stubSender{log: cl, playOK: true},
	}
	factory := func(sess *model.Session, _ StartRequest) (Collaborators, error) {
		rig.encoder.dir = sess.Dir
		return Collaborators{
			Display: rig.display,
			Browser: rig.browser,
			Encoder: rig.encoder,
		}, nil
	}

	m := New(reg, rig.sender, factory, "http://192.168.1.10:8080")
	m.WarmupTick = 5 * time.Millisecond
	m.WarmupDeadline = 300 * time.Millisecond
	m.WatchdogTick = 5 * time.Millisecond
	m.StopJoin = 2 * time.Second
	rig.mgr = m
	return rig
}

func waitState(t *testing.T, sess *model.Session, want model.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.State() == want
	}, 2*time.Second, 5*time.Millisecond, "session never reached %s (now %s)", want, sess.State())
}

func TestHappyPathReachesPlayingAndCommandsReceiver(t *testing.T) {
	rig := newRig(t)
	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)

	waitState(t, sess, model.StatePlaying)

	urls := rig.sender.playedURLs()
	require.Len(t, urls, 1)
	assert.Equal(t, "http://192.168.1.10:8080/cast/"+sess.ID+"/"+hls.MasterPlaylistName, urls[0])
	assert.NotZero(t, sess.LastOKAt())

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
	assert.Equal(t, model.StateStopped, sess.State())

	_, err = rig.mgr.Get(sess.ID)
	assert.True(t, IsNotFound(err))
}

func TestTeardownOrderIsReverseBringUp(t *testing.T) {
	rig := newRig(t)
	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)
	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))

	// Stop issues one eager receiver stop before teardown runs, so the
	// teardown-owned sender.stop is the last occurrence.
	l := rig.log
	require.Greater(t, l.indexOf("encoder.stop"), l.indexOf("encoder.start"))
	assert.Less(t, l.indexOf("encoder.stop"), l.indexOf("browser.close"))
	assert.Less(t, l.indexOf("browser.close"), l.indexOf("display.stop"))
	assert.Less(t, l.indexOf("display.stop"), l.lastIndexOf("sender.stop"))
}

func TestWarmupTimeoutFailsSession(t *testing.T) {
	rig := newRig(t)
	rig.encoder.writePlaylist = false // never any playable output

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)

	waitState(t, sess, model.StateError)
	assert.Contains(t, sess.Detail(), "no playable output")

	// resources are released even after a failed warmup
	assert.False(t, rig.display.Running())
	assert.False(t, rig.browser.Running())
	assert.False(t, rig.encoder.Running())
	assert.Empty(t, rig.sender.playedURLs())
}

func TestBringUpFailureOnBrowser(t *testing.T) {
	rig := newRig(t)
	rig.browser.openErr = errors.New("no usable sandbox")

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)

	waitState(t, sess, model.StateError)
	assert.Contains(t, sess.Detail(), "browser start failed")

	// encoder was never started, but teardown still sweeps everything
	assert.Equal(t, -1, rig.log.indexOf("encoder.start"))
	assert.False(t, rig.display.Running())
}

func TestStaleOutputFailsPlayingSession(t *testing.T) {
	rig := newRig(t)
	flip := make(chan struct{})
	rig.encoder.freshFn = func() hls.Report {
		select {
		case <-flip:
			return staleReport()
		default:
			return freshReport()
		}
	}

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	close(flip)
	waitState(t, sess, model.StateError)
	assert.Contains(t, sess.Detail(), "stalled")
}

func TestUnknownAgeIsToleratedWhilePlaying(t *testing.T) {
	rig := newRig(t)
	flip := make(chan struct{})
	rig.encoder.freshFn = func() hls.Report {
		select {
		case <-flip:
			// nothing measurable, e.g. mid segment rotation
			return hls.Report{Stale: true}
		default:
			return freshReport()
		}
	}

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	close(flip)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, model.StatePlaying, sess.State(), "unknown output age must not fail a playing session")

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
}

func TestEncoderExitFailsPlayingSession(t *testing.T) {
	rig := newRig(t)
	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	rig.encoder.kill()
	waitState(t, sess, model.StateError)
	assert.Contains(t, sess.Detail(), "encoder exited")
}

func TestStopDuringWarmup(t *testing.T) {
	rig := newRig(t)
	rig.encoder.writePlaylist = false // hold the session in warmup

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
	assert.Equal(t, model.StateStopped, sess.State())
	assert.Empty(t, rig.sender.playedURLs(), "a session stopped before warmup must not command the receiver")
}

func TestReceiverBindingExclusivity(t *testing.T) {
	rig := newRig(t)
	first, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, first, model.StatePlaying)

	owner, held := rig.mgr.Bindings.Owner("living-room")
	require.True(t, held)
	assert.Equal(t, first.ID, owner)

	// A second session for the same receiver name starts, but must neither
	// command the receiver nor take over the binding.
	second, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, second, model.StatePlaying)

	assert.Len(t, rig.sender.playedURLs(), 1, "only the binding owner commands the receiver")
	owner, held = rig.mgr.Bindings.Owner("living-room")
	require.True(t, held)
	assert.Equal(t, first.ID, owner)

	// stopping the owner frees the receiver name
	require.NoError(t, rig.mgr.Stop(context.Background(), first.ID))
	_, held = rig.mgr.Bindings.Owner("living-room")
	assert.False(t, held)

	require.NoError(t, rig.mgr.Stop(context.Background(), second.ID))
}

func TestPlayRefusalLeavesSessionUnbound(t *testing.T) {
	rig := newRig(t)
	rig.sender.playOK = false

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	_, held := rig.mgr.Bindings.Owner("living-room")
	assert.False(t, held, "a refused play must not claim the binding")

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
	assert.Equal(t, -1, rig.log.indexOf("sender.stop"),
		"an unbound session must never command the receiver to stop")
}

func TestConcurrentListSeesFullyPopulatedSessions(t *testing.T) {
	rig := newRig(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			sess, err := rig.mgr.Start(validRequest())
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
		}
	}()

	for {
		for _, s := range rig.mgr.List() {
			assert.NotEmpty(t, s.URL, "listed session missing url")
			assert.NotEmpty(t, s.ReceiverName, "listed session missing receiver name")
		}
		select {
		case <-done:
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestStopUnknownSession(t *testing.T) {
	rig := newRig(t)
	err := rig.mgr.Stop(context.Background(), "cafebabe")
	assert.True(t, IsNotFound(err))
}

func TestDoubleStopIsIdempotent(t *testing.T) {
	rig := newRig(t)
	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
	err = rig.mgr.Stop(context.Background(), sess.ID)
	assert.True(t, IsNotFound(err), "second stop sees the record already gone")
}

func TestStartValidation(t *testing.T) {
	rig := newRig(t)

	_, err := rig.mgr.Start(StartRequest{URL: "not-a-url", ReceiverName: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = rig.mgr.Start(StartRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	req := validRequest()
	req.Cookie = "a=b"
	req.CookiesPath = "/tmp/cookies.json"
	_, err = rig.mgr.Start(req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartRequestDefaults(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Normalize())

	assert.Equal(t, 1920, req.Width)
	assert.Equal(t, 1080, req.Height)
	assert.Equal(t, 15, req.FPS)
	assert.Equal(t, "3500k", req.VideoBitrate)
	assert.Equal(t, sender.DefaultPort, req.ReceiverPort)
	assert.Equal(t, "networkidle", req.WaitUntil)
	require.NotNil(t, req.HideUI)
	assert.True(t, *req.HideUI)
}

func TestStatusReportsHLSURLOnlyAfterPlaylist(t *testing.T) {
	rig := newRig(t)
	rig.encoder.writePlaylist = false

	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)

	st, err := rig.mgr.Status(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, st.HLSURL)
	assert.Equal(t, model.StateStarting, st.State)

	require.NoError(t, rig.mgr.Stop(context.Background(), sess.ID))
}

func TestShutdownDrainsAllSessions(t *testing.T) {
	rig := newRig(t)
	sess, err := rig.mgr.Start(validRequest())
	require.NoError(t, err)
	waitState(t, sess, model.StatePlaying)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, rig.mgr.Shutdown(ctx))
	assert.Equal(t, model.StateStopped, sess.State())

	// a manager that finished shutdown refuses new sessions
	_, err = rig.mgr.Start(StartRequest{
		URL:          "https://example.com/other",
		ReceiverName: "kitchen",
	})
	assert.Error(t, err)
}
