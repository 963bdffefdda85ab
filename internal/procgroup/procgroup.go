// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns child processes in their own process group and
// reaps the entire group on shutdown, so helper processes forked by a child
// (browser renderers, encoder threads) never outlive their session.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

var (
	// ErrKillFailed is returned when a process group survives SIGKILL past the
	// final wait window.
	ErrKillFailed = errors.New("kill operation failed")
)

// Set configures the command to start in a new process group.
// Mandatory for Terminate to function as a group reaper.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate ends the command's process group: soft signal, then a grace
// window observed via done (closed by the caller's Wait goroutine), then a
// hard kill with a final wait window.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace, killWait time.Duration) error {
	return terminate(cmd, done, grace, killWait)
}
