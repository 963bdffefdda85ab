// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !unix

package procgroup

import (
	"os/exec"
	"time"
)

func set(_ *exec.Cmd) {}

func terminate(cmd *exec.Cmd, done <-chan struct{}, _, killWait time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}
	_ = cmd.Process.Kill()
	select {
	case <-done:
		return nil
	case <-time.After(killWait):
		return ErrKillFailed
	}
}
