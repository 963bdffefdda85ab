// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/pagecast/internal/log"
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// signalGroup sends sig to the whole process group of cmd.
// A vanished process or group counts as success.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	// Negative PGID targets the whole group.
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

func terminate(cmd *exec.Cmd, done <-chan struct{}, grace, killWait time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return nil // already exited
	default:
	}

	logger := log.WithComponent("procgroup")
	pid := cmd.Process.Pid

	logger.Debug().Int(log.FieldPID, pid).Msg("sending SIGTERM to process group")
	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		logger.Warn().Err(err).Int(log.FieldPID, pid).Msg("group SIGTERM failed, signalling leader only")
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}

	logger.Warn().Int(log.FieldPID, pid).Msg("grace period exceeded, sending SIGKILL to process group")
	if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}

	select {
	case <-done:
		return nil
	case <-time.After(killWait):
		return ErrKillFailed
	}
}
