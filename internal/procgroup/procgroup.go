// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup abstracts process-group signaling so the supervisor's
// stop contract holds on platforms without POSIX process groups. Player
// backends fork helper children (decoders, network threads); signaling the
// group terminates the tree as a unit so no helper keeps the audio device open.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrKillTimeout = errors.New("process did not exit after SIGKILL within timeout")

var (
	signalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_proc_signal_total",
		Help: "Total signals sent to player process groups",
	}, []string{"signal", "result"})

	waitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_proc_wait_total",
		Help: "Total process wait outcomes during termination",
	}, []string{"outcome"})
)

func countSignal(name string, err error) {
	if err == nil {
		signalTotal.WithLabelValues(name, "sent").Inc()
	} else {
		signalTotal.WithLabelValues(name, "error").Inc()
	}
}

// Terminate gracefully stops a process group: SIGTERM, wait up to grace,
// escalate to SIGKILL, wait up to killTimeout. It reports whether the kill
// escalation was needed. The final wait is bounded; a process that survives
// SIGKILL (unreapable zombie) yields ErrKillTimeout rather than blocking.
//
// waitCh must deliver the result of cmd.Wait exactly once. The process MUST
// have been spawned with procgroup.Set(cmd).
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace, killTimeout time.Duration) (forced bool, err error) {
	if cmd == nil || cmd.Process == nil {
		return false, nil
	}

	termErr := Kill(cmd, syscall.SIGTERM)
	countSignal("SIGTERM", termErr)

	select {
	case err := <-waitCh:
		if err == nil {
			waitTotal.WithLabelValues("exit0").Inc()
		} else {
			waitTotal.WithLabelValues("exit_nonzero").Inc()
		}
		return false, err
	case <-time.After(grace):
	}

	killErr := Kill(cmd, syscall.SIGKILL)
	countSignal("SIGKILL", killErr)

	select {
	case err := <-waitCh:
		if err == nil {
			waitTotal.WithLabelValues("forced_exit0").Inc()
		} else {
			waitTotal.WithLabelValues("forced_error").Inc()
		}
		return true, err
	case <-time.After(killTimeout):
		waitTotal.WithLabelValues("kill_timeout").Inc()
		return true, ErrKillTimeout
	}
}
