// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package process owns the mapping from player name to a live OS process
// group. It starts, stops and health-checks player backend processes; it
// never touches persisted configuration.
package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/procgroup"
)

// Timing defaults; overridable via Options for tests and tuning.
const (
	DefaultStartupGrace = 500 * time.Millisecond
	DefaultStopTimeout  = 5 * time.Second
	DefaultKillTimeout  = 2 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrNotFound       = errors.New("process not found")
	ErrWasNotRunning  = errors.New("process was not running")
	ErrBinaryNotFound = errors.New("binary not found")
	ErrEmptyCommand   = errors.New("empty command")
)

var (
	startTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_process_start_total",
		Help: "Total player process start attempts",
	}, []string{"result"})

	stopTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_process_stop_total",
		Help: "Total player process stop attempts",
	}, []string{"result"})

	reapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msp_process_reaped_total",
		Help: "Total dead player processes reaped by the cleanup sweep",
	})

	runningGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msp_processes_running",
		Help: "Number of tracked player processes",
	})
)

// StartResult reports a successful start.
type StartResult struct {
	PID          int
	UsedFallback bool
}

// StopResult reports a successful stop.
type StopResult struct {
	Forced bool
}

// Options tunes the supervisor's timing budget.
type Options struct {
	StartupGrace time.Duration
	StopTimeout  time.Duration
	KillTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.StartupGrace <= 0 {
		o.StartupGrace = DefaultStartupGrace
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = DefaultKillTimeout
	}
	return o
}

// managed is the runtime shadow of a player while it is running.
type managed struct {
	name    string
	cmd     *exec.Cmd
	logPath string

	usedFallback bool
	starting     bool

	// exited closes when cmd.Wait returns; waitCh carries the result once.
	exited  chan struct{}
	waitCh  chan error
	waitErr error
}

// alive reports liveness as of the latest wait state. A reservation entry
// (start still inside its grace window) counts as alive so concurrent starts
// of the same name cannot both win.
func (m *managed) alive() bool {
	if m.starting {
		return true
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

// Supervisor tracks at most one live process per player name.
type Supervisor struct {
	logDir string
	opts   Options

	mu    sync.Mutex
	procs map[string]*managed
}

// New creates a supervisor and ensures the log directory exists.
func New(logDir string, opts Options) (*Supervisor, error) {
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Supervisor{
		logDir: logDir,
		opts:   opts.withDefaults(),
		procs:  make(map[string]*managed),
	}, nil
}

// LogPath returns the deterministic per-player log file path.
func (s *Supervisor) LogPath(name string) string {
	return filepath.Join(s.logDir, name+".log")
}

// Start spawns command in a new process group and watches it for the startup
// grace period. If it exits within the grace window and fallbackCommand is
// non-empty, the fallback is tried with the same protocol. The result reports
// whether the eventual success used the fallback.
func (s *Supervisor) Start(name string, command, fallbackCommand []string) (StartResult, error) {
	if len(command) == 0 {
		return StartResult{}, ErrEmptyCommand
	}

	s.mu.Lock()
	if existing, ok := s.procs[name]; ok {
		if existing.alive() {
			s.mu.Unlock()
			return StartResult{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
		}
		// Stale entry from a crash that no sweep has reaped yet.
		delete(s.procs, name)
	}
	reservation := &managed{name: name, starting: true}
	s.procs[name] = reservation
	runningGauge.Set(float64(len(s.procs)))
	s.mu.Unlock()

	logger := log.WithComponent("supervisor")
	logger.Info().
		Str(log.FieldPlayer, name).
		Str(log.FieldCommand, strings.Join(command, " ")).
		Msg("starting player process")

	m, err := s.launch(name, command, false)
	if err != nil && len(fallbackCommand) > 0 {
		logger.Warn().
			Str(log.FieldPlayer, name).
			Err(err).
			Str(log.FieldCommand, strings.Join(fallbackCommand, " ")).
			Msg("primary command failed, trying fallback")
		m, err = s.launch(name, fallbackCommand, true)
	}

	s.mu.Lock()
	if err != nil {
		if s.procs[name] == reservation {
			delete(s.procs, name)
		}
		runningGauge.Set(float64(len(s.procs)))
		s.mu.Unlock()
		startTotal.WithLabelValues("error").Inc()
		return StartResult{}, err
	}
	s.procs[name] = m
	runningGauge.Set(float64(len(s.procs)))
	s.mu.Unlock()

	result := "ok"
	if m.usedFallback {
		result = "fallback"
	}
	startTotal.WithLabelValues(result).Inc()

	logger.Info().
		Str(log.FieldPlayer, name).
		Int(log.FieldPID, m.cmd.Process.Pid).
		Bool("fallback", m.usedFallback).
		Msg("player process started")

	return StartResult{PID: m.cmd.Process.Pid, UsedFallback: m.usedFallback}, nil
}

// launch runs one spawn-and-grace cycle. It returns the managed process only
// after the process has survived the startup grace period.
func (s *Supervisor) launch(name string, argv []string, fallback bool) (*managed, error) {
	logPath := s.LogPath(name)
	// The spawned process owns the file from here; append so restarts keep history.
	// #nosec G302 G304 -- per-player log file under the supervisor's log dir
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv built by a registered provider
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrBinaryNotFound, argv[0])
		}
		return nil, fmt.Errorf("start process: %w", err)
	}

	m := &managed{
		name:         name,
		cmd:          cmd,
		logPath:      logPath,
		usedFallback: fallback,
		exited:       make(chan struct{}),
		waitCh:       make(chan error, 1),
	}
	go func() {
		err := cmd.Wait()
		m.waitErr = err
		_ = logFile.Close()
		close(m.exited)
		m.waitCh <- err
	}()

	select {
	case <-m.exited:
		detail := tailLines(logPath, 4)
		if detail == "" && m.waitErr != nil {
			detail = m.waitErr.Error()
		}
		return nil, fmt.Errorf("process exited immediately: %s", detail)
	case <-time.After(s.opts.StartupGrace):
	}

	return m, nil
}

// Stop terminates the named process group, escalating SIGTERM to SIGKILL
// within the configured budget. The tracking entry is removed in every path
// that reaches the process, including a kill-wait timeout (best effort).
func (s *Supervisor) Stop(name string) (StopResult, error) {
	s.mu.Lock()
	m, ok := s.procs[name]
	if !ok {
		s.mu.Unlock()
		stopTotal.WithLabelValues("not_found").Inc()
		return StopResult{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if m.starting && m.cmd == nil {
		s.mu.Unlock()
		stopTotal.WithLabelValues("starting").Inc()
		return StopResult{}, fmt.Errorf("process %q is still starting", name)
	}
	if !m.alive() {
		delete(s.procs, name)
		runningGauge.Set(float64(len(s.procs)))
		s.mu.Unlock()
		stopTotal.WithLabelValues("not_running").Inc()
		return StopResult{}, fmt.Errorf("%w: %s", ErrWasNotRunning, name)
	}
	s.mu.Unlock()

	// Bounded waits happen outside the lock so unrelated players proceed.
	forced, waitErr := procgroup.Terminate(m.cmd, m.waitCh, s.opts.StopTimeout, s.opts.KillTimeout)

	s.mu.Lock()
	if s.procs[name] == m {
		delete(s.procs, name)
	}
	runningGauge.Set(float64(len(s.procs)))
	s.mu.Unlock()

	logger := log.WithComponent("supervisor")
	switch {
	case errors.Is(waitErr, procgroup.ErrKillTimeout):
		logger.Error().Str(log.FieldPlayer, name).Msg("process survived SIGKILL wait, dropping from tracking")
		stopTotal.WithLabelValues("kill_timeout").Inc()
	case forced:
		logger.Warn().Str(log.FieldPlayer, name).Msg("process force stopped")
		stopTotal.WithLabelValues("forced").Inc()
	default:
		logger.Info().Str(log.FieldPlayer, name).Msg("process stopped")
		stopTotal.WithLabelValues("graceful").Inc()
	}

	return StopResult{Forced: forced}, nil
}

// IsRunning is a live probe: it reflects the latest process-exit state,
// including processes that died asynchronously since the last call.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.procs[name]
	return ok && m.alive()
}

// Statuses reports the running state for every requested name. Names with no
// process history report false rather than being omitted.
func (s *Supervisor) Statuses(names []string) map[string]bool {
	statuses := make(map[string]bool, len(names))
	for _, name := range names {
		statuses[name] = s.IsRunning(name)
	}
	return statuses
}

// CleanupDead reaps entries whose process exited without an explicit Stop
// (crashes). It returns the reaped names so callers can reconcile state.
func (s *Supervisor) CleanupDead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for name, m := range s.procs {
		if !m.starting && !m.alive() {
			delete(s.procs, name)
			reaped = append(reaped, name)
		}
	}
	if len(reaped) > 0 {
		runningGauge.Set(float64(len(s.procs)))
		reapedTotal.Add(float64(len(reaped)))
		logger := log.WithComponent("supervisor")
		logger.Info().
			Strs("players", reaped).
			Msg("reaped dead player processes")
	}
	return reaped
}

// StopAll stops every tracked process and returns how many stopped. Failures
// are independent; one stuck process does not abort the rest.
func (s *Supervisor) StopAll() int {
	s.mu.Lock()
	names := make([]string, 0, len(s.procs))
	for name := range s.procs {
		names = append(names, name)
	}
	s.mu.Unlock()

	stopped := 0
	for _, name := range names {
		if _, err := s.Stop(name); err == nil {
			stopped++
		}
	}
	return stopped
}

// tailLines returns the last n non-empty lines of a file, joined by "; ".
// Used to surface why a process died within its startup grace window.
func tailLines(path string, n int) string {
	data, err := os.ReadFile(path) // #nosec G304 -- supervisor-owned log path
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var tail []string
	for i := len(lines) - 1; i >= 0 && len(tail) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			tail = append([]string{line}, tail...)
		}
	}
	return strings.Join(tail, "; ")
}
