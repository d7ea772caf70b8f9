// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyListenAddr = errors.New("listen address must not be empty")
	ErrBadTimeout      = errors.New("timeout must be positive")
)

// Validate checks the resolved configuration for values the daemon cannot run with.
func (c AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrEmptyListenAddr
	}
	if c.StartupGrace <= 0 {
		return fmt.Errorf("startup grace: %w", ErrBadTimeout)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout: %w", ErrBadTimeout)
	}
	if c.KillTimeout <= 0 {
		return fmt.Errorf("kill timeout: %w", ErrBadTimeout)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval: %w", ErrBadTimeout)
	}
	if c.RateLimitRPS <= 0 {
		return errors.New("rate limit rps must be positive")
	}
	if c.ConfigDir == "" {
		return errors.New("config directory must not be empty")
	}
	if c.LogDir == "" {
		return errors.New("log directory must not be empty")
	}
	return nil
}
