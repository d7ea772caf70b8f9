// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player holds the player configuration model and the orchestrator
// that coordinates providers, process supervision and persistence.
package player

import (
	"errors"
	"fmt"
	"regexp"
)

// Limits for user-supplied fields. Player names become process keys and log
// file names, so the character set is restricted accordingly.
const (
	MaxNameLength = 50
	MinVolume     = 0
	MaxVolume     = 100
	MinDelayMS    = -1000
	MaxDelayMS    = 1000

	DefaultVolume = 75
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._-]*$`)

var (
	ErrEmptyName   = errors.New("player name is required")
	ErrNameTooLong = fmt.Errorf("player name must be at most %d characters", MaxNameLength)
	ErrInvalidName = errors.New("player name contains invalid characters")
	ErrVolumeRange = errors.New("volume must be between 0 and 100")
	ErrDelayRange  = errors.New("delay_ms must be between -1000 and 1000")
	ErrNotFound    = errors.New("player not found")
	ErrNotRunning  = errors.New("player is not running")
	ErrDuplicate   = errors.New("player with this name already exists")
)

// Config is one player record, persisted per room.
//
// Extra carries provider-specific fields that the core does not interpret;
// it is inlined into the YAML document so hand-edited keys survive round trips.
type Config struct {
	Name       string `yaml:"name" json:"name"`
	Device     string `yaml:"device" json:"device"`
	Provider   string `yaml:"provider" json:"provider"`
	ServerIP   string `yaml:"server_ip,omitempty" json:"server_ip,omitempty"`
	ServerURL  string `yaml:"server_url,omitempty" json:"server_url,omitempty"`
	MACAddress string `yaml:"mac_address,omitempty" json:"mac_address,omitempty"`
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Volume     int    `yaml:"volume" json:"volume"`
	DelayMS    int    `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// ValidateName checks the restricted character set and bounded length.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// ValidateVolume checks the 0..100 percent range.
func ValidateVolume(volume int) error {
	if volume < MinVolume || volume > MaxVolume {
		return ErrVolumeRange
	}
	return nil
}

// ValidateDelay checks the sync offset range.
func ValidateDelay(delayMS int) error {
	if delayMS < MinDelayMS || delayMS > MaxDelayMS {
		return ErrDelayRange
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (c Config) Clone() Config {
	out := c
	if c.Extra != nil {
		out.Extra = make(map[string]any, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
