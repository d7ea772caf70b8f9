// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

const snapcastBinary = "snapclient"

// Snapcast runs the snapclient multiroom client. The snapserver owns volume
// and sync; the stored percentage is authoritative on our side.
type Snapcast struct{}

func NewSnapcast() *Snapcast {
	return &Snapcast{}
}

func (s *Snapcast) Type() string        { return "snapcast" }
func (s *Snapcast) DisplayName() string { return "Snapcast" }
func (s *Snapcast) Available() bool     { return binaryAvailable(snapcastBinary) }

func (s *Snapcast) Validate(cfg *player.Config) error {
	if cfg.ServerIP == "" {
		return fmt.Errorf("snapcast player %q: server_ip is required", cfg.Name)
	}
	return nil
}

// Prepare derives a MAC so the snapserver sees a stable client identity even
// when several players share one host.
func (s *Snapcast) Prepare(cfg *player.Config) {
	if cfg.MACAddress == "" {
		cfg.MACAddress = DeriveMAC(cfg.Name)
	}
}

func (s *Snapcast) Command(cfg *player.Config, _ string) []string {
	argv := []string{
		snapcastBinary,
		"-h", cfg.ServerIP,
		"--hostID", cfg.Name,
	}
	if cfg.Device != "" {
		argv = append(argv, "-s", cfg.Device)
	}
	return argv
}

func (s *Snapcast) SupportsFallback() bool { return true }

// FallbackCommand drops the explicit soundcard selection and lets snapclient
// pick its default output.
func (s *Snapcast) FallbackCommand(cfg *player.Config, logPath string) []string {
	degraded := cfg.Clone()
	degraded.Device = ""
	return s.Command(&degraded, logPath)
}

func (s *Snapcast) Volume(_ context.Context, cfg *player.Config) (int, error) {
	return cfg.Volume, nil
}

func (s *Snapcast) SetVolume(context.Context, *player.Config, int) error {
	return nil
}
