// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

const squeezeliteBinary = "squeezelite"

// extraMixerControl selects the ALSA simple control used for hardware volume.
// Defaults to Master when absent.
const extraMixerControl = "mixer_control"

// Squeezelite runs the squeezelite LMS client. Volume is hardware volume via
// the ALSA mixer of the configured device.
type Squeezelite struct {
	audio audio.Controller
}

func NewSqueezelite(ctrl audio.Controller) *Squeezelite {
	return &Squeezelite{audio: ctrl}
}

func (s *Squeezelite) Type() string        { return "squeezelite" }
func (s *Squeezelite) DisplayName() string { return "Squeezelite (Lyrion/LMS)" }
func (s *Squeezelite) Available() bool     { return binaryAvailable(squeezeliteBinary) }

// Validate only needs a device; the server address is optional because
// squeezelite discovers the LMS server by broadcast when none is given.
func (s *Squeezelite) Validate(cfg *player.Config) error {
	if cfg.Device == "" {
		return fmt.Errorf("squeezelite player %q: device is required", cfg.Name)
	}
	return nil
}

// Prepare derives a stable MAC when none was supplied. The MAC is the
// player's identity on the LMS server.
func (s *Squeezelite) Prepare(cfg *player.Config) {
	if cfg.MACAddress == "" {
		cfg.MACAddress = DeriveMAC(cfg.Name)
	}
}

func (s *Squeezelite) Command(cfg *player.Config, _ string) []string {
	argv := []string{
		squeezeliteBinary,
		"-n", cfg.Name,
		"-o", cfg.Device,
		"-m", cfg.MACAddress,
	}
	if cfg.ServerIP != "" {
		argv = append(argv, "-s", cfg.ServerIP)
	}
	return argv
}

func (s *Squeezelite) SupportsFallback() bool { return true }

// FallbackCommand retries on the ALSA default device when the declared one
// is unavailable (unplugged DAC, busy card).
func (s *Squeezelite) FallbackCommand(cfg *player.Config, logPath string) []string {
	degraded := cfg.Clone()
	degraded.Device = "default"
	return s.Command(&degraded, logPath)
}

func (s *Squeezelite) Volume(ctx context.Context, cfg *player.Config) (int, error) {
	return s.audio.Volume(ctx, cfg.Device, mixerControl(cfg))
}

func (s *Squeezelite) SetVolume(ctx context.Context, cfg *player.Config, volume int) error {
	return s.audio.SetVolume(ctx, cfg.Device, volume, mixerControl(cfg))
}

func mixerControl(cfg *player.Config) string {
	if v, ok := cfg.Extra[extraMixerControl].(string); ok && v != "" {
		return v
	}
	return "Master"
}
