// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audio enumerates sound devices and controls hardware volume by
// shelling out to the ALSA userland tools. All invocations are bounded by a
// context timeout; a missing tool degrades to empty results, never a crash.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
)

const commandTimeout = 10 * time.Second

// Device is one selectable audio sink.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Controller is the device/volume service consumed by providers and the API.
type Controller interface {
	Devices(ctx context.Context) []Device
	MixerControls(ctx context.Context, device string) ([]string, error)
	Volume(ctx context.Context, device, control string) (int, error)
	SetVolume(ctx context.Context, device string, volume int, control string) error
	PlayTestTone(ctx context.Context, device string) error
}

var (
	// "card 0: NVidia [HDA NVidia], device 3: HDMI 0 [HDMI 0]"
	aplayCardPattern = regexp.MustCompile(`^card (\d+): ([^\[]+)\[([^\]]+)\], device (\d+): ([^\[]+)\[([^\]]+)\]`)

	// "Simple mixer control 'Master',0"
	mixerControlPattern = regexp.MustCompile(`^Simple mixer control '([^']+)'`)

	// "  Mono: Playback 42 [66%] [-10.50dB] [on]"
	volumePattern = regexp.MustCompile(`\[(\d+)%\]`)
)

var ErrNoVolumeInfo = errors.New("no volume information in amixer output")

// ALSA is the production Controller backed by aplay/amixer/speaker-test.
type ALSA struct{}

// NewALSA creates an ALSA-backed controller.
func NewALSA() *ALSA {
	return &ALSA{}
}

// Devices lists the hardware playback devices plus the ALSA pseudo sinks.
// Errors degrade to the pseudo sinks only (containers without sound cards).
func (a *ALSA) Devices(ctx context.Context) []Device {
	devices := []Device{
		{ID: "default", Name: "Default audio device"},
		{ID: "null", Name: "Null device (no output)"},
	}

	out, err := runCommand(ctx, "aplay", "-l")
	if err != nil {
		logger := log.WithComponent("audio")
		logger.Warn().Err(err).Msg("aplay -l failed, only pseudo devices available")
		return devices
	}
	return append(devices, parseAplayDevices(out)...)
}

// parseAplayDevices extracts hw:card,device entries from `aplay -l` output.
func parseAplayDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		m := aplayCardPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		card, dev := m[1], m[4]
		cardName := strings.TrimSpace(m[3])
		devName := strings.TrimSpace(m[6])
		devices = append(devices, Device{
			ID:   fmt.Sprintf("hw:%s,%s", card, dev),
			Name: fmt.Sprintf("%s - %s", cardName, devName),
		})
	}
	return devices
}

// MixerControls lists simple mixer controls for a device.
func (a *ALSA) MixerControls(ctx context.Context, device string) ([]string, error) {
	out, err := runCommand(ctx, "amixer", "-D", mixerDevice(device), "scontrols")
	if err != nil {
		return nil, fmt.Errorf("list mixer controls for %s: %w", device, err)
	}
	return parseMixerControls(out), nil
}

func parseMixerControls(out string) []string {
	var controls []string
	for _, line := range strings.Split(out, "\n") {
		if m := mixerControlPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			controls = append(controls, m[1])
		}
	}
	return controls
}

// Volume reads the current volume percentage for a device control.
func (a *ALSA) Volume(ctx context.Context, device, control string) (int, error) {
	if control == "" {
		control = "Master"
	}
	out, err := runCommand(ctx, "amixer", "-D", mixerDevice(device), "sget", control)
	if err != nil {
		return 0, fmt.Errorf("get volume for %s/%s: %w", device, control, err)
	}
	return parseVolume(out)
}

func parseVolume(out string) (int, error) {
	m := volumePattern.FindStringSubmatch(out)
	if m == nil {
		return 0, ErrNoVolumeInfo
	}
	return strconv.Atoi(m[1])
}

// SetVolume sets the volume percentage for a device control.
func (a *ALSA) SetVolume(ctx context.Context, device string, volume int, control string) error {
	if control == "" {
		control = "Master"
	}
	_, err := runCommand(ctx, "amixer", "-D", mixerDevice(device), "sset", control, fmt.Sprintf("%d%%", volume))
	if err != nil {
		return fmt.Errorf("set volume for %s/%s: %w", device, control, err)
	}
	logger := log.WithComponent("audio")
	logger.Debug().
		Str(log.FieldDevice, device).
		Str(log.FieldControl, control).
		Int(log.FieldVolume, volume).
		Msg("hardware volume set")
	return nil
}

// PlayTestTone plays a short sine tone on the device so users can identify it.
func (a *ALSA) PlayTestTone(ctx context.Context, device string) error {
	_, err := runCommand(ctx, "speaker-test", "-D", device, "-t", "sine", "-f", "440", "-l", "1", "-p", "1")
	if err != nil {
		return fmt.Errorf("play test tone on %s: %w", device, err)
	}
	return nil
}

// mixerDevice maps a playback device to its mixer device: amixer addresses
// the card, not the card+device pair ("hw:0,3" -> "hw:0").
func mixerDevice(device string) string {
	if strings.HasPrefix(device, "hw:") {
		if idx := strings.Index(device, ","); idx > 0 {
			return device[:idx]
		}
	}
	return device
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- fixed tool names, validated args
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
