// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package audio

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
)

// PortAudioDevice is one device reported by the sendspin binary. Sendspin
// selects output by PortAudio index rather than ALSA name, so both forms are
// kept.
type PortAudioDevice struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// "[3] HDA Intel PCH: ALC892 Analog (hw:0,0)"
var portAudioLinePattern = regexp.MustCompile(`^\[(\d+)\]\s*(.+)$`)

// PortAudioDevices asks the sendspin binary for its device list. A missing or
// failing binary yields an empty list so ALSA-only deployments keep working.
func PortAudioDevices(ctx context.Context) []PortAudioDevice {
	out, err := runCommand(ctx, "sendspin", "--list-audio-devices")
	if err != nil {
		logger := log.WithComponent("audio")
		logger.Warn().Err(err).Msg("sendspin device listing failed")
		return nil
	}
	return parsePortAudioDevices(out)
}

func parsePortAudioDevices(out string) []PortAudioDevice {
	var devices []PortAudioDevice
	for _, line := range strings.Split(out, "\n") {
		m := portAudioLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		devices = append(devices, PortAudioDevice{Index: idx, Name: strings.TrimSpace(m[2])})
	}
	return devices
}
