// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

// fakeMixer records volume calls so hardware-volume routing can be asserted
// without ALSA present.
type fakeMixer struct {
	volume      int
	lastDevice  string
	lastControl string
	setCalls    int
}

func (f *fakeMixer) Devices(context.Context) []audio.Device { return nil }

func (f *fakeMixer) MixerControls(context.Context, string) ([]string, error) {
	return []string{"Master"}, nil
}

func (f *fakeMixer) Volume(_ context.Context, device, control string) (int, error) {
	f.lastDevice, f.lastControl = device, control
	return f.volume, nil
}

func (f *fakeMixer) SetVolume(_ context.Context, device string, volume int, control string) error {
	f.lastDevice, f.lastControl = device, control
	f.volume = volume
	f.setCalls++
	return nil
}

func (f *fakeMixer) PlayTestTone(context.Context, string) error { return nil }

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry("squeezelite")
	r.Register(NewSqueezelite(&fakeMixer{}))
	r.Register(NewSendspin())
	r.Register(NewSnapcast())
	return r
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Get("chromecast")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestRegistryForPlayerDefaultsType(t *testing.T) {
	r := newRegistry(t)

	p, err := r.ForPlayer(&player.Config{Name: "kitchen"})
	require.NoError(t, err)
	assert.Equal(t, "squeezelite", p.Type())
}

func TestRegistryForPlayerExplicitUnknownFails(t *testing.T) {
	r := newRegistry(t)

	_, err := r.ForPlayer(&player.Config{Name: "kitchen", Provider: "airplay"})
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestRegistryTypesSorted(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, []string{"sendspin", "snapcast", "squeezelite"}, r.Types())
}

func TestRegistryReplaceOnReRegister(t *testing.T) {
	r := newRegistry(t)
	r.Register(NewSendspin())
	assert.Len(t, r.Types(), 3)
}

func TestDeriveMACStableAndLocal(t *testing.T) {
	mac := DeriveMAC("Kitchen")
	assert.Equal(t, mac, DeriveMAC("Kitchen"), "derivation must be deterministic")
	assert.NotEqual(t, mac, DeriveMAC("Patio"))
	assert.Regexp(t, `^02(:[0-9a-f]{2}){5}$`, mac)
}

func TestSqueezeliteValidate(t *testing.T) {
	s := NewSqueezelite(&fakeMixer{})

	assert.Error(t, s.Validate(&player.Config{Name: "kitchen"}))
	assert.NoError(t, s.Validate(&player.Config{Name: "kitchen", Device: "hw:0,0"}))
}

func TestSqueezelitePrepareIdempotent(t *testing.T) {
	s := NewSqueezelite(&fakeMixer{})
	cfg := player.Config{Name: "kitchen", Device: "hw:0,0"}

	s.Prepare(&cfg)
	require.NotEmpty(t, cfg.MACAddress)
	first := cfg.MACAddress

	s.Prepare(&cfg)
	assert.Equal(t, first, cfg.MACAddress)

	// An operator-supplied MAC is never overwritten.
	manual := player.Config{Name: "patio", Device: "hw:1,0", MACAddress: "aa:bb:cc:dd:ee:ff"}
	s.Prepare(&manual)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", manual.MACAddress)
}

func TestSqueezeliteCommand(t *testing.T) {
	s := NewSqueezelite(&fakeMixer{})
	cfg := player.Config{Name: "kitchen", Device: "hw:0,0", MACAddress: "02:aa:bb:cc:dd:ee", ServerIP: "10.0.0.5"}

	argv := s.Command(&cfg, "/app/logs/kitchen.log")
	assert.Equal(t, []string{
		"squeezelite", "-n", "kitchen", "-o", "hw:0,0", "-m", "02:aa:bb:cc:dd:ee", "-s", "10.0.0.5",
	}, argv)

	cfg.ServerIP = ""
	assert.NotContains(t, s.Command(&cfg, ""), "-s", "server flag dropped for broadcast discovery")
}

func TestSqueezeliteFallbackUsesDefaultDevice(t *testing.T) {
	s := NewSqueezelite(&fakeMixer{})
	cfg := player.Config{Name: "kitchen", Device: "hw:0,0", MACAddress: "02:aa:bb:cc:dd:ee"}

	require.True(t, s.SupportsFallback())
	argv := s.FallbackCommand(&cfg, "")
	assert.Contains(t, argv, "default")
	assert.Equal(t, "hw:0,0", cfg.Device, "fallback must not mutate the stored config")
}

func TestSqueezeliteVolumeUsesMixerControl(t *testing.T) {
	mixer := &fakeMixer{volume: 40}
	s := NewSqueezelite(mixer)
	cfg := player.Config{Name: "kitchen", Device: "hw:0,0"}

	vol, err := s.Volume(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, 40, vol)
	assert.Equal(t, "Master", mixer.lastControl)

	cfg.Extra = map[string]any{"mixer_control": "PCM"}
	require.NoError(t, s.SetVolume(context.Background(), &cfg, 65))
	assert.Equal(t, "PCM", mixer.lastControl)
	assert.Equal(t, 65, mixer.volume)
}

func TestSendspinValidateRequiresServerURL(t *testing.T) {
	s := NewSendspin()

	assert.Error(t, s.Validate(&player.Config{Name: "kitchen"}))
	assert.NoError(t, s.Validate(&player.Config{Name: "kitchen", ServerURL: "ws://ma.local:8927"}))
}

func TestSendspinPrepareAssignsClientIDOnce(t *testing.T) {
	s := NewSendspin()
	cfg := player.Config{Name: "kitchen", ServerURL: "ws://ma.local:8927"}

	s.Prepare(&cfg)
	id, ok := cfg.Extra["client_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	s.Prepare(&cfg)
	assert.Equal(t, id, cfg.Extra["client_id"])
}

func TestSendspinCommand(t *testing.T) {
	s := NewSendspin()
	cfg := player.Config{
		Name:      "kitchen",
		ServerURL: "ws://ma.local:8927",
		Device:    "3",
		Extra:     map[string]any{"client_id": "abc-123"},
	}

	assert.Equal(t, []string{
		"sendspin", "--server", "ws://ma.local:8927", "--name", "kitchen",
		"--client-id", "abc-123", "--audio-device", "3",
	}, s.Command(&cfg, ""))
}

func TestSendspinNoFallbackAndSoftwareVolume(t *testing.T) {
	s := NewSendspin()
	cfg := player.Config{Name: "kitchen", Volume: 55}

	assert.False(t, s.SupportsFallback())
	assert.Nil(t, s.FallbackCommand(&cfg, ""))

	vol, err := s.Volume(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, 55, vol)
	assert.NoError(t, s.SetVolume(context.Background(), &cfg, 80))
}

func TestSnapcastValidateRequiresServerIP(t *testing.T) {
	s := NewSnapcast()

	assert.Error(t, s.Validate(&player.Config{Name: "kitchen"}))
	assert.NoError(t, s.Validate(&player.Config{Name: "kitchen", ServerIP: "10.0.0.9"}))
}

func TestSnapcastCommandAndFallback(t *testing.T) {
	s := NewSnapcast()
	cfg := player.Config{Name: "kitchen", ServerIP: "10.0.0.9", Device: "hw:0,0"}

	assert.Equal(t, []string{
		"snapclient", "-h", "10.0.0.9", "--hostID", "kitchen", "-s", "hw:0,0",
	}, s.Command(&cfg, ""))

	require.True(t, s.SupportsFallback())
	fallback := s.FallbackCommand(&cfg, "")
	assert.NotContains(t, fallback, "-s", "fallback lets snapclient choose its default output")
}
