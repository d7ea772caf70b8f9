// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

const sendspinBinary = "sendspin"

// extraClientID is the stable session identifier sendspin presents to its
// server. Generated once on Prepare, persisted with the player.
const extraClientID = "client_id"

// Sendspin runs the sendspin synchronized-stream client. Volume is handled
// in software by the server, so the stored percentage is authoritative and
// hardware calls are trivial successes.
type Sendspin struct{}

func NewSendspin() *Sendspin {
	return &Sendspin{}
}

func (s *Sendspin) Type() string        { return "sendspin" }
func (s *Sendspin) DisplayName() string { return "SendSpin (Music Assistant)" }
func (s *Sendspin) Available() bool     { return binaryAvailable(sendspinBinary) }

func (s *Sendspin) Validate(cfg *player.Config) error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("sendspin player %q: server_url is required", cfg.Name)
	}
	return nil
}

// Prepare assigns a client ID once; an existing ID is kept so the server
// keeps recognizing the player across config edits.
func (s *Sendspin) Prepare(cfg *player.Config) {
	if _, ok := cfg.Extra[extraClientID].(string); ok {
		return
	}
	if cfg.Extra == nil {
		cfg.Extra = make(map[string]any, 1)
	}
	cfg.Extra[extraClientID] = uuid.NewString()
}

func (s *Sendspin) Command(cfg *player.Config, _ string) []string {
	argv := []string{
		sendspinBinary,
		"--server", cfg.ServerURL,
		"--name", cfg.Name,
	}
	if id, ok := cfg.Extra[extraClientID].(string); ok && id != "" {
		argv = append(argv, "--client-id", id)
	}
	if cfg.Device != "" {
		argv = append(argv, "--audio-device", cfg.Device)
	}
	return argv
}

// Sendspin selects its device by PortAudio index; there is no generic
// "default" invocation worth degrading to.
func (s *Sendspin) SupportsFallback() bool { return false }

func (s *Sendspin) FallbackCommand(*player.Config, string) []string { return nil }

func (s *Sendspin) Volume(_ context.Context, cfg *player.Config) (int, error) {
	return cfg.Volume, nil
}

func (s *Sendspin) SetVolume(context.Context, *player.Config, int) error {
	// Software volume: the orchestrator persists the value, the server
	// applies it on the stream.
	return nil
}
