// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package provider maps declarative player configuration onto concrete audio
// backend invocations. A Provider is a stateless strategy shared by every
// player of its type; the Registry resolves one per player at call time.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

// ErrUnknown is returned when a config names a provider type nobody
// registered. An explicit unknown type is an error, never a silent default.
var ErrUnknown = errors.New("unknown provider type")

// Provider is the per-backend strategy contract.
//
// Validate and Command are side-effect free; Prepare mutates the given config
// in place (derived fields only) and is idempotent. Volume operations may
// shell out to the mixer, hence the context.
type Provider interface {
	// Type is the registry key, e.g. "squeezelite".
	Type() string
	// DisplayName is a human label with no behavioral weight.
	DisplayName() string
	// Available reports whether the backend binary is on PATH.
	Available() bool

	Validate(cfg *player.Config) error
	Prepare(cfg *player.Config)

	// Command maps a valid config to the exact argv. logPath is advisory;
	// the supervisor redirects stdout/stderr there regardless.
	Command(cfg *player.Config, logPath string) []string
	SupportsFallback() bool
	// FallbackCommand returns a degraded invocation (generic device), or nil
	// when SupportsFallback is false.
	FallbackCommand(cfg *player.Config, logPath string) []string

	Volume(ctx context.Context, cfg *player.Config) (int, error)
	SetVolume(ctx context.Context, cfg *player.Config, volume int) error
}

// Info is the transport-facing description of one registered provider.
type Info struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Available   bool   `json:"available"`
}

// Registry is a name-keyed catalog of providers. Registration happens at
// boot; lookups are concurrent.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultType string
}

// NewRegistry creates a registry resolving configs without an explicit
// provider type to defaultType.
func NewRegistry(defaultType string) *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		defaultType: defaultType,
	}
}

// Register adds or replaces the provider for its type.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Type()] = p
}

// Get resolves a provider by type name.
func (r *Registry) Get(typeName string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, typeName)
	}
	return p, nil
}

// ForPlayer resolves the provider for a stored config. A missing type falls
// back to the registry default; an unknown explicit type is an error.
func (r *Registry) ForPlayer(cfg *player.Config) (Provider, error) {
	typeName := cfg.Provider
	if typeName == "" {
		typeName = r.defaultType
	}
	return r.Get(typeName)
}

// Types lists registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Info describes registered providers, optionally only those whose backend
// binary is present.
func (r *Registry) Info(availableOnly bool) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.providers))
	for _, p := range r.providers {
		avail := p.Available()
		if availableOnly && !avail {
			continue
		}
		infos = append(infos, Info{Type: p.Type(), DisplayName: p.DisplayName(), Available: avail})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}

func binaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
