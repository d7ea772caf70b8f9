// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store persists player configurations to a YAML document keyed by
// player name. Writes are atomic and durable (fsync before rename) so a crash
// mid-save never leaves a truncated players.yaml behind.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
)

var saveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "msp_store_save_total",
	Help: "Total number of players.yaml save attempts",
}, []string{"result"})

// document is the on-disk YAML shape.
type document struct {
	Players map[string]player.Config `yaml:"players"`
}

// Store is a thread-safe player configuration store backed by one YAML file.
type Store struct {
	path string

	mu      sync.RWMutex
	players map[string]player.Config
}

// New creates a store for the given file path and loads it if present.
func New(path string) (*Store, error) {
	s := &Store{
		path:    path,
		players: make(map[string]player.Config),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory state with the file contents.
// A missing file yields an empty store, not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path) // #nosec G304 -- path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.players = make(map[string]player.Config)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read players file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse players file: %w", err)
	}

	players := doc.Players
	if players == nil {
		players = make(map[string]player.Config)
	}
	// The map key is authoritative; keep the embedded name in sync with it.
	for name, cfg := range players {
		if cfg.Name != name {
			cfg.Name = name
			players[name] = cfg
		}
	}

	s.mu.Lock()
	s.players = players
	s.mu.Unlock()

	logger := log.WithComponent("store")
	logger.Debug().
		Int("players", len(players)).
		Str(log.FieldPath, s.path).
		Msg("loaded player configurations")
	return nil
}

// Save writes the current state to disk atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := document{Players: make(map[string]player.Config, len(s.players))}
	for name, cfg := range s.players {
		doc.Players[name] = cfg.Clone()
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		saveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("mkdir players dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		saveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("create pending players file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := log.WithComponent("store")
			logger.Debug().Err(err).Msg("cleanup pending players file")
		}
	}()

	enc := yaml.NewEncoder(pending)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		saveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("encode players file: %w", err)
	}
	if err := enc.Close(); err != nil {
		saveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("close players encoder: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		saveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("atomically replace players file: %w", err)
	}

	saveTotal.WithLabelValues("ok").Inc()
	return nil
}

// PlayerExists reports whether a player with the given name is stored.
func (s *Store) PlayerExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.players[name]
	return ok
}

// GetPlayer returns a copy of the named player configuration.
func (s *Store) GetPlayer(name string) (player.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.players[name]
	if !ok {
		return player.Config{}, false
	}
	return cfg.Clone(), true
}

// SetPlayer stores a player configuration under the given name.
func (s *Store) SetPlayer(name string, cfg player.Config) {
	cfg.Name = name
	s.mu.Lock()
	s.players[name] = cfg.Clone()
	s.mu.Unlock()
}

// DeletePlayer removes the named player; removing an absent name is a no-op.
func (s *Store) DeletePlayer(name string) {
	s.mu.Lock()
	delete(s.players, name)
	s.mu.Unlock()
}

// ListPlayers returns all stored player names, sorted for stable output.
func (s *Store) ListPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.players))
	for name := range s.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Players returns a deep copy of every stored configuration keyed by name.
func (s *Store) Players() map[string]player.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]player.Config, len(s.players))
	for name, cfg := range s.players {
		out[name] = cfg.Clone()
	}
	return out
}

// UpdatePlayerField mutates a single well-known field on a stored player.
// It returns false when the player does not exist or the field is unknown.
func (s *Store) UpdatePlayerField(name, field string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.players[name]
	if !ok {
		return false
	}

	switch field {
	case "device":
		v, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Device = v
	case "volume":
		v, ok := value.(int)
		if !ok {
			return false
		}
		cfg.Volume = v
	case "delay_ms":
		v, ok := value.(int)
		if !ok {
			return false
		}
		cfg.DelayMS = v
	case "enabled":
		v, ok := value.(bool)
		if !ok {
			return false
		}
		cfg.Enabled = v
	default:
		return false
	}

	s.players[name] = cfg
	return true
}
