// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager is the orchestration façade over providers, the process
// supervisor and the configuration store. It is the only component the
// transport layer talks to, and it owns every invariant that spans
// process/config/provider state.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/process"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/provider"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "msp_player_ops_total",
	Help: "Total number of player orchestration operations",
}, []string{"op", "result"})

// Supervisor is the process lifecycle collaborator.
type Supervisor interface {
	Start(name string, command, fallbackCommand []string) (process.StartResult, error)
	Stop(name string) (process.StopResult, error)
	IsRunning(name string) bool
	Statuses(names []string) map[string]bool
	LogPath(name string) string
	CleanupDead() []string
	StopAll() int
}

// Store is the durable configuration collaborator.
type Store interface {
	Save() error
	PlayerExists(name string) bool
	GetPlayer(name string) (player.Config, bool)
	SetPlayer(name string, cfg player.Config)
	DeletePlayer(name string)
	ListPlayers() []string
	Players() map[string]player.Config
	UpdatePlayerField(name, field string, value any) bool
}

// Manager coordinates player lifecycle operations. Operations on the same
// player name are serialized; different players proceed concurrently.
type Manager struct {
	registry *provider.Registry
	sup      Supervisor
	store    Store
	audio    audio.Controller

	locks sync.Map // player name -> *sync.Mutex
}

func New(registry *provider.Registry, sup Supervisor, st Store, ctrl audio.Controller) *Manager {
	return &Manager{
		registry: registry,
		sup:      sup,
		store:    st,
		audio:    ctrl,
	}
}

func (m *Manager) lockFor(name string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreatePlayer validates, prepares and persists a new player. The config is
// on disk before this returns success. A zero volume on create means
// "unspecified" and receives the default.
func (m *Manager) CreatePlayer(ctx context.Context, cfg player.Config) (string, error) {
	if err := player.ValidateName(cfg.Name); err != nil {
		return m.fail("create", err)
	}
	if err := player.ValidateDelay(cfg.DelayMS); err != nil {
		return m.fail("create", err)
	}

	mu := m.lockFor(cfg.Name)
	mu.Lock()
	defer mu.Unlock()

	if m.store.PlayerExists(cfg.Name) {
		return m.fail("create", fmt.Errorf("%w: %q", player.ErrDuplicate, cfg.Name))
	}

	prov, err := m.registry.ForPlayer(&cfg)
	if err != nil {
		return m.fail("create", err)
	}

	cfg.Provider = prov.Type()
	cfg.Enabled = true
	if cfg.Volume == 0 {
		cfg.Volume = player.DefaultVolume
	}
	if err := player.ValidateVolume(cfg.Volume); err != nil {
		return m.fail("create", err)
	}

	if err := prov.Validate(&cfg); err != nil {
		return m.fail("create", err)
	}
	prov.Prepare(&cfg)

	m.store.SetPlayer(cfg.Name, cfg)
	if err := m.store.Save(); err != nil {
		m.store.DeletePlayer(cfg.Name)
		return m.fail("create", fmt.Errorf("persist player %q: %w", cfg.Name, err))
	}

	logger := log.WithComponent("manager")
	logger.Info().
		Str(log.FieldPlayer, cfg.Name).
		Str(log.FieldProvider, cfg.Provider).
		Str(log.FieldDevice, cfg.Device).
		Msg("player created")
	opsTotal.WithLabelValues("create", "ok").Inc()
	return fmt.Sprintf("Player %q created", cfg.Name), nil
}

// UpdatePlayer replaces a player's configuration, optionally renaming it. A
// running player is stopped first and restarted afterwards; a failed restart
// still reports success with a warning, because the persisted state is what
// the caller asked for.
func (m *Manager) UpdatePlayer(ctx context.Context, name string, updated player.Config) (string, error) {
	if updated.Name == "" {
		updated.Name = name
	}
	if err := player.ValidateName(updated.Name); err != nil {
		return m.fail("update", err)
	}
	if err := player.ValidateDelay(updated.DelayMS); err != nil {
		return m.fail("update", err)
	}
	if err := player.ValidateVolume(updated.Volume); err != nil {
		return m.fail("update", err)
	}

	// A rename takes both names' locks in sorted order, so it cannot
	// interleave with a create or another rename targeting the same name.
	lockNames := []string{name}
	if updated.Name != name {
		lockNames = append(lockNames, updated.Name)
		sort.Strings(lockNames)
	}
	for _, n := range lockNames {
		mu := m.lockFor(n)
		mu.Lock()
		defer mu.Unlock()
	}

	current, ok := m.store.GetPlayer(name)
	if !ok {
		return m.fail("update", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}
	renamed := updated.Name != name
	if renamed && m.store.PlayerExists(updated.Name) {
		return m.fail("update", fmt.Errorf("%w: %q", player.ErrDuplicate, updated.Name))
	}

	requested := updated.Provider
	if updated.Provider == "" {
		updated.Provider = current.Provider
	}
	prov, resolveErr := m.registry.ForPlayer(&updated)
	if resolveErr != nil {
		if requested != "" {
			return m.fail("update", resolveErr)
		}
		// The stored type is not registered (hand-edited players.yaml or a
		// build without that backend). The update persists anyway; only an
		// explicitly requested type has to resolve.
		logger := log.WithComponent("manager")
		logger.Warn().Err(resolveErr).
			Str(log.FieldPlayer, name).
			Str(log.FieldProvider, updated.Provider).
			Msg("provider unresolved, skipping provider validation")
	} else {
		updated.Provider = prov.Type()
		if err := prov.Validate(&updated); err != nil {
			return m.fail("update", err)
		}
		prov.Prepare(&updated)
	}

	wasRunning := m.sup.IsRunning(name)
	if wasRunning {
		if _, err := m.sup.Stop(name); err != nil && !errors.Is(err, process.ErrWasNotRunning) {
			logger := log.WithComponent("manager")
			logger.Warn().Err(err).
				Str(log.FieldPlayer, name).
				Msg("stop before update failed, continuing")
		}
	}

	if renamed {
		m.store.DeletePlayer(name)
	}
	m.store.SetPlayer(updated.Name, updated)
	if err := m.store.Save(); err != nil {
		return m.fail("update", fmt.Errorf("persist player %q: %w", updated.Name, err))
	}

	msg := fmt.Sprintf("Player %q updated", updated.Name)
	if wasRunning {
		startErr := resolveErr
		if prov != nil {
			_, startErr = m.startLocked(&updated, prov)
		}
		if startErr != nil {
			// Persisted state wins: the update succeeded even though the
			// restart did not. The warning stays in the message.
			msg = fmt.Sprintf("Player %q updated, but restart failed: %v", updated.Name, startErr)
			logger := log.WithComponent("manager")
			logger.Warn().Err(startErr).
				Str(log.FieldPlayer, updated.Name).
				Msg("restart after update failed")
		}
	}

	opsTotal.WithLabelValues("update", "ok").Inc()
	return msg, nil
}

// DeletePlayer stops the process unconditionally and removes the
// configuration. "not found" is the only hard failure.
func (m *Manager) DeletePlayer(name string) (string, error) {
	mu := m.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if !m.store.PlayerExists(name) {
		return m.fail("delete", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}

	if _, err := m.sup.Stop(name); err != nil &&
		!errors.Is(err, process.ErrNotFound) && !errors.Is(err, process.ErrWasNotRunning) {
		logger := log.WithComponent("manager")
		logger.Warn().Err(err).
			Str(log.FieldPlayer, name).
			Msg("stop before delete failed, removing config anyway")
	}

	m.store.DeletePlayer(name)
	if err := m.store.Save(); err != nil {
		return m.fail("delete", fmt.Errorf("persist removal of %q: %w", name, err))
	}

	logger := log.WithComponent("manager")
	logger.Info().Str(log.FieldPlayer, name).Msg("player deleted")
	opsTotal.WithLabelValues("delete", "ok").Inc()
	return fmt.Sprintf("Player %q deleted", name), nil
}

// StartPlayer launches the player's process, falling back to the provider's
// degraded command when the declared device is unavailable.
func (m *Manager) StartPlayer(ctx context.Context, name string) (string, error) {
	mu := m.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	cfg, ok := m.store.GetPlayer(name)
	if !ok {
		return m.fail("start", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}
	prov, err := m.registry.ForPlayer(&cfg)
	if err != nil {
		return m.fail("start", err)
	}

	return m.startLocked(&cfg, prov)
}

// startLocked builds commands and delegates to the supervisor. Caller holds
// the per-name lock.
func (m *Manager) startLocked(cfg *player.Config, prov provider.Provider) (string, error) {
	logPath := m.sup.LogPath(cfg.Name)
	command := prov.Command(cfg, logPath)
	var fallback []string
	if prov.SupportsFallback() {
		fallback = prov.FallbackCommand(cfg, logPath)
	}

	res, err := m.sup.Start(cfg.Name, command, fallback)
	if err != nil {
		if errors.Is(err, process.ErrAlreadyRunning) {
			return m.fail("start", fmt.Errorf("player %q is already running", cfg.Name))
		}
		return m.fail("start", fmt.Errorf("start player %q: %w", cfg.Name, err))
	}

	opsTotal.WithLabelValues("start", "ok").Inc()
	if res.UsedFallback {
		return fmt.Sprintf("Player %q started on fallback output; device %q unavailable", cfg.Name, cfg.Device), nil
	}
	return fmt.Sprintf("Player %q started", cfg.Name), nil
}

// StopPlayer terminates the player's process. Stopping a configured player
// that is not running is a failure; no process is created.
func (m *Manager) StopPlayer(name string) (string, error) {
	mu := m.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if !m.store.PlayerExists(name) {
		return m.fail("stop", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}

	res, err := m.sup.Stop(name)
	switch {
	case errors.Is(err, process.ErrNotFound), errors.Is(err, process.ErrWasNotRunning):
		return m.fail("stop", fmt.Errorf("%w: %q", player.ErrNotRunning, name))
	case err != nil:
		return m.fail("stop", fmt.Errorf("stop player %q: %w", name, err))
	}

	opsTotal.WithLabelValues("stop", "ok").Inc()
	if res.Forced {
		return fmt.Sprintf("Player %q stopped (forced)", name), nil
	}
	return fmt.Sprintf("Player %q stopped", name), nil
}

// GetPlayerStatus reports whether the named player's process is alive.
func (m *Manager) GetPlayerStatus(name string) (bool, error) {
	if !m.store.PlayerExists(name) {
		return false, fmt.Errorf("%w: %q", player.ErrNotFound, name)
	}
	return m.sup.IsRunning(name), nil
}

// Statuses reports running state for every persisted player, so a player
// with zero process history still reports false rather than being omitted.
func (m *Manager) Statuses() map[string]bool {
	return m.sup.Statuses(m.store.ListPlayers())
}

// Players returns a deep copy of all persisted configurations.
func (m *Manager) Players() map[string]player.Config {
	return m.store.Players()
}

// GetPlayer returns a copy of one persisted configuration.
func (m *Manager) GetPlayer(name string) (player.Config, bool) {
	return m.store.GetPlayer(name)
}

// GetPlayerVolume reads the effective volume from the provider. A stored
// config without a volume yet gets the provider's value backfilled, but the
// read never fails on that persistence.
func (m *Manager) GetPlayerVolume(ctx context.Context, name string) (int, error) {
	cfg, ok := m.store.GetPlayer(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", player.ErrNotFound, name)
	}
	prov, err := m.registry.ForPlayer(&cfg)
	if err != nil {
		return 0, err
	}

	vol, err := prov.Volume(ctx, &cfg)
	if err != nil {
		return 0, fmt.Errorf("read volume for %q: %w", name, err)
	}

	if cfg.Volume == 0 && vol != 0 {
		if m.store.UpdatePlayerField(name, "volume", vol) {
			if saveErr := m.store.Save(); saveErr != nil {
				logger := log.WithComponent("manager")
				logger.Warn().Err(saveErr).
					Str(log.FieldPlayer, name).
					Msg("volume backfill not persisted")
			}
		}
	}
	return vol, nil
}

// SetPlayerVolume range-validates, then persists the desired volume
// regardless of the hardware outcome. The displayed volume always reflects
// the user's last intent, not the hardware's last acknowledged state.
func (m *Manager) SetPlayerVolume(ctx context.Context, name string, volume int) (string, error) {
	if err := player.ValidateVolume(volume); err != nil {
		return m.fail("volume", err)
	}

	mu := m.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	cfg, ok := m.store.GetPlayer(name)
	if !ok {
		return m.fail("volume", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}
	prov, err := m.registry.ForPlayer(&cfg)
	if err != nil {
		return m.fail("volume", err)
	}

	hwErr := prov.SetVolume(ctx, &cfg, volume)

	m.store.UpdatePlayerField(name, "volume", volume)
	if err := m.store.Save(); err != nil {
		return m.fail("volume", fmt.Errorf("persist volume for %q: %w", name, err))
	}

	opsTotal.WithLabelValues("volume", "ok").Inc()
	if hwErr != nil {
		logger := log.WithComponent("manager")
		logger.Warn().Err(hwErr).
			Str(log.FieldPlayer, name).
			Int(log.FieldVolume, volume).
			Msg("hardware volume set failed, config updated anyway")
		return fmt.Sprintf("Volume for %q saved, but hardware set failed: %v", name, hwErr), nil
	}
	return fmt.Sprintf("Volume for %q set to %d%%", name, volume), nil
}

// SetPlayerDelay persists the sync offset. A running player needs a restart
// for the new offset to take effect; the message says so.
func (m *Manager) SetPlayerDelay(name string, delayMS int) (string, error) {
	if err := player.ValidateDelay(delayMS); err != nil {
		return m.fail("delay", err)
	}

	mu := m.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if !m.store.UpdatePlayerField(name, "delay_ms", delayMS) {
		return m.fail("delay", fmt.Errorf("%w: %q", player.ErrNotFound, name))
	}
	if err := m.store.Save(); err != nil {
		return m.fail("delay", fmt.Errorf("persist delay for %q: %w", name, err))
	}

	opsTotal.WithLabelValues("delay", "ok").Inc()
	if m.sup.IsRunning(name) {
		return fmt.Sprintf("Delay for %q set to %dms; restart required to apply", name, delayMS), nil
	}
	return fmt.Sprintf("Delay for %q set to %dms", name, delayMS), nil
}

// Devices lists selectable audio devices via the device/volume collaborator.
func (m *Manager) Devices(ctx context.Context) []audio.Device {
	return m.audio.Devices(ctx)
}

// MixerControls lists the mixer controls of one device.
func (m *Manager) MixerControls(ctx context.Context, device string) ([]string, error) {
	return m.audio.MixerControls(ctx, device)
}

// PlayTestTone plays an identification tone on a device.
func (m *Manager) PlayTestTone(ctx context.Context, device string) error {
	return m.audio.PlayTestTone(ctx, device)
}

// Providers describes registered providers for the transport layer.
func (m *Manager) Providers(availableOnly bool) []provider.Info {
	return m.registry.Info(availableOnly)
}

// LogPath exposes the per-player process log location.
func (m *Manager) LogPath(name string) string {
	return m.sup.LogPath(name)
}

// CleanupDead sweeps crashed processes out of the live set.
func (m *Manager) CleanupDead() []string {
	return m.sup.CleanupDead()
}

// StopAll terminates every running player, used on shutdown.
func (m *Manager) StopAll() int {
	return m.sup.StopAll()
}

func (m *Manager) fail(op string, err error) (string, error) {
	opsTotal.WithLabelValues(op, "error").Inc()
	return "", err
}
