// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP transport over the player orchestrator. It decodes
// requests, delegates to the manager and renders {success, message|error}
// JSON; no business rules live here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/monitor"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/provider"
)

// Orchestrator is the manager surface the transport needs.
type Orchestrator interface {
	CreatePlayer(ctx context.Context, cfg player.Config) (string, error)
	UpdatePlayer(ctx context.Context, name string, cfg player.Config) (string, error)
	DeletePlayer(name string) (string, error)
	StartPlayer(ctx context.Context, name string) (string, error)
	StopPlayer(name string) (string, error)
	GetPlayerStatus(name string) (bool, error)
	Statuses() map[string]bool
	Players() map[string]player.Config
	GetPlayer(name string) (player.Config, bool)
	GetPlayerVolume(ctx context.Context, name string) (int, error)
	SetPlayerVolume(ctx context.Context, name string, volume int) (string, error)
	SetPlayerDelay(name string, delayMS int) (string, error)
	Providers(availableOnly bool) []provider.Info
	Devices(ctx context.Context) []audio.Device
	MixerControls(ctx context.Context, device string) ([]string, error)
	PlayTestTone(ctx context.Context, device string) error
}

// StatusStream feeds the SSE endpoint. The monitor satisfies this.
type StatusStream interface {
	Subscribe() (uint64, <-chan monitor.Snapshot)
	Unsubscribe(id uint64)
}

// Options tunes the transport middleware.
type Options struct {
	RateLimitEnabled bool
	RateLimitRPS     int
}

// Server holds handler dependencies.
type Server struct {
	mgr    Orchestrator
	stream StatusStream
	opts   Options
}

func NewServer(mgr Orchestrator, stream StatusStream, opts Options) *Server {
	return &Server{mgr: mgr, stream: stream, opts: opts}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger)
	if s.opts.RateLimitEnabled {
		r.Use(RateLimit(s.opts.RateLimitRPS))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/players", s.handleListPlayers)
		r.Post("/players", s.handleCreatePlayer)
		r.Route("/players/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetPlayer)
			r.Put("/", s.handleUpdatePlayer)
			r.Delete("/", s.handleDeletePlayer)
			r.Post("/start", s.handleStartPlayer)
			r.Post("/stop", s.handleStopPlayer)
			r.Get("/status", s.handlePlayerStatus)
			r.Get("/volume", s.handleGetVolume)
			r.Post("/volume", s.handleSetVolume)
			r.Put("/offset", s.handleSetOffset)
		})
		r.Get("/status", s.handleAllStatuses)
		r.Get("/providers", s.handleProviders)
		r.Get("/devices", s.handleDevices)
		r.Get("/devices/portaudio", s.handlePortAudioDevices)
		r.Get("/devices/mixer", s.handleMixerControls)
		r.Post("/devices/test", s.handleTestTone)
		if s.stream != nil {
			r.Get("/events", s.handleEvents)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, player.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, player.ErrDuplicate), errors.Is(err, player.ErrNotRunning):
		status = http.StatusConflict
	case errors.Is(err, provider.ErrUnknown),
		errors.Is(err, player.ErrEmptyName),
		errors.Is(err, player.ErrInvalidName),
		errors.Is(err, player.ErrNameTooLong),
		errors.Is(err, player.ErrVolumeRange),
		errors.Is(err, player.ErrDelayRange):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"players":  s.mgr.Players(),
		"statuses": s.mgr.Statuses(),
	})
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var cfg player.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	msg, err := s.mgr.CreatePlayer(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": msg})
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, ok := s.mgr.GetPlayer(name)
	if !ok {
		writeError(w, player.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var cfg player.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	msg, err := s.mgr.UpdatePlayer(r.Context(), chi.URLParam(r, "name"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	msg, err := s.mgr.DeletePlayer(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handleStartPlayer(w http.ResponseWriter, r *http.Request) {
	msg, err := s.mgr.StartPlayer(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handleStopPlayer(w http.ResponseWriter, r *http.Request) {
	msg, err := s.mgr.StopPlayer(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	running, err := s.mgr.GetPlayerStatus(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "running": running})
}

func (s *Server) handleAllStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statuses": s.mgr.Statuses()})
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	vol, err := s.mgr.GetPlayerVolume(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "volume": vol})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume int `json:"volume"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	msg, err := s.mgr.SetPlayerVolume(r.Context(), chi.URLParam(r, "name"), body.Volume)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handleSetOffset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DelayMS int `json:"delay_ms"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	msg, err := s.mgr.SetPlayerDelay(chi.URLParam(r, "name"), body.DelayMS)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, msg)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available") == "true"
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.mgr.Providers(availableOnly)})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.mgr.Devices(r.Context())})
}

func (s *Server) handlePortAudioDevices(w http.ResponseWriter, r *http.Request) {
	devices := audio.PortAudioDevices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"note":    "use the device index with sendspin's --audio-device flag",
	})
}

func (s *Server) handleMixerControls(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	if device == "" {
		device = "default"
	}
	controls, err := s.mgr.MixerControls(r.Context(), device)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": device, "controls": controls})
}

func (s *Server) handleTestTone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Device string `json:"device"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Device == "" {
		body.Device = "default"
	}
	if err := s.mgr.PlayTestTone(r.Context(), body.Device); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, "test tone played on "+body.Device)
}
