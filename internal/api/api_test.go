// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/monitor"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/player"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/provider"
)

// fakeOrchestrator returns canned results and records the last call.
type fakeOrchestrator struct {
	players  map[string]player.Config
	statuses map[string]bool
	err      error

	lastOp     string
	lastName   string
	lastVolume int
	lastDelay  int
}

func (f *fakeOrchestrator) CreatePlayer(_ context.Context, cfg player.Config) (string, error) {
	f.lastOp, f.lastName = "create", cfg.Name
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("Player %q created", cfg.Name), nil
}

func (f *fakeOrchestrator) UpdatePlayer(_ context.Context, name string, _ player.Config) (string, error) {
	f.lastOp, f.lastName = "update", name
	if f.err != nil {
		return "", f.err
	}
	return "updated", nil
}

func (f *fakeOrchestrator) DeletePlayer(name string) (string, error) {
	f.lastOp, f.lastName = "delete", name
	if f.err != nil {
		return "", f.err
	}
	return "deleted", nil
}

func (f *fakeOrchestrator) StartPlayer(_ context.Context, name string) (string, error) {
	f.lastOp, f.lastName = "start", name
	if f.err != nil {
		return "", f.err
	}
	return "started", nil
}

func (f *fakeOrchestrator) StopPlayer(name string) (string, error) {
	f.lastOp, f.lastName = "stop", name
	if f.err != nil {
		return "", f.err
	}
	return "stopped", nil
}

func (f *fakeOrchestrator) GetPlayerStatus(name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.statuses[name], nil
}

func (f *fakeOrchestrator) Statuses() map[string]bool { return f.statuses }

func (f *fakeOrchestrator) Players() map[string]player.Config { return f.players }

func (f *fakeOrchestrator) GetPlayer(name string) (player.Config, bool) {
	cfg, ok := f.players[name]
	return cfg, ok
}

func (f *fakeOrchestrator) GetPlayerVolume(_ context.Context, name string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 66, nil
}

func (f *fakeOrchestrator) SetPlayerVolume(_ context.Context, name string, volume int) (string, error) {
	f.lastOp, f.lastName, f.lastVolume = "volume", name, volume
	if f.err != nil {
		return "", f.err
	}
	return "volume set", nil
}

func (f *fakeOrchestrator) SetPlayerDelay(name string, delayMS int) (string, error) {
	f.lastOp, f.lastName, f.lastDelay = "delay", name, delayMS
	if f.err != nil {
		return "", f.err
	}
	return "delay set", nil
}

func (f *fakeOrchestrator) Providers(availableOnly bool) []provider.Info {
	infos := []provider.Info{
		{Type: "squeezelite", DisplayName: "Squeezelite", Available: true},
		{Type: "sendspin", DisplayName: "SendSpin", Available: false},
	}
	if !availableOnly {
		return infos
	}
	return infos[:1]
}

func (f *fakeOrchestrator) Devices(context.Context) []audio.Device {
	return []audio.Device{{ID: "default", Name: "Default audio device"}}
}

func (f *fakeOrchestrator) MixerControls(context.Context, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Master"}, nil
}

func (f *fakeOrchestrator) PlayTestTone(context.Context, string) error { return f.err }

func newTestServer(t *testing.T, fake *fakeOrchestrator, stream StatusStream) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(fake, stream, Options{}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{}, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
}

func TestCreatePlayer(t *testing.T) {
	fake := &fakeOrchestrator{}
	srv := newTestServer(t, fake, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/players",
		`{"name":"Kitchen","device":"hw:0,0"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Kitchen", fake.lastName)
}

func TestCreatePlayerBadJSON(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{}, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/players", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestCreatePlayerConflict(t *testing.T) {
	fake := &fakeOrchestrator{err: fmt.Errorf("%w: %q", player.ErrDuplicate, "Kitchen")}
	srv := newTestServer(t, fake, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/players", `{"name":"Kitchen"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already exists")
}

func TestGetPlayerNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{players: map[string]player.Config{}}, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/players/Ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownProviderIsBadRequest(t *testing.T) {
	fake := &fakeOrchestrator{err: fmt.Errorf("%w: %q", provider.ErrUnknown, "airplay")}
	srv := newTestServer(t, fake, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/players", `{"name":"Kitchen","provider":"airplay"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartStopDelete(t *testing.T) {
	fake := &fakeOrchestrator{}
	srv := newTestServer(t, fake, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/players/Kitchen/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "start", fake.lastOp)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/players/Kitchen/stop", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stop", fake.lastOp)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/players/Kitchen", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delete", fake.lastOp)
}

func TestListPlayersIncludesStatuses(t *testing.T) {
	fake := &fakeOrchestrator{
		players:  map[string]player.Config{"Kitchen": {Name: "Kitchen", Device: "hw:0,0"}},
		statuses: map[string]bool{"Kitchen": true},
	}
	srv := newTestServer(t, fake, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/players", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "players")
	statuses := body["statuses"].(map[string]any)
	assert.Equal(t, true, statuses["Kitchen"])
}

func TestSetVolume(t *testing.T) {
	fake := &fakeOrchestrator{}
	srv := newTestServer(t, fake, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/players/Kitchen/volume", `{"volume":30}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 30, fake.lastVolume)
}

func TestSetVolumeOutOfRange(t *testing.T) {
	fake := &fakeOrchestrator{err: player.ErrVolumeRange}
	srv := newTestServer(t, fake, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/players/Kitchen/volume", `{"volume":101}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetOffset(t *testing.T) {
	fake := &fakeOrchestrator{}
	srv := newTestServer(t, fake, nil)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/players/Kitchen/offset", `{"delay_ms":-250}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, -250, fake.lastDelay)
}

func TestProvidersAvailableFilter(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{}, nil)

	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/providers?available=true", "")
	providers := body["providers"].([]any)
	assert.Len(t, providers, 1)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/providers", "")
	assert.Len(t, body["providers"].([]any), 2)
}

func TestDevices(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{}, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/devices", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["devices"])
}

func TestRateLimit(t *testing.T) {
	fake := &fakeOrchestrator{}
	srv := httptest.NewServer(NewServer(fake, nil, Options{RateLimitEnabled: true, RateLimitRPS: 2}).Router())
	defer srv.Close()

	var limited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst past the limit must get 429")
}

// fakeStream hands out a pre-filled snapshot channel.
type fakeStream struct {
	ch chan monitor.Snapshot
}

func (f *fakeStream) Subscribe() (uint64, <-chan monitor.Snapshot) { return 1, f.ch }
func (f *fakeStream) Unsubscribe(uint64)                           {}

func TestEventsStream(t *testing.T) {
	stream := &fakeStream{ch: make(chan monitor.Snapshot, 1)}
	stream.ch <- monitor.Snapshot{
		Timestamp: time.Now().UTC(),
		Statuses:  map[string]bool{"Kitchen": true},
	}
	srv := newTestServer(t, &fakeOrchestrator{}, stream)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.True(t, snap.Statuses["Kitchen"])
}
