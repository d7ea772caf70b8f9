// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"))
}

// fakeSource returns a canned status map and a one-shot reap list.
type fakeSource struct {
	mu       sync.Mutex
	statuses map[string]bool
	reaped   []string
	calls    int
}

func (f *fakeSource) Statuses() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]bool, len(f.statuses))
	for k, v := range f.statuses {
		out[k] = v
	}
	return out
}

func (f *fakeSource) CleanupDead() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reaped
	f.reaped = nil
	return r
}

func TestMonitorDeliversSnapshots(t *testing.T) {
	src := &fakeSource{statuses: map[string]bool{"kitchen": true, "patio": false}, reaped: []string{"attic"}}
	m := New(src, 50*time.Millisecond, nil)

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()

	select {
	case snap := <-ch:
		assert.Equal(t, map[string]bool{"kitchen": true, "patio": false}, snap.Statuses)
		assert.Equal(t, []string{"attic"}, snap.Reaped)
		assert.False(t, snap.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	<-done
}

func TestMonitorSlowSubscriberDoesNotStall(t *testing.T) {
	src := &fakeSource{statuses: map[string]bool{"kitchen": true}}
	m := New(src, 10*time.Millisecond, nil)

	// Never drained: the buffer fills and later snapshots are dropped.
	id, _ := m.Subscribe()
	defer m.Unsubscribe(id)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	assert.Greater(t, calls, subscriberBuffer, "poll loop must keep ticking past a full subscriber buffer")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := New(&fakeSource{}, time.Minute, nil)

	id, ch := m.Subscribe()
	m.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	m.Unsubscribe(id)
}

func TestRedisPublisher(t *testing.T) {
	srv := miniredis.RunT(t)

	ctx := context.Background()
	pub, err := NewRedisPublisher(ctx, srv.Addr(), "msp:status")
	require.NoError(t, err)
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "msp:status")
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	snap := Snapshot{Timestamp: time.Now().UTC(), Statuses: map[string]bool{"kitchen": true}}
	require.NoError(t, pub.Publish(ctx, snap))

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, snap.Statuses, got.Statuses)
}

func TestRedisPublisherConnectFailure(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "127.0.0.1:1", "msp:status")
	assert.Error(t, err)
}
