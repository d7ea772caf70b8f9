// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package monitor periodically snapshots player process status and fans the
// snapshot out to subscribers. Slow subscribers lose snapshots, they never
// stall the poll loop.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msp_monitor_ticks_total",
		Help: "Total number of status poll ticks",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msp_monitor_dropped_total",
		Help: "Snapshots dropped because a subscriber was not draining",
	})
	listenersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msp_monitor_listeners",
		Help: "Currently subscribed status listeners",
	})
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_monitor_publish_total",
		Help: "Status snapshot publishes to the external broker",
	}, []string{"result"})
)

// Snapshot is one poll result: running state per persisted player plus the
// names reaped as crashed during this tick.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Statuses  map[string]bool `json:"statuses"`
	Reaped    []string        `json:"reaped,omitempty"`
}

// Source supplies the status data. The manager satisfies this.
type Source interface {
	Statuses() map[string]bool
	CleanupDead() []string
}

// Publisher pushes snapshots to an external broker. Optional.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

const subscriberBuffer = 4

// Monitor polls a Source on a fixed interval.
type Monitor struct {
	src      Source
	interval time.Duration
	pub      Publisher

	mu        sync.Mutex
	listeners map[uint64]chan Snapshot
	nextID    uint64
}

// New creates a monitor. pub may be nil.
func New(src Source, interval time.Duration, pub Publisher) *Monitor {
	return &Monitor{
		src:       src,
		interval:  interval,
		pub:       pub,
		listeners: make(map[uint64]chan Snapshot),
	}
}

// Subscribe registers a listener. The returned channel is closed by
// Unsubscribe, never by the poll loop.
func (m *Monitor) Subscribe() (uint64, <-chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan Snapshot, subscriberBuffer)
	m.listeners[id] = ch
	listenersGauge.Inc()
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (m *Monitor) Unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.listeners[id]
	if !ok {
		return
	}
	delete(m.listeners, id)
	close(ch)
	listenersGauge.Dec()
}

// Run polls until the context is cancelled. An immediate first tick gives
// subscribers a snapshot without waiting a full interval.
func (m *Monitor) Run(ctx context.Context) error {
	logger := log.WithComponent("monitor")
	logger.Info().Dur("interval", m.interval).Msg("status monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("status monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	ticksTotal.Inc()

	reaped := m.src.CleanupDead()
	if len(reaped) > 0 {
		logger := log.WithComponent("monitor")
		logger.Warn().
			Strs("players", reaped).
			Msg("reaped dead player processes")
	}

	snap := Snapshot{
		Timestamp: time.Now().UTC(),
		Statuses:  m.src.Statuses(),
		Reaped:    reaped,
	}

	m.fanOut(snap)

	if m.pub != nil {
		if err := m.pub.Publish(ctx, snap); err != nil {
			publishTotal.WithLabelValues("error").Inc()
			logger := log.WithComponent("monitor")
			logger.Warn().Err(err).Msg("snapshot publish failed")
		} else {
			publishTotal.WithLabelValues("ok").Inc()
		}
	}
}

// fanOut delivers non-blocking: a full subscriber buffer drops the snapshot
// for that subscriber only.
func (m *Monitor) fanOut(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.listeners {
		select {
		case ch <- snap:
		default:
			droppedTotal.Inc()
		}
	}
}
