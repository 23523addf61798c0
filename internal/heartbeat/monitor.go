package heartbeat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/otterable/minifitna/internal/events"
)

// DefaultInterval is the probe period.
const DefaultInterval = 10 * time.Second

// Probe performs one bounded-timeout liveness call against the backend.
type Probe interface {
	Ping(ctx context.Context) error
}

// Monitor polls the backend's liveness endpoint on a fixed interval and
// tracks a single up/down status. Only transitions are published; repeated
// identical probe results are silent. Probes may overlap when slow; the
// boolean is last-writer-wins, which is fine since both writers report
// the liveness at their own completion time.
type Monitor struct {
	probe    Probe
	bus      *events.Bus
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	up      bool
}

// NewMonitor creates a heartbeat monitor. bus may be nil. Status starts as
// down until the first successful probe.
func NewMonitor(probe Probe, bus *events.Bus, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		probe:    probe,
		bus:      bus,
		interval: interval,
		timeout:  interval,
	}
}

// Up reports the current liveness status.
func (m *Monitor) Up() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

// Start begins the probe loop. Starting an already-running monitor disarms
// the previous loop before arming a new one, so probes are never duplicated.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		close(m.stop)
	}
	m.stop = make(chan struct{})
	m.running = true
	stop := m.stop
	m.mu.Unlock()

	go m.loop(stop)
	log.Printf("[Heartbeat] Monitor started (interval=%s)", m.interval)
}

// Stop disarms the timer. An in-flight probe is not aborted; its result is
// still applied. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	log.Println("[Heartbeat] Monitor stopped")
}

func (m *Monitor) loop(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Each tick probes in its own goroutine so a slow probe
			// never delays the next tick.
			go m.check()
		}
	}
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	err := m.probe.Ping(ctx)
	m.setUp(err == nil)
}

// setUp applies a probe result, publishing only on transition.
func (m *Monitor) setUp(up bool) {
	m.mu.Lock()
	changed := m.up != up
	m.up = up
	m.mu.Unlock()

	if !changed {
		return
	}

	if up {
		log.Println("[Heartbeat] Backend is up")
		m.publish(events.APIUp, events.SeverityInfo, "Backend API reachable")
	} else {
		log.Println("[Heartbeat] Backend is down")
		m.publish(events.APIDown, events.SeverityWarning, "Backend API unreachable")
	}
}

func (m *Monitor) publish(t events.EventType, sev events.Severity, msg string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: t, Severity: sev, Message: msg})
}
