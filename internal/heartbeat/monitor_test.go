package heartbeat

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/otterable/minifitna/internal/events"
)

// scriptedProbe returns the scripted results in order, then repeats the last.
type scriptedProbe struct {
	results []error
	idx     atomic.Int32
}

func (p *scriptedProbe) Ping(ctx context.Context) error {
	i := int(p.idx.Add(1)) - 1
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	return p.results[i]
}

func TestTransitionPublishedExactlyOnce(t *testing.T) {
	errDown := fmt.Errorf("connection refused")
	probe := &scriptedProbe{results: []error{errDown, errDown, errDown, nil}}
	bus := events.NewBus()

	var ups, downs atomic.Int32
	bus.Subscribe(func(e events.Event) { ups.Add(1) }, events.APIUp)
	bus.Subscribe(func(e events.Event) { downs.Add(1) }, events.APIDown)

	m := NewMonitor(probe, bus, time.Hour)

	// Drive checks directly instead of waiting on the ticker.
	for i := 0; i < 4; i++ {
		m.check()
	}

	if m.Up() != true {
		t.Error("expected status up after a successful probe")
	}
	if got := ups.Load(); got != 1 {
		t.Errorf("expected exactly 1 up transition, got %d", got)
	}
	// Status starts down, so three failed probes publish nothing.
	if got := downs.Load(); got != 0 {
		t.Errorf("expected 0 down transitions, got %d", got)
	}
}

func TestDownTransitionAfterUp(t *testing.T) {
	probe := &scriptedProbe{results: []error{nil, nil, fmt.Errorf("timeout"), fmt.Errorf("timeout")}}
	bus := events.NewBus()

	var downs atomic.Int32
	bus.Subscribe(func(e events.Event) { downs.Add(1) }, events.APIDown)

	m := NewMonitor(probe, bus, time.Hour)
	for i := 0; i < 4; i++ {
		m.check()
	}

	if m.Up() {
		t.Error("expected status down after failed probes")
	}
	if got := downs.Load(); got != 1 {
		t.Errorf("expected exactly 1 down transition, got %d", got)
	}
}

func TestStartsDown(t *testing.T) {
	m := NewMonitor(&scriptedProbe{results: []error{nil}}, nil, time.Hour)
	if m.Up() {
		t.Error("status must be down before the first probe")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	probe := &scriptedProbe{results: []error{nil}}
	m := NewMonitor(probe, nil, 10*time.Millisecond)

	m.Start()
	m.Start() // must disarm the first loop, not duplicate probes
	m.Stop()
	m.Stop() // no-op

	// Both loops have been told to stop; probe count must settle.
	time.Sleep(30 * time.Millisecond)
	settled := probe.idx.Load()
	time.Sleep(30 * time.Millisecond)
	if got := probe.idx.Load(); got != settled {
		t.Errorf("probes still running after Stop: %d -> %d", settled, got)
	}
}
