// Package adapter implements the TTL-bounded, single-slot advisory
// delta manager. An AdapterDelta is published by an advisory band
// (Predict, a probe, or a manual override) and picked up opportunistically
// by the Control tick; it is guaranteed to roll back within at most one
// Control cycle of its expiry.
package adapter

import (
	"sync"

	"github.com/bandedctl/harness/internal/clock"
)

// Source identifies which advisory band produced a delta.
type Source int

const (
	SourcePredict Source = iota
	SourceProbe
	SourceManual
)

func (s Source) String() string {
	switch s {
	case SourcePredict:
		return "predict"
	case SourceProbe:
		return "probe"
	case SourceManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Delta is a time-bounded set of control adjustments. Payload carries
// bounded control deltas (e.g. gain deltas, a v_cap override, a
// mu-compensation term) as an open mapping — the Adapter Manager never
// interprets Payload, only its TTL.
type Delta struct {
	TTLMs   uint32
	Source  Source
	Payload map[string]float64
}

// Manager owns at most one active Delta (M0 single-slot policy).
// Applying a new delta replaces the old one immediately; there is no
// fairness or queue. Mutations are guarded by a short critical section —
// no lock is held across component boundaries.
type Manager struct {
	mu sync.Mutex

	clk clock.Clock

	active            bool
	delta             Delta
	expiry            float64
	rollbackRequested bool
}

// New returns an empty Manager reading time from clk.
func New(clk clock.Clock) *Manager {
	return &Manager{clk: clk}
}

// Apply installs delta as the single active adapter, setting
// expiry = now + ttl_ms/1000 and clearing any pending rollback flag.
func (m *Manager) Apply(delta Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = true
	m.delta = delta
	m.expiry = m.clk.Now() + float64(delta.TTLMs)/1000.0
	m.rollbackRequested = false
}

// Cycle is called once per Control tick. If the active delta has expired
// (now >= expiry), it is dropped and rollback_requested is set for
// exactly this one cycle; any later Cycle call clears it again. If
// inactive, rollback_requested is kept clear.
func (m *Manager) Cycle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		m.rollbackRequested = false
		return
	}

	now := m.clk.Now()
	if now >= m.expiry {
		m.active = false
		m.delta = Delta{}
		m.rollbackRequested = true
		return
	}
	m.rollbackRequested = false
}

// Active returns the current delta and whether one is active.
func (m *Manager) Active() (Delta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delta, m.active
}

// RollbackRequested reports whether the most recent Cycle call just
// expired the active delta. True for exactly one Cycle call following an
// expiry.
func (m *Manager) RollbackRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbackRequested
}
