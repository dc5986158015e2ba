// Package probe implements deterministic micro-probe hygiene: a TTL per
// probe, a refractory period between probe starts, and a per-action
// quota. The engine is clock-driven — no sleeps — callers must invoke
// Cycle once per Control/Predict loop to evict expired probes.
package probe

import (
	"sync"

	"github.com/bandedctl/harness/internal/clock"
)

// Defaults mirror the source's hygiene constants.
const (
	DefaultTTLMs           = 300
	DefaultRefractoryMs    = 150
	DefaultMaxBeforeAction = 2
)

// RejectCounter is the minimal metrics seam RequestProbe rejections are
// reported through; *metrics.Registry satisfies it via IncRejected.
type RejectCounter interface {
	IncRejected(cause string)
}

// Active is a running probe record.
type Active struct {
	Name    string
	TStart  float64
	TExpire float64
	Params  map[string]float64
}

// Engine enforces TTL + refractory + per-action quota admission.
type Engine struct {
	mu sync.Mutex

	clk clock.Clock

	ttl             float64 // seconds
	refractory      float64 // seconds
	maxBeforeAction int

	active           []Active
	lastStartT       *float64
	countSinceAction int

	reject RejectCounter
}

// Config holds Engine tuning parameters in milliseconds, matching the
// config file's probes section.
type Config struct {
	TTLMs           int
	RefractoryMs    int
	MaxBeforeAction int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TTLMs:           DefaultTTLMs,
		RefractoryMs:    DefaultRefractoryMs,
		MaxBeforeAction: DefaultMaxBeforeAction,
	}
}

// New returns an Engine reading time from clk with the given config.
func New(clk clock.Clock, cfg Config) *Engine {
	return &Engine{
		clk:             clk,
		ttl:             float64(cfg.TTLMs) / 1000.0,
		refractory:      float64(cfg.RefractoryMs) / 1000.0,
		maxBeforeAction: cfg.MaxBeforeAction,
	}
}

// SetRejectCounter wires a rejection counter; rc may be nil to disable
// reporting. Not required for correct admission behavior.
func (e *Engine) SetRejectCounter(rc RejectCounter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reject = rc
}

// ActiveProbes returns a snapshot of currently active probes.
func (e *Engine) ActiveProbes() []Active {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Active, len(e.active))
	copy(out, e.active)
	return out
}

// CountSinceAction returns the number of probes admitted since the last
// CompleteAction call.
func (e *Engine) CountSinceAction() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countSinceAction
}

// Cycle evicts any probe with t_expire <= now. Called once per loop.
func (e *Engine) Cycle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clk.Now()
	kept := e.active[:0]
	for _, p := range e.active {
		if p.TExpire > now {
			kept = append(kept, p)
		}
	}
	e.active = kept
}

// canStart evaluates the admission rules in order: quota, then
// refractory. Caller must hold e.mu. cause is only meaningful when ok is
// false.
func (e *Engine) canStart(now float64) (ok bool, cause string) {
	if e.countSinceAction >= e.maxBeforeAction {
		return false, "quota"
	}
	if e.lastStartT != nil && now-*e.lastStartT < e.refractory {
		return false, "refractory"
	}
	return true, ""
}

// RequestProbe attempts to start a probe named name with the given
// params. Returns whether it started, evaluating admission rules in
// order: quota check, then refractory check, else admit. A rejection is
// reported to the wired RejectCounter, if any, by cause.
func (e *Engine) RequestProbe(name string, params map[string]float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	if ok, cause := e.canStart(now); !ok {
		if e.reject != nil {
			e.reject.IncRejected(cause)
		}
		return false
	}

	if params == nil {
		params = map[string]float64{}
	}
	e.active = append(e.active, Active{
		Name:    name,
		TStart:  now,
		TExpire: now + e.ttl,
		Params:  params,
	})
	e.lastStartT = &now
	e.countSinceAction++
	return true
}

// CompleteAction signals that the guarded downstream action has begun,
// resetting the probe count toward the next action.
func (e *Engine) CompleteAction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.countSinceAction = 0
}
