package harness

import (
	"testing"

	"go.uber.org/zap"

	"github.com/bandedctl/harness/internal/adapter"
	"github.com/bandedctl/harness/internal/clock"
	"github.com/bandedctl/harness/internal/environment"
	"github.com/bandedctl/harness/internal/ringbuf"
	"github.com/bandedctl/harness/internal/riskgate"
	"github.com/bandedctl/harness/internal/shield"
)

func newTestHarness(cfg Config, caps shield.SafetyCaps, risk *riskgate.RiskGate, dt float64) (*Harness, *clock.Fake) {
	clk := clock.NewFake(0)
	env := environment.NewNullEnv(dt, 1)
	env.Reset(0)
	ring := ringbuf.New(0)
	h := New(clk, env, caps, risk, ring, zap.NewNop(), nil, nil, cfg, "cfgabc123456", "physabc123456", 7)
	return h, clk
}

func TestSmokeLiftScenario(t *testing.T) {
	dt := 1.0 / 50.0
	caps := shield.SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6}
	risk := riskgate.New(1.0, riskgate.ConstantUncertainty(0)) // risk gate never abstains here
	// NullEnv's episode-termination threshold (z >= 0.08) is a separate
	// concern from the lift-success detector's threshold; at v_cap=0.05
	// and dt=0.02 (control_hz=50) z only reaches 0.08 after 1.6s, well
	// past the 400ms acceptance window, so the success threshold here is
	// its own, smaller z0+dz rather than a reuse of the env's 0.08.
	cfg := Config{
		Baseline: shield.Command{VCap: 0.05},
		Fallback: shield.Command{VCap: 0},
		Z0:       0,
		DZ:       0.01,
	}
	h, clk := newTestHarness(cfg, caps, risk, dt)

	for i := 0; i < 100; i++ {
		h.Tick()
		clk.Advance(dt)
	}

	ok, ttrMs, found := h.DetectSuccess(dt)
	if !ok || !found {
		t.Fatalf("expected smoke-lift success, got ok=%v found=%v", ok, found)
	}
	if ttrMs <= 0 || ttrMs > 400 {
		t.Fatalf("expected 0 < ttr_ms <= 400, got %d", ttrMs)
	}
	if h.Counters().Veto != 0 {
		t.Fatalf("expected no vetoes in the smoke-lift scenario, got %d", h.Counters().Veto)
	}
}

func TestShieldVetoScenario(t *testing.T) {
	dt := 1.0 / 50.0
	caps := shield.SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6}
	risk := riskgate.New(1.0, riskgate.ConstantUncertainty(0))
	cfg := Config{
		Baseline: shield.Command{VCap: 0.40, Fn: 6, Tau: 2},
		Fallback: shield.Command{VCap: 0.20, Fn: 6, Tau: 2},
	}
	h, _ := newTestHarness(cfg, caps, risk, dt)

	h.Tick()

	if h.lastFinalCmd != cfg.Fallback {
		t.Fatalf("expected final_cmd == fallback on veto, got %+v", h.lastFinalCmd)
	}
	if h.Counters().Veto != 1 {
		t.Fatalf("expected exactly one veto, got %d", h.Counters().Veto)
	}
}

func TestRiskAbstainScenario(t *testing.T) {
	dt := 1.0 / 50.0
	caps := shield.SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6}
	risk := riskgate.New(0.25, riskgate.ConstantUncertainty(0.5))
	cfg := Config{
		Baseline: shield.Command{VCap: 0.125},
		Fallback: shield.Command{VCap: 0},
	}
	h, _ := newTestHarness(cfg, caps, risk, dt)

	h.Tick()

	if h.Counters().Abstain != 1 {
		t.Fatalf("expected exactly one abstain, got %d", h.Counters().Abstain)
	}
	if h.lastFinalCmd.VCap != 0 {
		t.Fatalf("expected abstain to collapse to zero-motion, got v_cap=%v", h.lastFinalCmd.VCap)
	}
}

func TestAdapterDeltaOverridesBaselineVCap(t *testing.T) {
	dt := 1.0 / 50.0
	caps := shield.SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6}
	risk := riskgate.New(1.0, riskgate.ConstantUncertainty(0))
	cfg := Config{
		Baseline: shield.Command{VCap: 0.05},
		Fallback: shield.Command{VCap: 0},
	}
	h, _ := newTestHarness(cfg, caps, risk, dt)

	h.Adapter().Apply(adapter.Delta{TTLMs: 300, Source: adapter.SourceManual, Payload: map[string]float64{"v_cap": 0.10}})
	h.Tick()

	if h.lastFinalCmd.VCap != 0.10 {
		t.Fatalf("expected adapter delta to override baseline v_cap, got %v", h.lastFinalCmd.VCap)
	}
}
