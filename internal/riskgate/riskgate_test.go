package riskgate

import (
	"testing"

	"github.com/bandedctl/harness/internal/shield"
)

func TestDecideAbstainAtBoundary(t *testing.T) {
	caps := shield.SafetyCaps{VMps: 0.25}
	g := New(0.25, ConstantUncertainty(0.5))

	d := g.Decide(shield.Command{VCap: 0.125}, caps)
	if d.H != 0.5 {
		t.Fatalf("H = %v, want 0.5", d.H)
	}
	if d.Risk != 0.25 {
		t.Fatalf("risk = %v, want 0.25", d.Risk)
	}
	if d.Decision != Abstain {
		t.Fatalf("expected ABSTAIN at exact equality, got %v", d.Decision)
	}
}

func TestDecideAcceptBelowThreshold(t *testing.T) {
	caps := shield.SafetyCaps{VMps: 0.25}
	g := New(0.25, ConstantUncertainty(0.2))

	d := g.Decide(shield.Command{VCap: 0.125}, caps)
	if d.Decision != Accept {
		t.Fatalf("expected ACCEPT, got %v (risk=%v)", d.Decision, d.Risk)
	}
}

func TestZeroMotionAlwaysAcceptedByShield(t *testing.T) {
	caps := shield.SafetyCaps{VMps: 0.25, FnN: 1, TauNm: 1}
	s := shield.New(caps)
	d := s.Evaluate(ZeroMotion(), shield.Command{VCap: 0.1})
	if !d.Accepted {
		t.Fatalf("zero-motion command should always be accepted, got reason %q", d.Reason)
	}
}

func TestComputeHazardClampsAtZero(t *testing.T) {
	caps := shield.SafetyCaps{VMps: 0.25}
	h := ComputeHazard(shield.Command{VCap: -1}, caps)
	if h != 0 {
		t.Fatalf("hazard = %v, want 0 for negative v_cap", h)
	}
}
