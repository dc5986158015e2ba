// Package riskgate implements the pre-Shield admission controller:
// deterministic risk = uncertainty × hazard, ABSTAIN when risk meets or
// exceeds the configured threshold. Runs before the Shield on every
// Control tick; ABSTAIN collapses the command to zero-motion, which the
// Shield then trivially accepts. ABSTAIN is an operational soft-stop,
// distinct from a Shield veto, and is counted separately.
package riskgate

import "github.com/bandedctl/harness/internal/shield"

// Decision is ACCEPT or ABSTAIN.
type Decision int

const (
	Accept Decision = iota
	Abstain
)

func (d Decision) String() string {
	if d == Abstain {
		return "ABSTAIN"
	}
	return "ACCEPT"
}

// RiskDecision is the value returned by Decide. Invariant:
// Decision == Abstain iff Risk >= tau.
type RiskDecision struct {
	Decision Decision
	Risk     float64 // r = U * H
	U        float64 // uncertainty
	H        float64 // hazard
}

// UncertaintySource supplies U for a given command (no observation is
// passed in). M0
// uses a config-provided constant stub (ConstantUncertainty below); the
// interface exists so a future prediction surrogate can swap in a
// learned uncertainty estimate without changing RiskGate.
type UncertaintySource interface {
	Uncertainty(cmd shield.Command) float64
}

// ConstantUncertainty is the M0 uncertainty source: a fixed scalar from
// config, ignoring the command entirely.
type ConstantUncertainty float64

func (c ConstantUncertainty) Uncertainty(shield.Command) float64 {
	return float64(c)
}

// RiskGate evaluates uncertainty × hazard against a threshold tau before
// the Shield runs.
type RiskGate struct {
	tau         float64
	uncertainty UncertaintySource
}

// New returns a RiskGate with threshold tau and the given uncertainty
// source.
func New(tau float64, uncertainty UncertaintySource) *RiskGate {
	return &RiskGate{tau: tau, uncertainty: uncertainty}
}

// Tau reports the configured abstain threshold.
func (g *RiskGate) Tau() float64 {
	return g.tau
}

// Decide computes U (from the uncertainty source), H (from ComputeHazard),
// r = U*H, and returns ABSTAIN iff r >= tau (exact equality abstains).
func (g *RiskGate) Decide(cmd shield.Command, caps shield.SafetyCaps) RiskDecision {
	u := g.uncertainty.Uncertainty(cmd)
	h := ComputeHazard(cmd, caps)
	r := u * h

	dec := Accept
	if r >= g.tau {
		dec = Abstain
	}
	return RiskDecision{Decision: dec, Risk: r, U: u, H: h}
}

// ComputeHazard is the maximum of normalized ratios of commanded
// quantities to caps. M0 implements only the velocity term; additional
// terms are explicitly pluggable (e.g. force or torque ratios) and can be
// added here without changing RiskGate's contract.
func ComputeHazard(cmd shield.Command, caps shield.SafetyCaps) float64 {
	h := 0.0
	if caps.VMps > 0 {
		if v := cmd.VCap / caps.VMps; v > h {
			h = v
		}
	}
	return h
}

// ZeroMotion is the command an ABSTAIN decision collapses to: zero
// commanded velocity, which the Shield then trivially accepts.
func ZeroMotion() shield.Command {
	return shield.Command{VCap: 0}
}
