// Package shield implements the last-writer safety gate executed
// immediately before actuator write. Policy (M0): reject (veto) any
// command that violates a hard cap; otherwise accept unchanged.
//
// Extension hooks for a future iteration: clamp-to-cap (Clamp below),
// jerk/acceleration checks, tighten-only v_cap, force-rate limits.
package shield

import "fmt"

// SafetyCaps is the immutable record of hard ceilings enforced by the
// Shield. Built once at startup from config and never mutated.
type SafetyCaps struct {
	VMps  float64 // TCP velocity cap
	AMps2 float64 // TCP acceleration cap (not enforced in M0)
	FnN   float64 // Normal force cap
	TauNm float64 // Per-joint torque cap (simplified M0: scalar compare)
}

// Command is the small record of actuator targets recognized by the
// Shield: v_cap (m/s), fn (N), tau (N·m). Missing fields default to zero.
// Commands are values — no component retains a reference to a caller's
// command, and there is no aliasing between baseline, proposed, and final.
type Command struct {
	VCap float64
	Fn   float64
	Tau  float64
}

// Decision is the outcome of one Evaluate call. Invariant: if !Accepted,
// FinalCmd == the fallback passed in; if Accepted, FinalCmd == the
// proposed command (veto path) — Evaluate never produces a clamped
// variant, only Clamp does.
type Decision struct {
	Accepted bool
	Reason   string // empty iff Accepted
	FinalCmd Command
}

// Shield is a pure evaluator: it decides whether a proposed command is
// safe under caps. The Control band calls Evaluate as the last step of
// every cycle; no component writes to actuators afterward.
type Shield struct {
	caps SafetyCaps
}

// New returns a Shield enforcing the given caps.
func New(caps SafetyCaps) *Shield {
	return &Shield{caps: caps}
}

// Caps returns the caps this Shield enforces.
func (s *Shield) Caps() SafetyCaps {
	return s.caps
}

// Evaluate checks proposed against caps in a fixed order — v_cap, then
// fn, then tau — so that the reason string is stable and debuggable.
// Acceleration and jerk checks are explicitly deferred (documented hook,
// see package doc).
func (s *Shield) Evaluate(proposed, fallback Command) Decision {
	if proposed.VCap > s.caps.VMps {
		return Decision{
			Accepted: false,
			Reason:   fmt.Sprintf("v_cap>%g", s.caps.VMps),
			FinalCmd: fallback,
		}
	}
	if proposed.Fn > s.caps.FnN {
		return Decision{
			Accepted: false,
			Reason:   fmt.Sprintf("fn>%g", s.caps.FnN),
			FinalCmd: fallback,
		}
	}
	if abs(proposed.Tau) > s.caps.TauNm {
		return Decision{
			Accepted: false,
			Reason:   fmt.Sprintf("|tau|>%g", s.caps.TauNm),
			FinalCmd: fallback,
		}
	}
	return Decision{Accepted: true, FinalCmd: proposed}
}

// ClampInfo records which fields Clamp saturated and their pre-clamp
// values.
type ClampInfo struct {
	VCapClampedFrom *float64
	FnClampedFrom   *float64
	TauClampedFrom  *float64
}

// Clamp returns a command with each offending field saturated to its cap
// — velocity and force to the positive cap, torque to [-cap, +cap] — and
// a record of what was clamped. Not on the default write path in M0; a
// hook for a future clamp-over-veto policy.
func (s *Shield) Clamp(proposed Command) (Command, ClampInfo) {
	out := proposed
	var info ClampInfo

	if out.VCap > s.caps.VMps {
		from := out.VCap
		info.VCapClampedFrom = &from
		out.VCap = s.caps.VMps
	}
	if out.Fn > s.caps.FnN {
		from := out.Fn
		info.FnClampedFrom = &from
		out.Fn = s.caps.FnN
	}
	if abs(out.Tau) > s.caps.TauNm {
		from := out.Tau
		info.TauClampedFrom = &from
		out.Tau = clampSigned(out.Tau, s.caps.TauNm)
	}
	return out, info
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampSigned(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	if v < -cap {
		return -cap
	}
	return v
}
