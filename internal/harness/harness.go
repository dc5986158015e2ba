// Package harness wires C1-C12 into the per-tick pipeline the spec
// documents as environment.step -> sample -> risk -> shield ->
// actuator-write -> adapter.cycle -> event-pack-on-trigger, and exposes
// the Control band's state for the cmd/bandctl "run" summary banner.
package harness

import (
	"go.uber.org/zap"

	"github.com/bandedctl/harness/internal/adapter"
	"github.com/bandedctl/harness/internal/clock"
	"github.com/bandedctl/harness/internal/environment"
	"github.com/bandedctl/harness/internal/eventpack"
	"github.com/bandedctl/harness/internal/metrics"
	"github.com/bandedctl/harness/internal/probe"
	"github.com/bandedctl/harness/internal/ringbuf"
	"github.com/bandedctl/harness/internal/riskgate"
	"github.com/bandedctl/harness/internal/shield"
	"github.com/bandedctl/harness/internal/storage"
	"github.com/bandedctl/harness/internal/success"
)

// Config bundles everything a Harness needs beyond the parsed
// SystemConfig fields already folded into the component constructors —
// the baseline command an advisory band may override, and the fallback
// the Shield falls back to on veto.
type Config struct {
	Baseline shield.Command
	Fallback shield.Command
	Z0       float64 // reference height for the success detector
	DZ       float64 // required lift above Z0
}

// Harness owns one instance of every Control-tick component and runs
// the fixed per-tick pipeline.
type Harness struct {
	clk    clock.Clock
	env    environment.Environment
	log    *zap.Logger
	reg    *metrics.Registry
	ledger *storage.Ledger

	caps    shield.SafetyCaps
	shield  *shield.Shield
	risk    *riskgate.RiskGate
	adapter *adapter.Manager
	probes  *probe.Engine
	ring    *ringbuf.Buffer
	asm     *eventpack.Assembler

	cfg Config

	lastFinalCmd shield.Command
	counters     eventpack.Counters
	loopStats    *metrics.LoopStats
	poses        []success.Pose
	missedCycles int

	configHash  string
	physicsHash string
	simSeed     int64
}

// New wires one Harness from its already-constructed components.
func New(
	clk clock.Clock,
	env environment.Environment,
	caps shield.SafetyCaps,
	risk *riskgate.RiskGate,
	ring *ringbuf.Buffer,
	log *zap.Logger,
	reg *metrics.Registry,
	ledger *storage.Ledger,
	cfg Config,
	configHash, physicsHash string,
	simSeed int64,
) *Harness {
	if log == nil {
		log = zap.NewNop()
	}
	mgr := adapter.New(clk)
	asm := eventpack.New(ring, func() map[string]any { return nil })
	probes := probe.New(clk, probe.DefaultConfig())
	if reg != nil {
		probes.SetRejectCounter(reg)
	}

	return &Harness{
		clk:          clk,
		env:          env,
		log:          log,
		reg:          reg,
		ledger:       ledger,
		caps:         caps,
		shield:       shield.New(caps),
		risk:         risk,
		adapter:      mgr,
		probes:       probes,
		ring:         ring,
		asm:          asm,
		cfg:          cfg,
		lastFinalCmd: cfg.Fallback,
		loopStats:    metrics.NewLoopStats(256),
		configHash:   configHash,
		physicsHash:  physicsHash,
		simSeed:      simSeed,
	}
}

// Adapter exposes the Adapter Manager for advisory bands to publish
// deltas into.
func (h *Harness) Adapter() *adapter.Manager { return h.adapter }

// Probes exposes the Probe Engine for advisory bands to request probes
// against.
func (h *Harness) Probes() *probe.Engine { return h.probes }

// Counters returns a snapshot of the abstain/veto/ttl_expired counters
// accumulated so far.
func (h *Harness) Counters() eventpack.Counters { return h.counters }

// Poses returns the recorded end-effector Z trajectory, for success/TTR
// evaluation after a run completes.
func (h *Harness) Poses() []success.Pose { return h.poses }

// Tick runs exactly one Control cycle: environment.step, sample, risk,
// shield, (conceptual) actuator-write, adapter.cycle, and an
// event-pack-on-trigger when the cycle produced a veto, an abstain, or
// an adapter rollback.
func (h *Harness) Tick() environment.StepResult {
	t := h.clk.Now()
	start := t

	res := h.env.Step(h.lastFinalCmd)
	h.poses = append(h.poses, success.Pose{X: res.Obs.PoseEE[0], Y: res.Obs.PoseEE[1], Z: res.Obs.PoseEE[2]})
	h.ring.Add(t, map[string]float64{
		"x": res.Obs.PoseEE[0], "y": res.Obs.PoseEE[1], "z": res.Obs.PoseEE[2],
		"fn": res.Obs.Fn, "ft": res.Obs.Ft, "contact": float64(res.Obs.ContactFlag),
	})

	proposed := h.cfg.Baseline
	if d, ok := h.adapter.Active(); ok {
		proposed = applyDelta(proposed, d)
	}

	riskDec := h.risk.Decide(proposed, h.caps)
	cmdForShield := proposed
	abstained := riskDec.Decision == riskgate.Abstain
	if abstained {
		cmdForShield = riskgate.ZeroMotion()
		h.counters.Abstain++
		if h.reg != nil {
			h.reg.RiskAbstainsTotal.Inc()
		}
	}

	decision := h.shield.Evaluate(cmdForShield, h.cfg.Fallback)
	if !decision.Accepted {
		h.counters.Veto++
		if h.reg != nil {
			h.reg.ShieldVetoesTotal.WithLabelValues(decision.Reason).Inc()
		}
	}
	h.lastFinalCmd = decision.FinalCmd

	h.probes.Cycle()
	h.adapter.Cycle()
	rolledBack := h.adapter.RollbackRequested()
	if rolledBack {
		h.counters.TTLExpired++
		if h.reg != nil {
			h.reg.AdapterTTLExpiredTotal.Inc()
		}
	}

	h.loopStats.Record(h.clk.Now() - start)
	if h.reg != nil {
		h.reg.ControlTickSeconds.Observe(h.clk.Now() - start)
	}

	if h.ledger != nil {
		if err := h.ledger.AppendDecision(storage.DecisionRecord{
			T: t, Accepted: decision.Accepted, Reason: decision.Reason,
			VCap: decision.FinalCmd.VCap, Fn: decision.FinalCmd.Fn, Tau: decision.FinalCmd.Tau,
			Risk: riskDec.Risk, Abstained: abstained,
		}); err != nil {
			h.log.Warn("failed to append decision to ledger", zap.Error(err))
		}
	}

	if !decision.Accepted || abstained || rolledBack {
		h.emitEventPack(t, decision, riskDec)
	}

	return res
}

func (h *Harness) emitEventPack(t float64, decision shield.Decision, riskDec riskgate.RiskDecision) {
	var discrepancies []string
	if !decision.Accepted {
		discrepancies = append(discrepancies, "veto:"+decision.Reason)
	}
	if riskDec.Decision == riskgate.Abstain {
		discrepancies = append(discrepancies, "abstain")
	}

	p50, p95, p99 := h.loopStats.Percentiles()
	pack := h.asm.Assemble(t, eventpack.Options{
		Discrepancies: discrepancies,
		Counters:      &h.counters,
		Risk:          &eventpack.Risk{U: riskDec.U, H: riskDec.H, R: riskDec.Risk},
		// No environment in this domain yet reports real contact
		// sensing (the physics simulator itself is out of scope), so
		// every EventPack is tagged "placeholder" rather than "measured".
		SignalsQuality: &eventpack.SignalsQuality{Contacts: "placeholder"},
	})
	pack.Meta["config_hash"] = h.configHash
	pack.Meta["physics_hash"] = h.physicsHash
	pack.Meta["sim_seed"] = h.simSeed
	pack.Meta["loop_stats"] = map[string]float64{"p50": p50, "p95": p95, "p99": p99}
	pack.Meta["missed_cycles"] = h.missedCycles

	if h.ledger != nil {
		if err := h.ledger.AppendEventPack(storage.EventPackRecord{
			T0: pack.T0, T1: pack.T1, Meta: pack.Meta, Discrepancies: pack.Discrepancies,
		}); err != nil {
			h.log.Warn("failed to append event pack to ledger", zap.Error(err))
		}
	}
}

// applyDelta overrides cmd.VCap with the delta's "v_cap" payload entry
// when present; the Adapter Manager never interprets Payload beyond its
// TTL, so interpretation (which keys map to which Command fields) lives
// here, in the one place that turns a Delta into a proposed Command.
func applyDelta(cmd shield.Command, d adapter.Delta) shield.Command {
	out := cmd
	if v, ok := d.Payload["v_cap"]; ok {
		out.VCap = v
	}
	if v, ok := d.Payload["fn"]; ok {
		out.Fn = v
	}
	if v, ok := d.Payload["tau"]; ok {
		out.Tau = v
	}
	return out
}

// DetectSuccess runs the success/TTR detector over the recorded pose
// trajectory at the configured dt.
func (h *Harness) DetectSuccess(dt float64) (lifted bool, ttrMs int, hasTTR bool) {
	lifted = success.DetectLiftSuccess(h.poses, h.cfg.Z0, h.cfg.DZ)
	ttrMs, hasTTR = success.TTRMs(h.poses, dt, h.cfg.Z0, h.cfg.DZ)
	return lifted, ttrMs, hasTTR
}
