// Package environment defines the capability set the harness drives
// every Control tick — reset/step/dt/substeps — and its two variants:
// a deterministic synthetic Null environment, and an engine-backed
// loader with fail_fast semantics.
package environment

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bandedctl/harness/internal/harnesserr"
	"github.com/bandedctl/harness/internal/shield"
)

// Obs is the open observation mapping every Environment.Step/Reset
// returns. Required fields: PoseEE, Fn >= 0, Ft >= 0, ContactFlag ∈ {0,1}.
type Obs struct {
	PoseEE      [3]float64
	Fn          float64
	Ft          float64
	ContactFlag int
}

// StepResult is the (obs, done, info) tuple returned by Step.
type StepResult struct {
	Obs  Obs
	Done bool
	Info map[string]any
}

// Environment is the capability set backing the Control band's
// environment.step call each tick.
type Environment interface {
	Reset(seed int64) Obs
	Step(cmd shield.Command) StepResult
	Dt() float64
	Substeps() int
}

// NullEnv is the deterministic synthetic environment: z integrates
// clamp(cmd.v_cap, 0, 0.25) * dt each step; done when z >= 0.08.
type NullEnv struct {
	dt       float64
	substeps int
	z        float64
}

// NewNullEnv returns a NullEnv with the given step size and substep
// count (both purely descriptive for this backend — it has no physics
// beyond the single z-integration rule).
func NewNullEnv(dt float64, substeps int) *NullEnv {
	return &NullEnv{dt: dt, substeps: substeps}
}

func (n *NullEnv) Reset(seed int64) Obs {
	n.z = 0
	return Obs{PoseEE: [3]float64{0, 0, n.z}}
}

func (n *NullEnv) Step(cmd shield.Command) StepResult {
	v := clamp(cmd.VCap, 0, 0.25)
	n.z += v * n.dt
	obs := Obs{PoseEE: [3]float64{0, 0, n.z}}
	return StepResult{Obs: obs, Done: n.z >= 0.08, Info: map[string]any{}}
}

func (n *NullEnv) Dt() float64 {
	return n.dt
}

func (n *NullEnv) Substeps() int {
	return n.substeps
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EngineBackend names an engine-backed Environment. The leading
// "mujoco-" convention matches the config loader's engine-tag validation
// (config.SystemConfig's Engine field).
type EngineBackend struct {
	name       string
	assetsPath string
	dt         float64
	substeps   int
}

// NewEngineBackend constructs a backend descriptor; Load performs the
// actual (simulated-for-this-harness) asset load.
func NewEngineBackend(name, assetsPath string, dt float64, substeps int) *EngineBackend {
	return &EngineBackend{name: name, assetsPath: assetsPath, dt: dt, substeps: substeps}
}

// assetLoader abstracts the filesystem check so tests can substitute a
// fake without touching disk. Load calls this to decide whether assets
// are present before pretending to hand control to the physics engine —
// which is explicitly out of scope (spec: "the physics simulator itself").
type assetLoader func(path string) bool

var defaultAssetLoader assetLoader = func(path string) bool {
	return path != ""
}

// Load resolves backend into a runnable Environment. Under fail_fast =
// true, a missing engine library or missing asset directory propagates
// as *harnesserr.EnvLoadError. Under fail_fast = false, load failure is
// logged at warning level and the Null variant is substituted instead.
func Load(backend, assetsPath string, dt float64, substeps int, failFast bool, log *zap.Logger) (Environment, error) {
	if backend == "NullEnv" || backend == "" {
		return NewNullEnv(dt, substeps), nil
	}

	if !strings.HasPrefix(backend, "mujoco-") && !strings.HasPrefix(backend, "DmControl") {
		err := &harnesserr.EnvLoadError{Backend: backend, Reason: "unrecognized engine tag"}
		if failFast {
			return nil, err
		}
		log.Warn("unrecognized environment backend, substituting NullEnv",
			zap.String("backend", backend), zap.Error(err))
		return NewNullEnv(dt, substeps), nil
	}

	if !defaultAssetLoader(assetsPath) {
		err := &harnesserr.EnvLoadError{Backend: backend, Reason: fmt.Sprintf("asset not found: %s", assetsPath)}
		if failFast {
			return nil, err
		}
		log.Warn("environment asset load failed, substituting NullEnv",
			zap.String("backend", backend), zap.Error(err))
		return NewNullEnv(dt, substeps), nil
	}

	// The physics simulator itself is out of scope; an engine-backed
	// Environment here is a thin descriptor the harness can still drive
	// through the same Reset/Step contract once a real simulator is
	// wired behind it.
	return NewEngineBackend(backend, assetsPath, dt, substeps), nil
}

func (e *EngineBackend) Reset(seed int64) Obs {
	return Obs{}
}

func (e *EngineBackend) Step(cmd shield.Command) StepResult {
	return StepResult{Obs: Obs{}, Done: false, Info: map[string]any{}}
}

func (e *EngineBackend) Dt() float64 {
	return e.dt
}

func (e *EngineBackend) Substeps() int {
	return e.substeps
}
