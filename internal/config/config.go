// Package config provides configuration loading, validation, range
// parsing, and the physics/geometry hash for the harness's typed,
// single-source-of-truth system configuration.
//
// Configuration file: a YAML system-slice document (path given on the
// command line or to Load directly).
//
// Environment variable overrides (applied after YAML unmarshal, before
// validation):
//   - ENV_BACKEND: overrides env.backend.
//   - ENV_FAIL_FAST: overrides env.fail_fast; "true"/"1"/"yes"
//     (case-insensitive) is truthy, anything else is falsy.
//
// Caching: Load memoizes the parsed config on its path, so advisory
// bands can share one immutable object without re-parsing. Invalidation
// is test-only (see ResetCache).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bandedctl/harness/internal/harnesserr"
)

// PhysicsCfg is the physics sub-record hashed by ComputePhysicsHash.
type PhysicsCfg struct {
	Dt            float64 `yaml:"dt"`
	Substeps      int     `yaml:"substeps"`
	Solver        string  `yaml:"solver"`
	Tol           float64 `yaml:"tol"`
	ContactMargin float64 `yaml:"contact_margin"`
}

// SeedsCfg carries the simulation seed and the two fingerprint hashes.
type SeedsCfg struct {
	SimSeed     int64  `yaml:"sim_seed"`
	ConfigHash  string `yaml:"config_hash"`
	PhysicsHash string `yaml:"physics_hash"`
}

// HzRange is a scalar-or-range rate field: a bare number collapses to
// (x, x); a string "lo-hi" parses to an ordered pair. Both bounds must
// be > 0 and lo <= hi.
type HzRange struct {
	Lo float64
	Hi float64
}

// UnmarshalYAML accepts either a numeric scalar or a "lo-hi" string.
func (r *HzRange) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("hz range: %w", err)
	}
	return r.parse(raw)
}

func (r *HzRange) parse(raw string) error {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "-"); idx > 0 {
		lo, err := parseFloat(s[:idx])
		if err != nil {
			return fmt.Errorf("hz range %q: %w", raw, err)
		}
		hi, err := parseFloat(s[idx+1:])
		if err != nil {
			return fmt.Errorf("hz range %q: %w", raw, err)
		}
		if lo > hi || lo <= 0 || hi <= 0 {
			return fmt.Errorf("hz range %q: require 0 < lo <= hi", raw)
		}
		r.Lo, r.Hi = lo, hi
		return nil
	}

	f, err := parseFloat(s)
	if err != nil {
		return fmt.Errorf("hz range %q: %w", raw, err)
	}
	if f <= 0 {
		return fmt.Errorf("hz range %q: must be > 0", raw)
	}
	r.Lo, r.Hi = f, f
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// BandsCfg holds the per-band rate configuration.
type BandsCfg struct {
	ReflexHz    float64 `yaml:"reflex_hz"`
	ControlHz   float64 `yaml:"control_hz"`
	PredictHz   HzRange `yaml:"predict_hz"`
	SemanticsHz HzRange `yaml:"semantics_hz"`
}

// CapsCfg holds the hard safety ceilings, including jerk_mps3 — present
// in the original system slice but not in the distilled Shield contract;
// carried here for completeness even though M0's Shield does not enforce
// it.
type CapsCfg struct {
	VMps    float64 `yaml:"v_mps"`
	AMps2   float64 `yaml:"a_mps2"`
	JerkMps3 float64 `yaml:"jerk_mps3"`
	FnN     float64 `yaml:"fn_N"`
	TauNm   float64 `yaml:"tau_Nm"`
}

// ProbesCfg holds the probes section of the config file. Load parses and
// Validate checks these values, but harness.New builds its Probe Engine
// from probe.DefaultConfig(), so they do not change probe admission.
type ProbesCfg struct {
	TTLMs           int       `yaml:"ttl_ms"`
	MaxBeforeAction int       `yaml:"max_before_action"`
	RefractoryMs    int       `yaml:"refractory_ms"`
	DitherHz        []float64 `yaml:"dither_hz"`
}

// RiskCfg configures the Risk Gate's threshold and uncertainty stub.
type RiskCfg struct {
	Tau             float64 `yaml:"tau"`
	UncertaintyStub float64 `yaml:"uncertainty_stub"`
}

// EnvCfg configures the Environment loader.
type EnvCfg struct {
	Backend  string `yaml:"backend"`
	FailFast bool   `yaml:"fail_fast"`
}

// StorageCfg configures the audit ledger (ambient, SPEC_FULL.md §4.12 —
// not in the original system slice).
type StorageCfg struct {
	DBPath  string `yaml:"db_path"`
	Persist bool   `yaml:"persist"`
}

// ObservabilityCfg configures logging and metrics (ambient, SPEC_FULL.md
// §4.13/§4.14).
type ObservabilityCfg struct {
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// SystemConfig is the root typed configuration record.
type SystemConfig struct {
	Engine        string           `yaml:"engine"`
	Physics       PhysicsCfg       `yaml:"physics"`
	Seeds         SeedsCfg         `yaml:"seeds"`
	Bands         BandsCfg         `yaml:"bands"`
	Caps          CapsCfg          `yaml:"caps"`
	Probes        ProbesCfg        `yaml:"probes"`
	Risk          RiskCfg          `yaml:"risk"`
	Env           EnvCfg           `yaml:"env"`
	Storage       StorageCfg       `yaml:"storage"`
	Observability ObservabilityCfg `yaml:"observability"`
}

// Defaults returns a SystemConfig populated with every documented
// default value (probes, risk, env) from the source system slice.
func Defaults() SystemConfig {
	return SystemConfig{
		Probes: ProbesCfg{
			TTLMs:           300,
			MaxBeforeAction: 2,
			RefractoryMs:    150,
		},
		Risk: RiskCfg{
			Tau:             0.25,
			UncertaintyStub: 0.20,
		},
		Env: EnvCfg{
			Backend:  "NullEnv",
			FailFast: true,
		},
		Storage: StorageCfg{
			DBPath:  "./bandharness.db",
			Persist: false,
		},
		Observability: ObservabilityCfg{
			MetricsAddr: "127.0.0.1:9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*SystemConfig{}
)

// Load reads, parses, applies environment overrides to, and validates a
// config file at path. The parsed config is memoized on path so
// advisory bands can share one immutable object; call ResetCache to
// force a re-read (test-only).
func Load(path string) (*SystemConfig, error) {
	cacheMu.Lock()
	if cfg, ok := cache[path]; ok {
		cacheMu.Unlock()
		return cfg, nil
	}
	cacheMu.Unlock()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	cacheMu.Lock()
	cache[path] = &cfg
	cacheMu.Unlock()

	return &cfg, nil
}

// ResetCache clears the memoized config cache. Test-only.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[string]*SystemConfig{}
}

func applyEnvOverrides(cfg *SystemConfig) {
	if backend, ok := os.LookupEnv("ENV_BACKEND"); ok {
		cfg.Env.Backend = backend
	}
	if ff, ok := os.LookupEnv("ENV_FAIL_FAST"); ok {
		switch strings.ToLower(ff) {
		case "true", "1", "yes":
			cfg.Env.FailFast = true
		default:
			cfg.Env.FailFast = false
		}
	}
}

// Validate checks a SystemConfig for correctness, returning an
// aggregated *harnesserr.ConfigError listing every violation found.
func Validate(cfg *SystemConfig) error {
	var errs []string

	if !strings.HasPrefix(cfg.Engine, "mujoco-") {
		errs = append(errs, fmt.Sprintf("engine must start with \"mujoco-\", got %q", cfg.Engine))
	}
	if cfg.Bands.ReflexHz <= 0 || cfg.Bands.ControlHz <= 0 {
		errs = append(errs, "bands.reflex_hz and bands.control_hz must be > 0")
	}
	if cfg.Caps.VMps <= 0 {
		errs = append(errs, fmt.Sprintf("caps.v_mps must be > 0, got %g", cfg.Caps.VMps))
	}
	if cfg.Caps.FnN <= 0 {
		errs = append(errs, fmt.Sprintf("caps.fn_N must be > 0, got %g", cfg.Caps.FnN))
	}
	if cfg.Caps.TauNm <= 0 {
		errs = append(errs, fmt.Sprintf("caps.tau_Nm must be > 0, got %g", cfg.Caps.TauNm))
	}
	if cfg.Probes.TTLMs <= 0 {
		errs = append(errs, fmt.Sprintf("probes.ttl_ms must be > 0, got %d", cfg.Probes.TTLMs))
	}
	if cfg.Probes.RefractoryMs < 0 {
		errs = append(errs, "probes.refractory_ms must be >= 0")
	}
	if cfg.Probes.MaxBeforeAction < 1 {
		errs = append(errs, "probes.max_before_action must be >= 1")
	}
	if cfg.Risk.Tau < 0 || cfg.Risk.Tau > 1 {
		errs = append(errs, fmt.Sprintf("risk.tau must be in [0,1], got %g", cfg.Risk.Tau))
	}
	if cfg.Env.Backend == "" {
		errs = append(errs, "env.backend must not be empty")
	}

	if len(errs) > 0 {
		return &harnesserr.ConfigError{
			Field: "config",
			Msg:   fmt.Sprintf("validation errors:\n  - %s", strings.Join(errs, "\n  - ")),
		}
	}
	return nil
}
