package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bandedctl/harness/internal/adapter"
	"github.com/bandedctl/harness/internal/clock"
	"github.com/bandedctl/harness/internal/config"
	"github.com/bandedctl/harness/internal/environment"
	"github.com/bandedctl/harness/internal/harness"
	"github.com/bandedctl/harness/internal/metrics"
	"github.com/bandedctl/harness/internal/obslog"
	"github.com/bandedctl/harness/internal/ringbuf"
	"github.com/bandedctl/harness/internal/riskgate"
	"github.com/bandedctl/harness/internal/scheduler"
	"github.com/bandedctl/harness/internal/shield"
	"github.com/bandedctl/harness/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Args:  cobra.ExactArgs(1),
	Short: "Run the harness demo against the configured Environment",
	Long: `run wires the Clock, Environment, Shield, Risk Gate, Adapter Manager,
Probe Engine, Ring Buffer, Event-Pack Assembler, and Band Scheduler into one
Harness, drives the Control band at bands.control_hz and a fire-and-forget
Predict advisory band at bands.predict_hz for the given duration, and
prints a pass/fail summary banner with counters and TTR on completion or
on SIGINT/SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("duration", 2*time.Second, "how long to run the Control band")
	runCmd.Flags().Float64("v-cap", 0.05, "baseline commanded TCP velocity (m/s)")
	runCmd.Flags().Float64("fallback-v-cap", 0, "Shield fallback TCP velocity on veto (m/s)")
	runCmd.Flags().Float64("z0", 0.02, "reference height for the success detector")
	runCmd.Flags().Float64("dz", 0.03, "required lift above z0 for success")
}

// runPredictBand is the minimal advisory Predict band: it periodically
// requests a probe against the Probe Engine and, when admitted, publishes
// a small bounded AdapterDelta nudging v_cap upward for a short TTL. It
// runs on its own goroutine (via sched.RunBackground) and never blocks or
// is joined by the Control band; it exits when ctx is cancelled.
func runPredictBand(ctx context.Context, h *harness.Harness, predictHz, baselineVCap float64) {
	if predictHz <= 0 {
		predictHz = 5.0
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / predictHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.Probes().RequestProbe("v_nudge", map[string]float64{"delta": 0.01}) {
				continue
			}
			h.Adapter().Apply(adapter.Delta{
				TTLMs:   200,
				Source:  adapter.SourcePredict,
				Payload: map[string]float64{"v_cap": baselineVCap * 1.1},
			})
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	duration, _ := cmd.Flags().GetDuration("duration")
	vCap, _ := cmd.Flags().GetFloat64("v-cap")
	fallbackVCap, _ := cmd.Flags().GetFloat64("fallback-v-cap")
	z0, _ := cmd.Flags().GetFloat64("z0")
	dz, _ := cmd.Flags().GetFloat64("dz")

	config.ResetCache()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log, err := obslog.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if err := config.CheckPhysicsHash(cfg, "", false); err != nil {
		log.Warn("physics hash check failed, continuing in non-strict mode", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry()
	go func() {
		if err := reg.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	ledger, err := storage.Open(cfg.Storage.DBPath, cfg.Storage.Persist)
	if err != nil {
		return fmt.Errorf("ledger open failed: %w", err)
	}
	defer ledger.Close() //nolint:errcheck

	env, err := environment.Load(cfg.Env.Backend, "", cfg.Physics.Dt, cfg.Physics.Substeps, cfg.Env.FailFast, log)
	if err != nil {
		return fmt.Errorf("environment load failed: %w", err)
	}

	clk := clock.NewMonotonic()
	caps := shield.SafetyCaps{VMps: cfg.Caps.VMps, AMps2: cfg.Caps.AMps2, FnN: cfg.Caps.FnN, TauNm: cfg.Caps.TauNm}
	risk := riskgate.New(cfg.Risk.Tau, riskgate.ConstantUncertainty(cfg.Risk.UncertaintyStub))
	ring := ringbuf.New(ringbuf.DefaultCapacity)

	h := harness.New(clk, env, caps, risk, ring, log, reg, ledger,
		harness.Config{
			Baseline: shield.Command{VCap: vCap},
			Fallback: shield.Command{VCap: fallbackVCap},
			Z0:       z0,
			DZ:       dz,
		},
		cfg.Seeds.ConfigHash, cfg.Seeds.PhysicsHash, cfg.Seeds.SimSeed,
	)

	sched := scheduler.New(cfg.Bands.ControlHz, log, reg.SchedulerMissedCyclesTotal)
	sched.StartControl(func() { h.Tick() })
	log.Info("control band started", zap.Float64("control_hz", cfg.Bands.ControlHz))

	sched.RunBackground(func() { runPredictBand(ctx, h, cfg.Bands.PredictHz.Lo, vCap) })
	log.Info("predict band started", zap.Float64("predict_hz", cfg.Bands.PredictHz.Lo))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(duration):
	case <-sigCh:
		log.Info("received shutdown signal")
	}

	sched.Stop(time.Second)

	lifted, ttrMs, hasTTR := h.DetectSuccess(cfg.Physics.Dt)
	counters := h.Counters()

	fmt.Println("\n=== BANDCTL RUN SUMMARY ===")
	fmt.Printf("success:       %v\n", lifted)
	if hasTTR {
		fmt.Printf("ttr_ms:        %d\n", ttrMs)
	} else {
		fmt.Println("ttr_ms:        n/a")
	}
	fmt.Printf("abstains:      %d\n", counters.Abstain)
	fmt.Printf("vetoes:        %d\n", counters.Veto)
	fmt.Printf("ttl_expired:   %d\n", counters.TTLExpired)

	if !lifted {
		return fmt.Errorf("run did not reach success")
	}
	return nil
}
