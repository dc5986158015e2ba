// Package metrics also wires the harness's Prometheus registry.
//
// Endpoint: GET /metrics on a loopback-only address (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
//
// Metric naming convention: bandharness_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metric descriptors for the harness.
type Registry struct {
	registry *prometheus.Registry

	// ─── Shield ───────────────────────────────────────────────────────────

	// ShieldVetoesTotal counts Shield vetoes, by reason.
	ShieldVetoesTotal *prometheus.CounterVec

	// ─── Risk Gate ────────────────────────────────────────────────────────

	// RiskAbstainsTotal counts Risk Gate ABSTAIN decisions.
	RiskAbstainsTotal prometheus.Counter

	// ─── Adapter Manager ──────────────────────────────────────────────────

	// AdapterTTLExpiredTotal counts adapter deltas that expired via TTL.
	AdapterTTLExpiredTotal prometheus.Counter

	// ─── Probe Engine ─────────────────────────────────────────────────────

	// ProbeRejectedTotal counts rejected probe requests, by cause
	// (quota, refractory).
	ProbeRejectedTotal *prometheus.CounterVec

	// ─── Band Scheduler ───────────────────────────────────────────────────

	// ControlTickSeconds records Control-tick duration. The EventPack's
	// loop_stats p50/p95/p99 come from the harness's LoopStats, which
	// records the same durations; this histogram is not read back.
	ControlTickSeconds prometheus.Histogram

	// SchedulerMissedCyclesTotal counts Control ticks that overran their
	// period (no-catchup drops).
	SchedulerMissedCyclesTotal prometheus.Counter

	startTime time.Time
}

// NewRegistry creates and registers all harness Prometheus metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry:  reg,
		startTime: time.Now(),

		ShieldVetoesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandharness",
			Subsystem: "shield",
			Name:      "vetoes_total",
			Help:      "Total Shield vetoes, by reason.",
		}, []string{"reason"}),

		RiskAbstainsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandharness",
			Subsystem: "risk",
			Name:      "abstains_total",
			Help:      "Total Risk Gate ABSTAIN decisions.",
		}),

		AdapterTTLExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandharness",
			Subsystem: "adapter",
			Name:      "ttl_expired_total",
			Help:      "Total adapter deltas that expired via TTL.",
		}),

		ProbeRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandharness",
			Subsystem: "probe",
			Name:      "rejected_total",
			Help:      "Total rejected probe requests, by cause.",
		}, []string{"cause"}),

		ControlTickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bandharness",
			Subsystem: "control",
			Name:      "tick_seconds",
			Help:      "Control band tick duration, seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.015, 0.02, 0.03, 0.05, 0.1},
		}),

		SchedulerMissedCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandharness",
			Subsystem: "scheduler",
			Name:      "missed_cycles_total",
			Help:      "Total Control ticks that overran their period.",
		}),
	}

	reg.MustRegister(
		r.ShieldVetoesTotal,
		r.RiskAbstainsTotal,
		r.AdapterTTLExpiredTotal,
		r.ProbeRejectedTotal,
		r.ControlTickSeconds,
		r.SchedulerMissedCyclesTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return r
}

// IncRejected increments ProbeRejectedTotal for the given cause,
// satisfying internal/probe's RejectCounter seam without that package
// importing prometheus directly.
func (r *Registry) IncRejected(cause string) {
	r.ProbeRejectedTotal.WithLabelValues(cause).Inc()
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails. Binds loopback-only by
// convention (callers pass an address like "127.0.0.1:9090").
func (r *Registry) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// LoopStats is the percentile tracker behind EventPack.meta's loop_stats
// key. Computed from a bounded ring of recent tick durations (how long
// each tick ran), not from inter-arrival times between ticks.
type LoopStats struct {
	durations []float64 // seconds, ring of the most recent N ticks
	capacity  int
}

// NewLoopStats returns a LoopStats tracking the most recent capacity tick
// durations.
func NewLoopStats(capacity int) *LoopStats {
	if capacity <= 0 {
		capacity = 256
	}
	return &LoopStats{capacity: capacity}
}

// Record appends one observed tick duration in seconds.
func (l *LoopStats) Record(d float64) {
	l.durations = append(l.durations, d)
	if len(l.durations) > l.capacity {
		l.durations = l.durations[len(l.durations)-l.capacity:]
	}
}

// Percentiles returns p50, p95, p99 of the recorded durations. Returns
// all zeros if nothing has been recorded yet.
func (l *LoopStats) Percentiles() (p50, p95, p99 float64) {
	if len(l.durations) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64{}, l.durations...)
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
