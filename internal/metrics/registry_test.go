package metrics

import "testing"

func TestNewRegistryRegistersWithoutPanic(t *testing.T) {
	r := NewRegistry()
	r.ShieldVetoesTotal.WithLabelValues("v_cap>0.25").Inc()
	r.RiskAbstainsTotal.Inc()
	r.ProbeRejectedTotal.WithLabelValues("quota").Inc()
}

func TestLoopStatsPercentiles(t *testing.T) {
	ls := NewLoopStats(10)
	for i := 1; i <= 10; i++ {
		ls.Record(float64(i) * 0.001)
	}
	p50, p95, p99 := ls.Percentiles()
	if p50 <= 0 || p95 <= 0 || p99 <= 0 {
		t.Fatalf("expected positive percentiles, got %v %v %v", p50, p95, p99)
	}
	if p50 > p95 || p95 > p99 {
		t.Fatalf("expected p50 <= p95 <= p99, got %v %v %v", p50, p95, p99)
	}
}

func TestLoopStatsEmpty(t *testing.T) {
	ls := NewLoopStats(10)
	p50, p95, p99 := ls.Percentiles()
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Fatal("expected zero percentiles with no recordings")
	}
}

func TestLoopStatsEvictsOldest(t *testing.T) {
	ls := NewLoopStats(3)
	ls.Record(1)
	ls.Record(2)
	ls.Record(3)
	ls.Record(100)
	if len(ls.durations) != 3 {
		t.Fatalf("expected capacity-bounded ring, got len %d", len(ls.durations))
	}
	if ls.durations[0] != 2 {
		t.Fatalf("expected oldest evicted, got %v", ls.durations)
	}
}
