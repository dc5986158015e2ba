package ringbuf

import "testing"

func TestWindowExactness(t *testing.T) {
	b := New(100)
	for i := 0; i < 100; i++ {
		ts := float64(i) * 0.01
		b.Add(ts, map[string]float64{"i": float64(i)})
	}

	trigger := 0.50
	win := b.Window(trigger-0.300, trigger+0.300)
	for _, e := range win {
		if e.T < trigger-0.300 || e.T > trigger+0.300 {
			t.Fatalf("entry t=%v outside window", e.T)
		}
	}
	if len(win) == 0 {
		t.Fatal("expected non-empty window")
	}
}

func TestEvictionFIFO(t *testing.T) {
	b := New(3)
	b.Add(1, map[string]float64{"v": 1})
	b.Add(2, map[string]float64{"v": 2})
	b.Add(3, map[string]float64{"v": 3})
	b.Add(4, map[string]float64{"v": 4})

	if b.Len() != 3 {
		t.Fatalf("expected len 3 after eviction, got %d", b.Len())
	}
	win := b.Window(0, 10)
	if win[0].T != 2 {
		t.Fatalf("expected oldest surviving entry at t=2, got t=%v", win[0].T)
	}
}

func TestWindowEmptyWhenNoOverlap(t *testing.T) {
	b := New(10)
	b.Add(0, map[string]float64{})
	b.Add(1, map[string]float64{})
	win := b.Window(5, 6)
	if len(win) != 0 {
		t.Fatalf("expected empty window, got %d entries", len(win))
	}
}
