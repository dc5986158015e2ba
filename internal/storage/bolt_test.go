package storage

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
}

func TestAppendAndReadEventPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	rec := EventPackRecord{
		T0:            1.0,
		T1:            1.6,
		Meta:          map[string]any{"config_hash": "abc"},
		Discrepancies: []string{"veto"},
	}
	if err := l.AppendEventPack(rec); err != nil {
		t.Fatal(err)
	}

	got, err := l.ReadEventPacks()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 eventpack, got %d", len(got))
	}
	if got[0].T0 != 1.0 || got[0].Discrepancies[0] != "veto" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}

func TestAppendAndReadDecisionsPreserveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i, reason := range []string{"ok", "v_cap>0.25", "fn>12"} {
		if err := l.AppendDecision(DecisionRecord{T: float64(i), Accepted: i == 0, Reason: reason}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.ReadDecisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(got))
	}
	for i, want := range []string{"ok", "v_cap>0.25", "fn>12"} {
		if got[i].Reason != want {
			t.Fatalf("decisions out of order: got %q at %d, want %q", got[i].Reason, i, want)
		}
	}
}

func TestOpenTruncatesWhenNotPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.AppendDecision(DecisionRecord{T: 1, Reason: "first-run"}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l2, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	got, err := l2.ReadDecisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected truncated ledger to start empty, got %d entries", len(got))
	}
}

func TestOpenPersistsAcrossReopenWhenPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.AppendDecision(DecisionRecord{T: 1, Reason: "kept"}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l2, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	got, err := l2.ReadDecisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Reason != "kept" {
		t.Fatalf("expected persisted entry to survive reopen, got %+v", got)
	}
}
