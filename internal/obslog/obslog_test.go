package obslog

import "testing"

func TestNewJSON(t *testing.T) {
	log, err := New("info", "json")
	if err != nil {
		t.Fatal(err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewConsole(t *testing.T) {
	log, err := New("debug", "console")
	if err != nil {
		t.Fatal(err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("not-a-level", "json"); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}
