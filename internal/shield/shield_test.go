package shield

import "testing"

func TestEvaluateAcceptsWithinCaps(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	proposed := Command{VCap: 0.20, Fn: 6, Tau: 2}
	fallback := Command{VCap: 0.10, Fn: 6, Tau: 2}

	d := s.Evaluate(proposed, fallback)
	if !d.Accepted {
		t.Fatalf("expected accept, got reject: %s", d.Reason)
	}
	if d.FinalCmd != proposed {
		t.Fatalf("accepted decision must echo proposed, got %+v", d.FinalCmd)
	}
}

func TestEvaluateVetoOrderVCapFirst(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	proposed := Command{VCap: 0.40, Fn: 6, Tau: 2}
	fallback := Command{VCap: 0.20, Fn: 6, Tau: 2}

	d := s.Evaluate(proposed, fallback)
	if d.Accepted {
		t.Fatal("expected veto")
	}
	if d.FinalCmd != fallback {
		t.Fatalf("veto must use fallback, got %+v", d.FinalCmd)
	}
	want := "v_cap>0.25"
	if d.Reason != want {
		t.Fatalf("reason = %q, want %q", d.Reason, want)
	}
}

func TestEvaluateVetoOrderFnSecond(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	proposed := Command{VCap: 0.10, Fn: 20, Tau: 2}
	d := s.Evaluate(proposed, Command{})
	if d.Accepted || d.Reason != "fn>12" {
		t.Fatalf("expected fn veto, got accepted=%v reason=%q", d.Accepted, d.Reason)
	}
}

func TestEvaluateVetoOrderTauThird(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	proposed := Command{VCap: 0.10, Fn: 6, Tau: -8}
	d := s.Evaluate(proposed, Command{})
	if d.Accepted || d.Reason != "|tau|>6" {
		t.Fatalf("expected tau veto, got accepted=%v reason=%q", d.Accepted, d.Reason)
	}
}

func TestShieldSoundness(t *testing.T) {
	caps := SafetyCaps{VMps: 1, FnN: 10, TauNm: 5}
	s := New(caps)
	cases := []Command{
		{VCap: 0.5, Fn: 5, Tau: 2},
		{VCap: 2, Fn: 5, Tau: 2},
		{VCap: 0.5, Fn: 20, Tau: 2},
		{VCap: 0.5, Fn: 5, Tau: -6},
	}
	fallback := Command{VCap: 0, Fn: 0, Tau: 0}
	for _, c := range cases {
		d := s.Evaluate(c, fallback)
		exceeds := c.VCap > caps.VMps || c.Fn > caps.FnN || abs(c.Tau) > caps.TauNm
		if exceeds && (d.Accepted || d.FinalCmd != fallback) {
			t.Fatalf("soundness violated for %+v: got %+v", c, d)
		}
		if !exceeds && (!d.Accepted || d.FinalCmd != c) {
			t.Fatalf("soundness violated for %+v: got %+v", c, d)
		}
	}
}

func TestClampSaturatesEachField(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	clamped, info := s.Clamp(Command{VCap: 0.4, Fn: 20, Tau: -8})

	if clamped.VCap != 0.25 || clamped.Fn != 12 || clamped.Tau != -6 {
		t.Fatalf("unexpected clamp result: %+v", clamped)
	}
	if info.VCapClampedFrom == nil || *info.VCapClampedFrom != 0.4 {
		t.Fatal("expected v_cap clamp info")
	}
	if info.FnClampedFrom == nil || *info.FnClampedFrom != 20 {
		t.Fatal("expected fn clamp info")
	}
	if info.TauClampedFrom == nil || *info.TauClampedFrom != -8 {
		t.Fatal("expected tau clamp info")
	}
}

func TestClampNoopWithinCaps(t *testing.T) {
	s := New(SafetyCaps{VMps: 0.25, FnN: 12, TauNm: 6})
	in := Command{VCap: 0.1, Fn: 5, Tau: 2}
	clamped, info := s.Clamp(in)
	if clamped != in {
		t.Fatalf("expected no change, got %+v", clamped)
	}
	if info.VCapClampedFrom != nil || info.FnClampedFrom != nil || info.TauClampedFrom != nil {
		t.Fatal("expected no clamp info")
	}
}
