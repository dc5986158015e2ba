package success

import "testing"

func TestRelativeTTRFromHighStart(t *testing.T) {
	z0 := 0.72
	dz := 0.05
	dt := 0.02

	var poses []Pose
	for i := 0; i < 10; i++ {
		poses = append(poses, Pose{Z: z0})
	}
	for i := 0; i < 30; i++ {
		frac := float64(i) / 29.0
		z := z0 + frac*0.06
		poses = append(poses, Pose{Z: z})
	}
	for i := 0; i < 20; i++ {
		poses = append(poses, Pose{Z: 0.78})
	}

	if !DetectLiftSuccess(poses, z0, dz) {
		t.Fatal("expected lift success")
	}
	ttr, ok := TTRMs(poses, dt, z0, dz)
	if !ok {
		t.Fatal("expected a TTR value")
	}
	if ttr < 600 || ttr > 800 {
		t.Fatalf("ttr = %d, want in [600, 800]", ttr)
	}
}

func TestNoSuccessWhenNeverSustained(t *testing.T) {
	z0, dz := 0.0, 0.03
	poses := make([]Pose, 50)
	for i := range poses {
		if i%5 == 0 {
			poses[i] = Pose{Z: 1.0} // spikes above threshold but never 20 in a row
		}
	}
	if DetectLiftSuccess(poses, z0, dz) {
		t.Fatal("expected no sustained success from intermittent spikes")
	}
	if _, ok := TTRMs(poses, 0.01, z0, dz); ok {
		t.Fatal("expected no TTR from intermittent spikes")
	}
}

func TestTTRIsFirstQualifyingIndex(t *testing.T) {
	z0, dz := 0.0, 0.03
	poses := make([]Pose, 0, 25)
	for i := 0; i < 5; i++ {
		poses = append(poses, Pose{Z: 0})
	}
	for i := 0; i < 20; i++ {
		poses = append(poses, Pose{Z: 0.05})
	}
	ttr, ok := TTRMs(poses, 0.01, z0, dz)
	if !ok {
		t.Fatal("expected TTR")
	}
	want := 5 * 0.01 * 1000
	if float64(ttr) != want {
		t.Fatalf("ttr = %d, want %v", ttr, want)
	}
}
