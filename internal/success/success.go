// Package success implements the relative-threshold lift-success and
// time-to-result detector. Both functions use a 20-consecutive-sample
// stability window (200 ms at 100 Hz) — the constant is part of the
// contract, not a tunable.
package success

import "math"

// StableWindowSamples is the number of consecutive samples at/above
// threshold required to declare success.
const StableWindowSamples = 20

// Pose is an end-effector pose; only Z is used by the detector.
type Pose struct {
	X, Y, Z float64
}

// DetectLiftSuccess reports whether poses contains a window of
// StableWindowSamples consecutive samples all at or above z0+dz. Uses a
// relative z0 so the detector works from an arbitrary starting height.
func DetectLiftSuccess(poses []Pose, z0, dz float64) bool {
	threshold := z0 + dz
	consec := 0
	for _, p := range poses {
		if p.Z >= threshold {
			consec++
			if consec >= StableWindowSamples {
				return true
			}
		} else {
			consec = 0
		}
	}
	return false
}

// TTRMs returns the millisecond timestamp of the first sample in the
// earliest qualifying stability window, or (0, false) if none exists.
func TTRMs(poses []Pose, dt, z0, dz float64) (int, bool) {
	threshold := z0 + dz
	consec := 0
	for i, p := range poses {
		if p.Z >= threshold {
			consec++
			if consec >= StableWindowSamples {
				firstIdx := i - consec + 1
				return int(math.Round(float64(firstIdx) * dt * 1000)), true
			}
		} else {
			consec = 0
		}
	}
	return 0, false
}
