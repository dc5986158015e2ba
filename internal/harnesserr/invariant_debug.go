//go:build debug

package harnesserr

// CheckInvariant panics with an *InvariantViolation when cond is false.
// Only compiled into debug builds (-tags debug); release builds use the
// no-op variant in invariant_release.go so steady-state Control paths
// never pay for invariant checks.
func CheckInvariant(cond bool, invariant, detail string) {
	if !cond {
		panic(&InvariantViolation{Invariant: invariant, Detail: detail})
	}
}
