//go:build !debug

package harnesserr

// CheckInvariant is a no-op in release builds.
func CheckInvariant(cond bool, invariant, detail string) {}
