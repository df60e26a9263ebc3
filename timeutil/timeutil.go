// Package timeutil provides wrap-safe comparisons over the free-running
// 32-bit millisecond counter the cores are ticked with, grounded on the
// teacher's ratelimit.Clock abstraction (engine/internal/ratelimit):
// callers inject a tick source rather than reading a global clock.
package timeutil

// Before reports whether a happened strictly before b, treating the
// difference as a signed 32-bit value so any two timestamps within
// +/-2^31 ms of each other compare correctly across a counter wraparound.
func Before(a, b uint32) bool {
	return int32(a-b) < 0
}

// After reports whether a happened strictly after b (wrap-safe).
func After(a, b uint32) bool {
	return int32(a-b) > 0
}

// SinceMillis returns now-then as a signed millisecond delta, wrap-safe.
func SinceMillis(now, then uint32) int32 {
	return int32(now - then)
}

// AddMillis returns t advanced by delta milliseconds, saturating-free
// (wraps naturally, which is the point: comparisons stay correct via Before/After).
func AddMillis(t uint32, delta uint32) uint32 {
	return t + delta
}
