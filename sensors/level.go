// Package sensors implements the tank-level mapping and the
// freshness-tracked scalar sensor aggregator. Both are push-model:
// producers call Update* and the consumer queries freshness/validity
// explicitly. Grounded on a per-domain state shard pattern (a small
// mutex-free struct updated by explicit calls, queried by the owning
// loop) — there is no ticking goroutine here, matching the
// single-threaded cooperative scheduling model of the controller.
package sensors

import (
	"hydrocore/hal"
	"hydrocore/timeutil"
)

// Level is a mapping function from a distance measurement to a volume
// estimate, plus its latest reading and staleness bookkeeping. A Level with
// no mapping function configured is "absent": level-based safety is
// disabled for that resource.
type Level struct {
	toVolume   hal.DistanceToVolume
	staleBound uint32 // 0 = no staleness check

	lastDistanceMM uint32
	lastVolumeUL   uint64
	lastUpdate     uint32
	valid          bool
	fault          bool
}

// NewLevel constructs a Level. Pass a nil mapping function to model an
// absent sensor (all level checks become permissive).
func NewLevel(toVolume hal.DistanceToVolume, staleBoundMS uint32) *Level {
	return &Level{toVolume: toVolume, staleBound: staleBoundMS}
}

// Attached reports whether a distance->volume mapping is configured.
func (l *Level) Attached() bool { return l.toVolume != nil }

// UpdateDistance refreshes the reading and clears any fault.
func (l *Level) UpdateDistance(now uint32, distanceMM uint32) {
	l.lastDistanceMM = distanceMM
	if l.toVolume != nil {
		l.lastVolumeUL = l.toVolume(distanceMM)
	}
	l.lastUpdate = now
	l.valid = true
	l.fault = false
}

// SetFault marks the sensor faulted (e.g. an out-of-range echo, a bus error).
func (l *Level) SetFault(now uint32) {
	l.fault = true
	l.lastUpdate = now
}

// ClearFault clears a previously set fault without touching the reading.
func (l *Level) ClearFault() { l.fault = false }

// Faulted reports the sticky fault flag.
func (l *Level) Faulted() bool { return l.fault }

// Stale reports whether the last update is older than the configured bound.
// A Level with no staleness bound configured is never stale.
func (l *Level) Stale(now uint32) bool {
	if l.staleBound == 0 || !l.valid {
		return false
	}
	return timeutil.SinceMillis(now, l.lastUpdate) > int32(l.staleBound)
}

// VolumeUL returns the last computed volume estimate.
func (l *Level) VolumeUL() uint64 { return l.lastVolumeUL }

// DistanceMM returns the last raw distance reading.
func (l *Level) DistanceMM() uint32 { return l.lastDistanceMM }

// Valid reports whether at least one reading has been pushed.
func (l *Level) Valid() bool { return l.valid }
