// Package guard implements the Pump Guard safety wrapper: a pump Unit
// plus an optional tank Level reader, gated by a single decision
// function evaluated before every start and on every tick. The shape is
// grounded on a per-domain circuit-breaker shard's approach — a small
// state machine that decides "may this proceed" before the action and
// re-evaluates on every subsequent tick, tripping the breaker (here:
// stopping the pump) the instant conditions change underneath a running
// operation.
package guard

import (
	"hydrocore/pump"
	"hydrocore/sensors"
)

// BlockReason names why a Guard currently refuses to run its pump Unit.
type BlockReason int

const (
	BlockNone BlockReason = iota
	BlockSensorFault
	BlockLowVolume
	BlockStaleLevel
)

func (r BlockReason) String() string {
	switch r {
	case BlockNone:
		return "none"
	case BlockSensorFault:
		return "sensor_fault"
	case BlockLowVolume:
		return "low_volume"
	case BlockStaleLevel:
		return "stale_level"
	default:
		return "unknown"
	}
}

// FaultPolicy decides what a sensor fault means for this guard's decision.
type FaultPolicy int

const (
	// FaultBlocks treats a set sensor fault as a reason to deny running.
	FaultBlocks FaultPolicy = iota
	// FaultIgnored lets the guard fall through to the remaining checks
	// even while the sensor fault flag is set.
	FaultIgnored
)

// Guard wraps a pump.Unit and, optionally, a sensors.Level. A nil level
// disables every check. A level with Attached() == false still has its
// sensor-fault flag checked (under FaultBlocks), but the staleness and
// low-volume checks run only with an attached mapping.
type Guard struct {
	unit   *pump.Unit
	level  *sensors.Level
	policy FaultPolicy

	minVolumeUL uint64
	reason      BlockReason
}

// New constructs a Guard. Pass a nil level to disable level-based safety
// entirely for this resource (water-in guard with no sensor, for example).
func New(unit *pump.Unit, level *sensors.Level, minVolumeUL uint64, policy FaultPolicy) *Guard {
	return &Guard{unit: unit, level: level, policy: policy, minVolumeUL: minVolumeUL}
}

// Unit exposes the wrapped pump.Unit for read-only inspection.
func (g *Guard) Unit() *pump.Unit { return g.unit }

// CanRun evaluates the block-reason decision function in priority order:
// sensor-fault, then staleness, then low-volume, then none. A guard whose
// level has no mapping function configured skips every level-related
// check and returns none unless a sensor fault was explicitly latched.
func (g *Guard) CanRun(now uint32) BlockReason {
	if g.level == nil {
		g.reason = BlockNone
		return g.reason
	}
	if g.policy == FaultBlocks && g.level.Faulted() {
		g.reason = BlockSensorFault
		return g.reason
	}
	if !g.level.Attached() {
		g.reason = BlockNone
		return g.reason
	}
	if g.level.Stale(now) {
		g.reason = BlockStaleLevel
		return g.reason
	}
	if g.level.VolumeUL() < g.minVolumeUL {
		g.reason = BlockLowVolume
		return g.reason
	}
	g.reason = BlockNone
	return g.reason
}

// Reason returns the block reason computed by the most recent CanRun call.
func (g *Guard) Reason() BlockReason { return g.reason }

// StartForMS gates pump.Unit.StartForMS behind CanRun.
func (g *Guard) StartForMS(now, durationMS uint32) (BlockReason, error) {
	if reason := g.CanRun(now); reason != BlockNone {
		return reason, nil
	}
	return BlockNone, g.unit.StartForMS(now, durationMS)
}

// StartForVolumeUL gates pump.Unit.StartForVolumeUL behind CanRun.
func (g *Guard) StartForVolumeUL(now uint32, volumeUL uint64, actualOut *uint32) (BlockReason, error) {
	if reason := g.CanRun(now); reason != BlockNone {
		return reason, nil
	}
	return BlockNone, g.unit.StartForVolumeUL(now, volumeUL, actualOut)
}

// Tick always ticks the inner pump.Unit first, then re-evaluates CanRun;
// if the unit is still running and the decision has flipped to blocked,
// the guard stops it immediately. This is the core safety interlock: a
// pump.Unit under a Guard that cannot run is stopped within one tick.
func (g *Guard) Tick(now uint32) error {
	if err := g.unit.Tick(now); err != nil {
		return err
	}
	if g.unit.IsRunning() && g.CanRun(now) != BlockNone {
		return g.unit.Stop()
	}
	return nil
}
