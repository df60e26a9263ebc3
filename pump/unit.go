// Package pump implements a time-metered or volume-metered run of a binary
// actuator. It is the innermost primitive the rest of the system composes:
// guards wrap it, the coordinator drives guards.
package pump

import (
	"errors"
	"fmt"

	"hydrocore/hal"
	"hydrocore/timeutil"
)

var (
	// ErrAlreadyRunning is returned by a start call made while the unit is running.
	ErrAlreadyRunning = errors.New("pump: already running")
	// ErrZeroDuration is returned when a start call would request a zero-length run.
	ErrZeroDuration = errors.New("pump: zero duration")
	// ErrZeroFlowRate is returned by start_for_volume when no flow calibration is configured.
	ErrZeroFlowRate = errors.New("pump: flow rate not calibrated")
)

// Unit is a bound binary actuator with a calibrated flow rate and an optional
// maximum continuous run bound.
type Unit struct {
	name string
	actuator hal.Actuator
	flowULPerSec uint64 // microliters per second; 0 forbids volume-metered operation
	maxRunTimeMS uint32 // 0 means uncapped

	running bool
	start uint32
	requestedDurMS uint32
	requestedVolUL uint64
	deliveredUL uint64
}

// NewUnit binds a Unit to an actuator with the given calibration.
func NewUnit(name string, actuator hal.Actuator, flowULPerSec uint64, maxRunTimeMS uint32) *Unit {
	return &Unit{name: name, actuator: actuator, flowULPerSec: flowULPerSec, maxRunTimeMS: maxRunTimeMS}
}

// Name returns the pump's configured identifier (for events/logging).
func (u *Unit) Name() string { return u.name }

// IsRunning reports whether the unit believes it is currently on.
func (u *Unit) IsRunning() bool { return u.running }

// DeliveredUL returns the estimated volume delivered so far in the current (or last) run.
func (u *Unit) DeliveredUL() uint64 { return u.deliveredUL }

// RequestedDurationMS returns the effective duration of the current run.
func (u *Unit) RequestedDurationMS() uint32 { return u.requestedDurMS }

// StartForMS starts the pump for duration milliseconds, clamped to the
// configured max-run cap when one is set. Fails if the actuator's ON call
// fails, duration is zero, or the unit is already running.
func (u *Unit) StartForMS(now uint32, durationMS uint32) error {
	if u.running {
		return ErrAlreadyRunning
	}
	if durationMS == 0 {
		return ErrZeroDuration
	}
	effective := durationMS
	if u.maxRunTimeMS > 0 && effective > u.maxRunTimeMS {
		effective = u.maxRunTimeMS
	}
	if err := u.actuator.TurnOn(); err != nil {
		return fmt.Errorf("pump %s: turn on: %w", u.name, err)
	}
	u.running = true
	u.start = now
	u.requestedDurMS = effective
	u.requestedVolUL = 0
	u.deliveredUL = 0
	return nil
}

// StartForVolumeUL starts the pump for the duration implied by the volume and
// the calibrated flow rate, reporting the actual duration used via actualOut
// (nil is accepted when the caller does not need it).
func (u *Unit) StartForVolumeUL(now uint32, volumeUL uint64, actualOut *uint32) error {
	if u.flowULPerSec == 0 {
		return ErrZeroFlowRate
	}
	// duration = ceil(volume * 1000 / flow)
	durationMS := (volumeUL*1000 + u.flowULPerSec - 1) / u.flowULPerSec
	if durationMS > 0xFFFFFFFF {
		durationMS = 0xFFFFFFFF
	}
	if err := u.StartForMS(now, uint32(durationMS)); err != nil {
		return err
	}
	u.requestedVolUL = volumeUL
	if actualOut != nil {
		*actualOut = u.requestedDurMS
	}
	return nil
}

// Stop attempts the actuator's OFF call. Only on success is the running flag
// cleared; a failed OFF leaves the unit marked running so the safety loop
// retries on the next tick.
func (u *Unit) Stop() error {
	if !u.running {
		return nil
	}
	if err := u.actuator.TurnOff(); err != nil {
		return fmt.Errorf("pump %s: turn off: %w", u.name, err)
	}
	u.running = false
	return nil
}

// Tick is a no-op if the unit is not running. Otherwise it updates the
// estimated delivered volume (saturating at 2^32-1) and stops the pump once
// elapsed time reaches the requested duration or the safety cap.
func (u *Unit) Tick(now uint32) error {
	if !u.running {
		return nil
	}
	elapsedMS := uint64(timeutil.SinceMillis(now, u.start))
	if int32(now-u.start) < 0 {
		elapsedMS = 0
	}
	delivered := u.flowULPerSec * elapsedMS / 1000
	if delivered > 0xFFFFFFFF {
		delivered = 0xFFFFFFFF
	}
	u.deliveredUL = delivered

	limit := uint64(u.requestedDurMS)
	if u.maxRunTimeMS > 0 && uint64(u.maxRunTimeMS) < limit {
		limit = uint64(u.maxRunTimeMS)
	}
	if elapsedMS >= limit {
		return u.Stop()
	}
	return nil
}
