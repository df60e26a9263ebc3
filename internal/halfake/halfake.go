// Package halfake provides in-memory implementations of every hal
// collaborator, for tests and the demo binary. Grounded on a fakes
// package pattern: same one-struct-per-collaborator shape, fields
// exported for direct test manipulation rather than hidden behind
// setter methods.
package halfake

import "hydrocore/hal"

// Actuator is an in-memory hal.Actuator recording on/off calls and state.
type Actuator struct {
	On       bool
	OnCalls  int
	OffCalls int
	FailNext error
}

func (a *Actuator) TurnOn() error {
	if a.FailNext != nil {
		err := a.FailNext
		a.FailNext = nil
		return err
	}
	a.On = true
	a.OnCalls++
	return nil
}

func (a *Actuator) TurnOff() error {
	a.On = false
	a.OffCalls++
	return nil
}

// TimeSource is a manually-advanced hal.TimeSource.
type TimeSource struct{ MillisVal uint32 }

func (t *TimeSource) NowMillis() uint32 { return t.MillisVal }

func (t *TimeSource) Advance(deltaMS uint32) { t.MillisVal += deltaMS }

// RTC is an in-memory hal.RTC.
type RTC struct {
	Time          hal.RTCTime
	Alarm1        hal.RTCTime
	Alarm1Mode    hal.AlarmMode
	Alarm2        hal.RTCTime
	Alarm2Mode    hal.AlarmMode
	Alarm1Enabled bool
	Alarm2Enabled bool
	Alarm1Fired   bool
	Alarm2Fired   bool
	GetErr        error
	SetErr        error
}

func (r *RTC) GetTime() (hal.RTCTime, error) {
	if r.GetErr != nil {
		return hal.RTCTime{}, r.GetErr
	}
	return r.Time, nil
}

func (r *RTC) SetTime(t hal.RTCTime) error {
	if r.SetErr != nil {
		return r.SetErr
	}
	r.Time = t
	return nil
}

func (r *RTC) SetAlarm1(match hal.RTCTime, mode hal.AlarmMode) error {
	r.Alarm1, r.Alarm1Mode = match, mode
	return nil
}

func (r *RTC) SetAlarm2(match hal.RTCTime, mode hal.AlarmMode) error {
	r.Alarm2, r.Alarm2Mode = match, mode
	return nil
}

func (r *RTC) EnableInterrupts(a1, a2 bool) error {
	r.Alarm1Enabled, r.Alarm2Enabled = a1, a2
	return nil
}

func (r *RTC) GetFlags() (bool, bool, error) { return r.Alarm1Fired, r.Alarm2Fired, nil }

func (r *RTC) ClearFlags() error {
	r.Alarm1Fired, r.Alarm2Fired = false, false
	return nil
}

// EEPROM is an in-memory hal.EEPROM reporting a configurable page/block
// geometry and a short busy period after each write, so durable.Store's
// boundary-split and readiness-poll logic runs against it. ReadAt and
// WriteAt do not check or wrap at page or block boundaries.
type EEPROM struct {
	Mem          []byte
	PageSizeVal  int
	BlockSizeVal int
	Busy         bool
	BusyPolls    int
}

// NewEEPROM builds an EEPROM of size bytes with the given page/block size.
func NewEEPROM(size, pageSize, blockSize int) *EEPROM {
	return &EEPROM{Mem: make([]byte, size), PageSizeVal: pageSize, BlockSizeVal: blockSize}
}

func (e *EEPROM) TotalSize() int { return len(e.Mem) }
func (e *EEPROM) PageSize() int  { return e.PageSizeVal }
func (e *EEPROM) BlockSize() int { return e.BlockSizeVal }

func (e *EEPROM) ReadAt(addr int, buf []byte) error {
	copy(buf, e.Mem[addr:addr+len(buf)])
	return nil
}

func (e *EEPROM) WriteAt(addr int, data []byte) error {
	copy(e.Mem[addr:addr+len(data)], data)
	e.Busy = true
	e.BusyPolls = 2
	return nil
}

func (e *EEPROM) WriteBusy() bool {
	if !e.Busy {
		return false
	}
	if e.BusyPolls > 0 {
		e.BusyPolls--
		return true
	}
	e.Busy = false
	return false
}

// ADCReader is an in-memory hal.ADCReader.
type ADCReader struct {
	Value int64
	Err   error
}

func (a *ADCReader) Read() (int64, error) { return a.Value, a.Err }

// DebouncedInput is an in-memory hal.DebouncedInput with one pending edge.
type DebouncedInput struct{ Pending bool }

func (d *DebouncedInput) RisingEdge() bool {
	if !d.Pending {
		return false
	}
	d.Pending = false
	return true
}

// DHT22Reader is an in-memory hal.DHT22Reader.
type DHT22Reader struct {
	TempMilliC       int32
	HumidityMilliPct int32
	Err              error
}

func (d *DHT22Reader) Read() (int32, int32, error) { return d.TempMilliC, d.HumidityMilliPct, d.Err }

// NewMCUTempReader adapts a mutable cell into a hal.MCUTempReader closure.
func NewMCUTempReader(milliC *int32, err *error) hal.MCUTempReader {
	return func() (int32, error) {
		var e error
		if err != nil {
			e = *err
		}
		return *milliC, e
	}
}

// NewDistanceToVolume builds a hal.DistanceToVolume that scales distance
// linearly: each millimeter the reading sits below fullAtMM adds ulPerMM
// microliters, and readings at or beyond fullAtMM map to zero.
func NewDistanceToVolume(fullAtMM uint32, ulPerMM uint64) hal.DistanceToVolume {
	return func(distanceMM uint32) uint64 {
		if distanceMM >= fullAtMM {
			return 0
		}
		return uint64(fullAtMM-distanceMM) * ulPerMM
	}
}
