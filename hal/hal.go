// Package hal declares the external-collaborator contracts that the tank and
// hydroponic cores consume. Nothing in this package drives hardware; it is the
// seam between the cores (engine-like facades in pump/guard/recipe/coordinator
// and hydroponic) and whatever drivers a host links in. The cores never infer
// state from unsolicited reads and only trust the last successful transition.
package hal

// Actuator is a binary switch (pump relay, valve, light). Idempotent at the
// logical level: calling TurnOn twice in a row is not an error, but the core
// never infers hardware state from an unsolicited read.
type Actuator interface {
	TurnOn() error
	TurnOff() error
}

// TimeSource replaces the weak-symbol get_tick/delay_ms hooks from the
// original firmware with a single injected capability. Now is a free-running
// millisecond counter; cores never call a global clock.
type TimeSource interface {
	NowMillis() uint32
}

// DistanceToVolume maps a distance reading (millimeters) to a volume estimate
// (microliters). Implementer-defined per tank geometry; absence of a mapping
// function means the sensor is not attached and level-based safety is
// disabled for that resource.
type DistanceToVolume func(distanceMM uint32) uint64

// RTCTime is a broken-down time as the DS3231 reports it.
type RTCTime struct {
	Second, Minute, Hour int // 0-59, 0-59, 0-23
	DayOfWeek            int // 1=Monday .. 7=Sunday
	Day, Month           int // 1-31, 1-12
	Year                 int // 2000-2099
}

// AlarmMode enumerates the subset of DS3231 alarm match modes this system uses.
type AlarmMode int

const (
	AlarmMinuteOfHour AlarmMode = iota // fires once per minute (seconds match ignored)
	AlarmHourMinute                    // fires on hour+minute match
)

// RTC is the real-time clock collaborator.
type RTC interface {
	GetTime() (RTCTime, error)
	SetTime(RTCTime) error
	SetAlarm1(match RTCTime, mode AlarmMode) error
	SetAlarm2(match RTCTime, mode AlarmMode) error
	EnableInterrupts(alarm1, alarm2 bool) error
	GetFlags() (alarm1Fired, alarm2Fired bool, err error)
	ClearFlags() error
}

// EEPROM is a page-writable durable store with at-most-one concurrent
// internal write. Implementations MUST split reads across internal block
// boundaries and writes across both the page boundary and the block
// boundary, and MUST poll for write readiness before the next operation —
// the durable package's Store wrapper enforces the splitting; this interface
// is the raw device seam.
type EEPROM interface {
	TotalSize() int
	PageSize() int
	BlockSize() int
	ReadAt(addr int, buf []byte) error
	WriteAt(addr int, data []byte) error
	WriteBusy() bool
}

// ADCReader produces a single scalar sensor reading (pH, TDS, temperature).
// Errors lift the corresponding axis to "not fresh" until a successful read.
type ADCReader interface {
	Read() (value int64, err error)
}

// DebouncedInput is a manual button or switch edge source (gpio_switch /
// button_manager collaborators). RisingEdge reports and consumes one pending
// edge; it never blocks.
type DebouncedInput interface {
	RisingEdge() bool
}

// DHT22Reader produces a temperature/humidity pair in one bus transaction, as
// the bit-banged DHT22 driver does.
type DHT22Reader interface {
	Read() (tempMilliC int32, humidityMilliPct int32, err error)
}

// MCUTempReader is an optional on-die temperature callback for the
// hydroponic scheduler's error-flag bookkeeping.
type MCUTempReader func() (milliC int32, err error)
