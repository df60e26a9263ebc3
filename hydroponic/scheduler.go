package hydroponic

import (
	"context"

	"hydrocore/hal"
	"hydrocore/telemetry/metrics"
	"hydrocore/telemetry/tracing"
)

// ErrorFlag bits for the scheduler's independent error bitmask.
type ErrorFlag uint8

const (
	ErrorRTC ErrorFlag = 1 << iota
	ErrorDHT22
	ErrorEEPROM
	ErrorMCUTemp
)

// Config holds the scheduler's tunables.
type Config struct {
	LightOnHour int `yaml:"light_on_hour"` // default 7
	LightOffHour int `yaml:"light_off_hour"` // default 23
	HeartbeatPeriodMin uint32 `yaml:"heartbeat_period_min"` // default 5
	PowerLossDetectMin uint32 `yaml:"power_loss_detect_min"` // default 5
	MaxDeficitMinutes uint32 `yaml:"max_deficit_minutes"` // default 10080 (7 days)
}

// DefaultConfig returns the documented light-schedule defaults.
func DefaultConfig() Config {
	return Config{
		LightOnHour: 7,
		LightOffHour: 23,
		HeartbeatPeriodMin: 5,
		PowerLossDetectMin: 5,
		MaxDeficitMinutes: 10080,
	}
}

// Scheduler drives one light actuator from RTC alarm ticks, a DHT22
// reading, and an optional MCU temperature callback, persisting an
// outage-deficit record through a RecordStore.
type Scheduler struct {
	cfg Config
	rtc hal.RTC
	light hal.Actuator
	dht hal.DHT22Reader
	mcu hal.MCUTempReader
	store *RecordStore

	lastProcessedMin int64
	heartbeatSlot uint32
	compensationActive bool
	errorFlags ErrorFlag
	lightOn bool

	bootCount uint32
	deficitMinutes uint32
	outageCount uint32

	lastTempMilliC int32
	lastHumidityMilli int32

	// Metrics is the backend the deficit-minute gauge reports through;
	// New wires a noop Provider. Tracer, if set, wraps each minute tick
	// in one span.
	Metrics metrics.Provider
	Tracer  *tracing.Tracer

	deficitGauge metrics.Gauge
}

// New constructs a Scheduler bound to its HAL collaborators and durable
// record store. Call Boot once before the first minute tick.
func New(cfg Config, rtc hal.RTC, light hal.Actuator, dht hal.DHT22Reader, mcu hal.MCUTempReader, store *RecordStore) *Scheduler {
	s := &Scheduler{cfg: cfg, rtc: rtc, light: light, dht: dht, mcu: mcu, store: store}
	s.SetMetrics(nil)
	return s
}

// SetMetrics installs the metrics.Provider the scheduler reports through
// and (re)creates its deficit-minute gauge from it.
func (s *Scheduler) SetMetrics(p metrics.Provider) {
	if p == nil {
		p = metrics.NewNoopProvider()
	}
	s.Metrics = p
	s.deficitGauge = p.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "hydrocore", Subsystem: "hydroponic", Name: "deficit_minutes",
		Help: "remaining night-compensation deficit in minutes",
	}})
	s.deficitGauge.Set(float64(s.deficitMinutes))
}

func brokenDownToMinuteIndex(t hal.RTCTime) int64 {
	year := t.Year
	days := int64(0)
	for y := 2000; y < year; y++ {
		days += 365
		if isLeapYear(y) {
			days++
		}
	}
	days += int64(daysBeforeMonth(year, t.Month))
	days += int64(t.Day - 1)
	return days*MinutesPerDay + int64(t.Hour)*60 + int64(t.Minute)
}

func isLeapYear(y int) bool { return y%4 == 0 }

func daysBeforeMonth(year, month int) int {
	lengths := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if isLeapYear(year) {
		lengths[1] = 29
	}
	total := 0
	for m := 1; m < month; m++ {
		total += lengths[m-1]
	}
	return total
}

// Boot loads the durable record (if valid), detects a power-loss outage
// by comparing last-alive against the current RTC time, accumulates any
// missed-light deficit, and forces a persistence write.
func (s *Scheduler) Boot() error {
	s.bootCount = 0
	now, err := s.rtc.GetTime()
	if err != nil {
		s.errorFlags |= ErrorRTC
		return err
	}
	nowMin := brokenDownToMinuteIndex(now)
	s.lastProcessedMin = nowMin

	rec, ok, err := s.store.Load()
	if err != nil {
		s.errorFlags |= ErrorEEPROM
	}
	if ok {
		s.bootCount = rec.BootCount
		s.deficitMinutes = rec.DeficitMinutes
		s.outageCount = rec.OutageCount
		s.lightOn = rec.LightOn
		gap := nowMin - int64(rec.LastAliveMin)
		if gap > int64(s.cfg.PowerLossDetectMin) {
			if s.outageCount != 0xFFFFFFFF {
				s.outageCount++
			}
			missed := Overlap(int64(rec.LastAliveMin), nowMin, s.cfg.LightOnHour, s.cfg.LightOffHour)
			s.deficitMinutes = clampDeficit(s.deficitMinutes, uint32(missed), s.cfg.MaxDeficitMinutes)
		}
	}
	s.bootCount++
	s.compensationActive = s.deficitMinutes > 0 && !s.inWindow(now)
	s.deficitGauge.Set(float64(s.deficitMinutes))
	return s.forceSave(nowMin)
}

func clampDeficit(before, missed, cap uint32) uint32 {
	sum := uint64(before) + uint64(missed)
	if sum > uint64(cap) {
		return cap
	}
	return uint32(sum)
}

func (s *Scheduler) inWindow(t hal.RTCTime) bool {
	minuteOfDay := t.Hour*60 + t.Minute
	on := s.cfg.LightOnHour * 60
	off := s.cfg.LightOffHour * 60
	if s.cfg.LightOnHour == s.cfg.LightOffHour {
		return true
	}
	if s.cfg.LightOnHour < s.cfg.LightOffHour {
		return minuteOfDay >= on && minuteOfDay < off
	}
	return minuteOfDay >= on || minuteOfDay < off
}

// DesiredLightState reports whether the light should be on: within the
// normal window, or outside it while a compensation deficit remains.
func (s *Scheduler) DesiredLightState(t hal.RTCTime) bool {
	if s.inWindow(t) {
		return true
	}
	return s.deficitMinutes > 0
}

// ProcessMinuteTick handles the per-minute Alarm-1 event: reads DHT22 (and
// optional MCU temperature), recomputes derived state, toggles the light,
// decrements the deficit if compensation was active and we're still
// outside the window, and schedules a durable write per the heartbeat
// and forced-transition rules. When Tracer is set, the tick runs inside
// one span.
func (s *Scheduler) ProcessMinuteTick(ctx context.Context, now hal.RTCTime) error {
	if s.Tracer != nil {
		_, span := s.Tracer.StartTick(ctx, "scheduler.process_minute_tick")
		defer span.End()
	}
	nowMin := brokenDownToMinuteIndex(now)

	if temp, hum, err := s.dht.Read(); err != nil {
		s.errorFlags |= ErrorDHT22
	} else {
		s.errorFlags &^= ErrorDHT22
		s.lastTempMilliC = temp
		s.lastHumidityMilli = hum
	}
	if s.mcu != nil {
		if _, err := s.mcu(); err != nil {
			s.errorFlags |= ErrorMCUTemp
		} else {
			s.errorFlags &^= ErrorMCUTemp
		}
	}

	elapsed := nowMin - s.lastProcessedMin
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > 60 {
		elapsed = 60
	}

	wasActive := s.compensationActive
	outsideWindow := !s.inWindow(now)
	deficitWasZero := s.deficitMinutes == 0

	if wasActive && outsideWindow && elapsed > 0 {
		dec := uint32(elapsed)
		if dec > s.deficitMinutes {
			dec = s.deficitMinutes
		}
		s.deficitMinutes -= dec
	}

	s.compensationActive = s.deficitMinutes > 0 && outsideWindow
	deficitJustZero := !deficitWasZero && s.deficitMinutes == 0
	s.deficitGauge.Set(float64(s.deficitMinutes))

	desired := s.DesiredLightState(now)
	lightChanged := desired != s.lightOn
	if lightChanged {
		if desired {
			if err := s.light.TurnOn(); err != nil {
				return err
			}
		} else if err := s.light.TurnOff(); err != nil {
			return err
		}
		s.lightOn = desired
	}

	s.lastProcessedMin = nowMin

	forceWrite := wasActive != s.compensationActive || deficitJustZero
	s.heartbeatSlot++
	dueHeartbeat := s.cfg.HeartbeatPeriodMin > 0 && s.heartbeatSlot >= s.cfg.HeartbeatPeriodMin
	if dueHeartbeat {
		s.heartbeatSlot = 0
	}
	if forceWrite || dueHeartbeat {
		return s.forceSave(nowMin)
	}
	return nil
}

func (s *Scheduler) forceSave(nowMin int64) error {
	rec := Record{
		Magic: RecordMagic,
		Version: RecordVersion,
		BootCount: s.bootCount,
		LastAliveMin: uint32(nowMin),
		DeficitMinutes: s.deficitMinutes,
		OutageCount: s.outageCount,
		LightOn: s.lightOn,
	}
	if err := s.store.Save(rec); err != nil {
		s.errorFlags |= ErrorEEPROM
		return err
	}
	s.errorFlags &^= ErrorEEPROM
	return nil
}

// ErrorFlags returns the current sticky error bitmask; a
// nonzero value should drive the host's error LED.
func (s *Scheduler) ErrorFlags() ErrorFlag { return s.errorFlags }

// DeficitMinutes returns the current outage-compensation deficit.
func (s *Scheduler) DeficitMinutes() uint32 { return s.deficitMinutes }

// OutageCount returns the cumulative saturating outage counter.
func (s *Scheduler) OutageCount() uint32 { return s.outageCount }

// LightOn reports the cached actuator state.
func (s *Scheduler) LightOn() bool { return s.lightOn }

// CompensationActive reports whether night compensation is currently engaged.
func (s *Scheduler) CompensationActive() bool { return s.compensationActive }
