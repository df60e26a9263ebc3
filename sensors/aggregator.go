package sensors

import "hydrocore/timeutil"

// Axis identifies one of the three tracked scalar readings.
type Axis int

const (
	AxisTemperature Axis = 1 << iota
	AxisPH
	AxisTDS
)

// AxisMask combines Axis values for the are_fresh / are_newer_than queries.
type AxisMask int

// AllAxes is the full mask covering temperature, pH, and TDS.
const AllAxes AxisMask = AxisMask(AxisTemperature | AxisPH | AxisTDS)

type scalarReading struct {
	value int64
	lastUpdate uint32
	valid bool
}

// Aggregator tracks temperature (milli-C), pH (units x1000), and TDS (ppm),
// each with its own timestamp and validity flag, under one shared staleness
// bound.
type Aggregator struct {
	staleBoundMS uint32
	temperature scalarReading
	ph scalarReading
	tds scalarReading
}

// NewAggregator constructs an Aggregator with the given shared staleness bound.
func NewAggregator(staleBoundMS uint32) *Aggregator {
	return &Aggregator{staleBoundMS: staleBoundMS}
}

// UpdateTemperature pushes a new temperature reading (milli-degrees-C).
func (a *Aggregator) UpdateTemperature(now uint32, milliC int64) {
	a.temperature = scalarReading{value: milliC, lastUpdate: now, valid: true}
}

// UpdatePH pushes a new pH reading (units x1000).
func (a *Aggregator) UpdatePH(now uint32, phX1000 int64) {
	a.ph = scalarReading{value: phX1000, lastUpdate: now, valid: true}
}

// UpdateTDS pushes a new TDS reading (ppm).
func (a *Aggregator) UpdateTDS(now uint32, ppm int64) {
	a.tds = scalarReading{value: ppm, lastUpdate: now, valid: true}
}

// InvalidateTemperature / InvalidatePH / InvalidateTDS lift the "not fresh"
// state after a failed ADC/bus read.
func (a *Aggregator) InvalidateTemperature() { a.temperature.valid = false }
func (a *Aggregator) InvalidatePH()          { a.ph.valid = false }
func (a *Aggregator) InvalidateTDS()         { a.tds.valid = false }

// TemperatureMilliC, PHX1000, TDSppm return the last pushed value regardless
// of freshness; callers must check freshness separately.
func (a *Aggregator) TemperatureMilliC() int64 { return a.temperature.value }
func (a *Aggregator) PHX1000() int64           { return a.ph.value }
func (a *Aggregator) TDSppm() int64            { return a.tds.value }

func (a *Aggregator) fresh(now uint32, r scalarReading) bool {
	if !r.valid {
		return false
	}
	if a.staleBoundMS == 0 {
		return true
	}
	return timeutil.SinceMillis(now, r.lastUpdate) <= int32(a.staleBoundMS)
}

// IsFreshTemperature / IsFreshPH / IsFreshTDS report per-axis freshness.
func (a *Aggregator) IsFreshTemperature(now uint32) bool { return a.fresh(now, a.temperature) }
func (a *Aggregator) IsFreshPH(now uint32) bool { return a.fresh(now, a.ph) }
func (a *Aggregator) IsFreshTDS(now uint32) bool { return a.fresh(now, a.tds) }

// AreFresh reports whether every axis named in mask is fresh.
func (a *Aggregator) AreFresh(now uint32, mask AxisMask) bool {
	if mask&AxisMask(AxisTemperature) != 0 && !a.IsFreshTemperature(now) {
		return false
	}
	if mask&AxisMask(AxisPH) != 0 && !a.IsFreshPH(now) {
		return false
	}
	if mask&AxisMask(AxisTDS) != 0 && !a.IsFreshTDS(now) {
		return false
	}
	return true
}

// AreNewerThan reports whether every axis named in mask was updated strictly
// after the given timestamp (wrap-safe), e.g. whether the recipe controller
// has genuinely new input since its previous step. The coordinator package
// does not call it.
func (a *Aggregator) AreNewerThan(after uint32, mask AxisMask) bool {
	newer := func(r scalarReading) bool {
		return r.valid && timeutil.After(r.lastUpdate, after)
	}
	if mask&AxisMask(AxisTemperature) != 0 && !newer(a.temperature) {
		return false
	}
	if mask&AxisMask(AxisPH) != 0 && !newer(a.ph) {
		return false
	}
	if mask&AxisMask(AxisTDS) != 0 && !newer(a.tds) {
		return false
	}
	return true
}
