// Package metrics defines the Provider abstraction the cores report
// through: counters for dose/event counts, gauges for tank volumes and
// deficit minutes, histograms for dose sizes. Grounded on a conventional
// internal metrics abstraction's Counter/Gauge/Histogram seam, kept so a
// host can swap the noop backend for Prometheus or OTel without touching
// the cores.
package metrics

import "context"

// Provider is the minimal metrics contract the coordinator and scheduler
// report through.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	Health(ctx context.Context) error
}

// Counter is a monotonic accumulator (doses committed, events dropped).
type Counter interface{ Inc(delta float64, labels ...string) }

// Gauge is a point-in-time value (tank volume, deficit minutes).
type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}

// Histogram observes a distribution (dose volumes, pump run durations).
type Histogram interface{ Observe(v float64, labels ...string) }

// CommonOpts names a metric for registration with its backend.
type CommonOpts struct {
	Namespace, Subsystem, Name, Help string
	Labels []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

// NewNoopProvider returns a Provider that discards every observation;
// the default when no backend is configured.
func NewNoopProvider() Provider { return noopProvider{} }

func (noopProvider) NewCounter(CounterOpts) Counter       { return noopCounter{} }
func (noopProvider) NewGauge(GaugeOpts) Gauge             { return noopGauge{} }
func (noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (noopProvider) Health(context.Context) error { return nil }

func (noopCounter) Inc(float64, ...string) {}
func (noopGauge) Set(float64, ...string) {}
func (noopGauge) Add(float64, ...string) {}
func (noopHistogram) Observe(float64, ...string) {}
