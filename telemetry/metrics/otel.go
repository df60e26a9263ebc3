package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProvider implements Provider against an OpenTelemetry SDK
// MeterProvider, the alternative backend to PrometheusProvider: same
// CommonOpts-derived fully-qualified names (buildFQName), same
// registry-on-first-use shape, but OTel has no native Set-a-gauge
// instrument, so Gauge is bridged onto a Float64UpDownCounter by adding
// the delta from the last observed value per label set.
type OTelProvider struct {
	meter otelmetric.Meter
}

// OTelProviderOptions configures the backing MeterProvider. A caller
// wanting a real exporter builds its own *sdkmetric.MeterProvider (with
// the desired Reader/exporter attached) and passes it here; a nil
// MeterProvider gets an exporterless one, matching NewSDKProvider in the
// tracing package.
type OTelProviderOptions struct {
	MeterProvider *sdkmetric.MeterProvider
}

// NewOTelProvider constructs an OTelProvider.
func NewOTelProvider(opts OTelProviderOptions) *OTelProvider {
	mp := opts.MeterProvider
	if mp == nil {
		mp = sdkmetric.NewMeterProvider()
	}
	return &OTelProvider{meter: mp.Meter("hydrocore")}
}

func (p *OTelProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopCounter{}
	}
	inst, err := p.meter.Float64Counter(fq, otelmetric.WithDescription(opts.Help))
	if err != nil {
		return noopCounter{}
	}
	return &otelCounter{c: inst, labelKeys: opts.Labels}
}

func (p *OTelProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopGauge{}
	}
	inst, err := p.meter.Float64UpDownCounter(fq, otelmetric.WithDescription(opts.Help))
	if err != nil {
		return noopGauge{}
	}
	return &otelGauge{g: inst, labelKeys: opts.Labels, last: make(map[string]float64)}
}

func (p *OTelProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopHistogram{}
	}
	histOpts := []otelmetric.Float64HistogramOption{otelmetric.WithDescription(opts.Help)}
	if len(opts.Buckets) > 0 {
		histOpts = append(histOpts, otelmetric.WithExplicitBucketBoundaries(opts.Buckets...))
	}
	inst, err := p.meter.Float64Histogram(fq, histOpts...)
	if err != nil {
		return noopHistogram{}
	}
	return &otelHistogram{h: inst, labelKeys: opts.Labels}
}

// Health always succeeds: an exporterless MeterProvider has no liveness
// signal of its own to report on.
func (p *OTelProvider) Health(context.Context) error { return nil }

type otelCounter struct {
	c         otelmetric.Float64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	c.c.Add(context.Background(), delta, otelmetric.WithAttributes(toAttributes(c.labelKeys, labels)...))
}

type otelGauge struct {
	g         otelmetric.Float64UpDownCounter
	labelKeys []string
	mu        sync.Mutex
	last      map[string]float64
}

func (g *otelGauge) Set(v float64, labels ...string) {
	key := fmt.Sprint(labels)
	g.mu.Lock()
	diff := v - g.last[key]
	g.last[key] = v
	g.mu.Unlock()
	if diff != 0 {
		g.g.Add(context.Background(), diff, otelmetric.WithAttributes(toAttributes(g.labelKeys, labels)...))
	}
}

func (g *otelGauge) Add(delta float64, labels ...string) {
	key := fmt.Sprint(labels)
	g.mu.Lock()
	g.last[key] += delta
	g.mu.Unlock()
	g.g.Add(context.Background(), delta, otelmetric.WithAttributes(toAttributes(g.labelKeys, labels)...))
}

type otelHistogram struct {
	h         otelmetric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(v float64, labels ...string) {
	h.h.Record(context.Background(), v, otelmetric.WithAttributes(toAttributes(h.labelKeys, labels)...))
}

func toAttributes(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, attribute.String(keys[i], values[i]))
	}
	return out
}
