package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// PrometheusProvider implements Provider against a Prometheus registry:
// fully-qualified metric names built from namespace/subsystem/name, a
// registry lookup before creating a new vec, and an HTTP handler for
// scraping.
type PrometheusProvider struct {
	reg *prom.Registry
	mu  sync.RWMutex

	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec

	handler http.Handler
}

// PrometheusProviderOptions configures registry reuse for tests.
type PrometheusProviderOptions struct {
	Registry *prom.Registry
}

// NewPrometheusProvider constructs a PrometheusProvider, creating a
// fresh registry unless one is supplied.
func NewPrometheusProvider(opts PrometheusProviderOptions) *PrometheusProvider {
	reg := opts.Registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prom.CounterVec),
		gauges:     make(map[string]*prom.GaugeVec),
		histograms: make(map[string]*prom.HistogramVec),
		handler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

// MetricsHandler exposes the registry over HTTP for a host-side scraper.
func (p *PrometheusProvider) MetricsHandler() http.Handler { return p.handler }

func buildFQName(c CommonOpts) (string, error) {
	if c.Name == "" {
		return "", errors.New("metric name required")
	}
	fq := c.Name
	if c.Subsystem != "" {
		fq = c.Subsystem + "_" + fq
	}
	if c.Namespace != "" {
		fq = c.Namespace + "_" + fq
	}
	if !metricNameRE.MatchString(fq) {
		return "", fmt.Errorf("invalid metric name: %s", fq)
	}
	return fq, nil
}

func (p *PrometheusProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[fq]; ok {
		return &promCounter{vec: vec}
	}
	vec := prom.NewCounterVec(prom.CounterOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.CounterVec)
		} else {
			return noopCounter{}
		}
	}
	p.counters[fq] = vec
	return &promCounter{vec: vec}
}

func (p *PrometheusProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.gauges[fq]; ok {
		return &promGauge{vec: vec}
	}
	vec := prom.NewGaugeVec(prom.GaugeOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.GaugeVec)
		} else {
			return noopGauge{}
		}
	}
	p.gauges[fq] = vec
	return &promGauge{vec: vec}
}

func (p *PrometheusProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.histograms[fq]; ok {
		return &promHistogram{vec: vec}
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{Name: fq, Help: opts.Help, Buckets: buckets}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.HistogramVec)
		} else {
			return noopHistogram{}
		}
	}
	p.histograms[fq] = vec
	return &promHistogram{vec: vec}
}

// Health reports whether the registry can still gather metric families.
func (p *PrometheusProvider) Health(context.Context) error {
	_, err := p.reg.Gather()
	return err
}

type promCounter struct{ vec *prom.CounterVec }
type promGauge struct{ vec *prom.GaugeVec }
type promHistogram struct{ vec *prom.HistogramVec }

func (c *promCounter) Inc(delta float64, labels ...string) { c.vec.WithLabelValues(labels...).Add(delta) }
func (g *promGauge) Set(v float64, labels ...string) { g.vec.WithLabelValues(labels...).Set(v) }
func (g *promGauge) Add(delta float64, labels ...string) { g.vec.WithLabelValues(labels...).Add(delta) }
func (h *promHistogram) Observe(v float64, labels ...string) {
	h.vec.WithLabelValues(labels...).Observe(v)
}
