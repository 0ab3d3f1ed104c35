package telemetry

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics records metrics through a Prometheus registry, for deployments
// that scrape /metrics rather than export OTLP. Tag pairs become label
// values; the label set is derived lazily per metric name from the first
// observation and must stay consistent thereafter (a Prometheus constraint).
type PromMetrics struct {
	reg prometheus.Registerer

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	timers   map[string]*prometheus.HistogramVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewPromMetrics constructs a Metrics recorder registered against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	return &PromMetrics{
		reg:      reg,
		counters: map[string]*prometheus.CounterVec{},
		timers:   map[string]*prometheus.HistogramVec{},
		gauges:   map[string]*prometheus.GaugeVec{},
	}
}

func tagKeys(tags []string) []string {
	keys := make([]string, 0, len(tags)/2+1)
	for i := 0; i < len(tags); i += 2 {
		keys = append(keys, tags[i])
	}
	return keys
}

func tagValues(tags []string) prometheus.Labels {
	labels := prometheus.Labels{}
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		labels[tags[i]] = v
	}
	return labels
}

func (m *PromMetrics) IncCounter(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sanitize(name)
	c, ok := m.counters[key]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: key}, tagKeys(tags))
		m.reg.Register(c) //nolint:errcheck // duplicate registration across calls is expected and harmless
		m.counters[key] = c
	}
	c.With(tagValues(tags)).Add(value)
}

func (m *PromMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sanitize(name)
	h, ok := m.timers[key]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: key}, tagKeys(tags))
		m.reg.Register(h) //nolint:errcheck
		m.timers[key] = h
	}
	h.With(tagValues(tags)).Observe(duration.Seconds())
}

func (m *PromMetrics) RecordGauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sanitize(name)
	g, ok := m.gauges[key]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: key}, tagKeys(tags))
		m.reg.Register(g) //nolint:errcheck
		m.gauges[key] = g
	}
	g.With(tagValues(tags)).Set(value)
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}
