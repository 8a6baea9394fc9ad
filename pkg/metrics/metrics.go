// Package metrics provides metrics collection and reporting for the SOC SDK.
// It includes interfaces for metric collection and a Prometheus-compatible
// implementation.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Collector is the interface for collecting and reporting metrics.
// Implement this interface to use custom metrics backends (Prometheus, StatsD, etc.).
type Collector interface {
	// Counter operations
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)

	// Gauge operations
	GaugeSet(name string, value float64, labels ...string)
	GaugeInc(name string, labels ...string)
	GaugeDec(name string, labels ...string)

	// Histogram operations
	HistogramObserve(name string, value float64, labels ...string)

	// Summary operations
	SummaryObserve(name string, value float64, labels ...string)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler

	// Reset clears all metrics (for testing)
	Reset()
}

// MetricType represents the type of metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeSummary   MetricType = "summary"
)

// MetricDefinition defines a metric with its metadata.
type MetricDefinition struct {
	Name       string     `json:"name"`
	Type       MetricType `json:"type"`
	Help       string     `json:"help"`
	Labels     []string   `json:"labels,omitempty"`
	Buckets    []float64  `json:"buckets,omitempty"`    // For histograms
	Objectives []float64  `json:"objectives,omitempty"` // For summaries
}

// Default metrics for the SOC workflow service.
var (
	// Engagement metrics
	EngagementsCreated = MetricDefinition{
		Name:   "blackwolf_engagements_created_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of engagements created",
		Labels: []string{"type"},
	}
	StageTransitions = MetricDefinition{
		Name:   "blackwolf_stage_transitions_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of engagement stage transitions",
		Labels: []string{"type", "to_stage"},
	}
	FindingsRecorded = MetricDefinition{
		Name:   "blackwolf_findings_recorded_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of findings recorded",
		Labels: []string{"risk_level"},
	}
	FindingsResolved = MetricDefinition{
		Name:   "blackwolf_findings_resolved_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of findings resolved",
		Labels: []string{},
	}

	// Certification metrics
	CertificationsIssued = MetricDefinition{
		Name:   "blackwolf_certifications_issued_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of certifications issued",
		Labels: []string{"framework"},
	}
	CertificationsExpiringSoon = MetricDefinition{
		Name:   "blackwolf_certifications_expiring_soon",
		Type:   MetricTypeGauge,
		Help:   "Number of active certifications inside the renewal warning window",
		Labels: []string{},
	}

	// Incident metrics
	IncidentsCreated = MetricDefinition{
		Name:   "blackwolf_incidents_created_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of incidents created",
		Labels: []string{"severity"},
	}
	IncidentsOpen = MetricDefinition{
		Name:   "blackwolf_incidents_open",
		Type:   MetricTypeGauge,
		Help:   "Current number of incidents in a non-terminal status",
		Labels: []string{},
	}
	SLABreaches = MetricDefinition{
		Name:   "blackwolf_sla_breaches",
		Type:   MetricTypeGauge,
		Help:   "Current number of open incidents past their SLA deadline",
		Labels: []string{"severity"},
	}
	IncidentResolutionTime = MetricDefinition{
		Name:    "blackwolf_incident_resolution_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Time from incident creation to resolution in seconds",
		Labels:  []string{"severity"},
		Buckets: []float64{300, 900, 1800, 3600, 7200, 14400, 28800, 86400},
	}

	// Store metrics
	StoreOperationDuration = MetricDefinition{
		Name:    "blackwolf_store_operation_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of persistence operations in seconds",
		Labels:  []string{"operation"},
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
	}
	StoreConflicts = MetricDefinition{
		Name:   "blackwolf_store_conflicts_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of optimistic concurrency conflicts",
		Labels: []string{"aggregate"},
	}

	// Monitor metrics
	MonitorSweeps = MetricDefinition{
		Name:   "blackwolf_monitor_sweeps_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of monitor sweeps executed",
		Labels: []string{"status"},
	}
	MonitorSweepDuration = MetricDefinition{
		Name:    "blackwolf_monitor_sweep_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of monitor sweeps in seconds",
		Labels:  []string{},
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}
)

// NopCollector is a no-op metrics collector that discards all metrics.
// Use this when metrics are not needed.
type NopCollector struct{}

func (c *NopCollector) CounterInc(name string, labels ...string)                      {}
func (c *NopCollector) CounterAdd(name string, value float64, labels ...string)       {}
func (c *NopCollector) GaugeSet(name string, value float64, labels ...string)         {}
func (c *NopCollector) GaugeInc(name string, labels ...string)                        {}
func (c *NopCollector) GaugeDec(name string, labels ...string)                        {}
func (c *NopCollector) HistogramObserve(name string, value float64, labels ...string) {}
func (c *NopCollector) SummaryObserve(name string, value float64, labels ...string)   {}
func (c *NopCollector) Handler() http.Handler                                         { return http.NotFoundHandler() }
func (c *NopCollector) Reset()                                                        {}

// InMemoryCollector stores metrics in memory for testing purposes.
type InMemoryCollector struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	summaries  map[string][]float64
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		summaries:  make(map[string][]float64),
	}
}

func (c *InMemoryCollector) key(name string, labels []string) string {
	key := name
	for i := 0; i < len(labels); i += 2 {
		if i+1 < len(labels) {
			key += "," + labels[i] + "=" + labels[i+1]
		}
	}
	return key
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[c.key(name, labels)] += value
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)] = value
}

func (c *InMemoryCollector) GaugeInc(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)]++
}

func (c *InMemoryCollector) GaugeDec(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)]--
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.histograms[key] = append(c.histograms[key], value)
}

func (c *InMemoryCollector) SummaryObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.summaries[key] = append(c.summaries[key], value)
}

func (c *InMemoryCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]float64)
	c.gauges = make(map[string]float64)
	c.histograms = make(map[string][]float64)
	c.summaries = make(map[string][]float64)
}

// GetCounter returns the value of a counter.
func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[c.key(name, labels)]
}

// GetGauge returns the value of a gauge.
func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gauges[c.key(name, labels)]
}

// GetHistogram returns all observations of a histogram.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.histograms[c.key(name, labels)]
}

// GetSummary returns all observations of a summary.
func (c *InMemoryCollector) GetSummary(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summaries[c.key(name, labels)]
}

// Timer is a helper for timing operations and recording to histograms.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

// NewTimer creates a new timer that will record to the given histogram.
func NewTimer(collector Collector, name string, labels ...string) *Timer {
	return &Timer{
		start:     time.Now(),
		collector: collector,
		name:      name,
		labels:    labels,
	}
}

// ObserveDuration records the duration since the timer was created.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.collector.HistogramObserve(t.name, d.Seconds(), t.labels...)
	return d
}

var defaultCollector Collector = &NopCollector{}
var defaultCollectorMu sync.RWMutex

// SetDefaultCollector sets the global default metrics collector.
func SetDefaultCollector(collector Collector) {
	defaultCollectorMu.Lock()
	defer defaultCollectorMu.Unlock()
	if collector == nil {
		collector = &NopCollector{}
	}
	defaultCollector = collector
}

// GetDefaultCollector returns the global default metrics collector.
func GetDefaultCollector() Collector {
	defaultCollectorMu.RLock()
	defer defaultCollectorMu.RUnlock()
	return defaultCollector
}

type contextKey string

const collectorContextKey contextKey = "blackwolf_metrics_collector"

// WithCollector returns a new context with the collector attached.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, collectorContextKey, collector)
}

// CollectorFromContext returns the collector from the context, or the default.
func CollectorFromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(collectorContextKey).(Collector); ok {
		return collector
	}
	return GetDefaultCollector()
}

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
