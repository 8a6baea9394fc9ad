// Package monitor runs the background sweep that observes SLA breaches and
// certification expiry across all tenants.
//
// The sweep is read-only: breaches and expiry are derived facts, so the
// monitor reports them through metrics and the activity log without
// rewriting stored state.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackwolfsec/soc-sdk/pkg/activity"
	"github.com/blackwolfsec/soc-sdk/pkg/certification"
	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/core"
	"github.com/blackwolfsec/soc-sdk/pkg/incident"
	"github.com/blackwolfsec/soc-sdk/pkg/metrics"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// Store is the subset of the persistence layer the monitor reads from.
type Store interface {
	ListOpenIncidents(ctx context.Context) ([]*incident.Incident, error)
	ListActiveCertifications(ctx context.Context) ([]*certification.Certification, error)
}

// ActivityLogger receives breach and expiry observations.
type ActivityLogger interface {
	Log(event activity.Event)
}

// Config configures the Monitor.
type Config struct {
	// SweepInterval is how often the sweep runs.
	// Default: 1 minute.
	SweepInterval time.Duration

	// CertPolicy supplies the expiring-soon window.
	CertPolicy certification.Policy

	// EventsPerSecond caps how fast breach events are written to the
	// activity log during a sweep. Default: 50.
	EventsPerSecond float64

	// Clock supplies the current time. Default: system clock.
	Clock clock.Clock

	// Metrics receives gauge updates. Default: global collector.
	Metrics metrics.Collector

	// Activity receives breach and expiry events. Optional.
	Activity ActivityLogger

	// Logger receives operational messages. Default: stderr logger.
	Logger core.Logger

	// Verbose lowers the default logger to debug level.
	Verbose bool
}

// Monitor periodically sweeps the store for SLA breaches and expiring
// certifications.
type Monitor struct {
	store   Store
	config  *Config
	clk     clock.Clock
	metrics metrics.Collector
	limiter *rate.Limiter
	log     core.Logger

	mu            sync.RWMutex
	running       bool
	lastSweep     time.Time
	lastError     error
	reportedSLA   map[string]bool
	reportedCerts map[string]bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Monitor over the given store.
func New(store Store, config *Config) *Monitor {
	if config == nil {
		config = &Config{}
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.EventsPerSecond <= 0 {
		config.EventsPerSecond = 50
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.System{}
	}
	collector := config.Metrics
	if collector == nil {
		collector = metrics.GetDefaultCollector()
	}
	logger := config.Logger
	if logger == nil {
		level := core.LogLevelInfo
		if config.Verbose {
			level = core.LogLevelDebug
		}
		logger = core.NewDefaultLogger("monitor", level)
	}

	return &Monitor{
		store:         store,
		config:        config,
		clk:           clk,
		metrics:       collector,
		log:           logger,
		limiter:       rate.NewLimiter(rate.Limit(config.EventsPerSecond), 1),
		reportedSLA:   make(map[string]bool),
		reportedCerts: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Start begins the sweep loop. The first sweep runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.log.Debug("starting sweep loop (interval=%v)", m.config.SweepInterval)

	if err := m.Sweep(ctx); err != nil {
		m.log.Warn("initial sweep failed: %v", err)
	}

	m.wg.Add(1)
	go m.sweepLoop(ctx)

	return nil
}

// Stop stops the sweep loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

// Status reports the monitor's last sweep outcome.
type Status struct {
	Running   bool      `json:"running"`
	LastSweep time.Time `json:"last_sweep"`
	LastError string    `json:"last_error,omitempty"`
}

// Status returns the current monitor status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Running:   m.running,
		LastSweep: m.lastSweep,
	}
	if m.lastError != nil {
		st.LastError = m.lastError.Error()
	}
	return st
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.log.Warn("sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs one pass over open incidents and active certifications,
// updating gauges and logging newly observed breaches.
func (m *Monitor) Sweep(ctx context.Context) error {
	timer := metrics.NewTimer(m.metrics, metrics.MonitorSweepDuration.Name)
	defer timer.ObserveDuration()

	now := m.clk.Now()

	err := m.sweepIncidents(ctx, now)
	if cerr := m.sweepCertifications(ctx, now); err == nil {
		err = cerr
	}

	m.mu.Lock()
	m.lastSweep = now
	m.lastError = err
	m.mu.Unlock()

	if err != nil {
		m.metrics.CounterInc(metrics.MonitorSweeps.Name, "status", "error")
		return err
	}
	m.metrics.CounterInc(metrics.MonitorSweeps.Name, "status", "ok")
	return nil
}

func (m *Monitor) sweepIncidents(ctx context.Context, now time.Time) error {
	open, err := m.store.ListOpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("list open incidents: %w", err)
	}

	breached := make(map[severity.Level]int)
	for _, in := range open {
		if !in.IsBreached(now) {
			continue
		}
		breached[in.Severity]++
		m.reportBreach(ctx, in)
	}

	m.metrics.GaugeSet(metrics.IncidentsOpen.Name, float64(len(open)))
	for _, level := range severity.AllLevels() {
		m.metrics.GaugeSet(metrics.SLABreaches.Name,
			float64(breached[level]), "severity", string(level))
	}
	return nil
}

func (m *Monitor) sweepCertifications(ctx context.Context, now time.Time) error {
	active, err := m.store.ListActiveCertifications(ctx)
	if err != nil {
		return fmt.Errorf("list active certifications: %w", err)
	}

	issuer := certification.NewIssuer(m.config.CertPolicy, m.clk)

	expiring := 0
	for _, c := range active {
		if c.EffectiveStatus(now) == certification.StatusExpired {
			continue
		}
		if !issuer.IsExpiringSoon(c, now) {
			continue
		}
		expiring++
		m.reportExpiring(ctx, c, now)
	}

	m.metrics.GaugeSet(metrics.CertificationsExpiringSoon.Name, float64(expiring))
	return nil
}

// reportBreach logs a breach once per incident.
func (m *Monitor) reportBreach(ctx context.Context, in *incident.Incident) {
	if m.config.Activity == nil {
		return
	}

	m.mu.Lock()
	seen := m.reportedSLA[in.ID]
	m.reportedSLA[in.ID] = true
	m.mu.Unlock()
	if seen {
		return
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return
	}
	m.config.Activity.Log(activity.Event{
		Type:       activity.EventSLABreached,
		Severity:   activity.SeverityCritical,
		CompanyID:  in.CompanyID,
		IncidentID: in.ID,
		Message:    "Incident past its SLA deadline",
		Details: map[string]interface{}{
			"incident_severity": string(in.Severity),
			"sla_deadline":      in.SLADeadline.Format(time.RFC3339),
		},
	})
}

// reportExpiring logs an expiry warning once per certification.
func (m *Monitor) reportExpiring(ctx context.Context, c *certification.Certification, now time.Time) {
	if m.config.Activity == nil {
		return
	}

	m.mu.Lock()
	seen := m.reportedCerts[c.ID]
	m.reportedCerts[c.ID] = true
	m.mu.Unlock()
	if seen {
		return
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return
	}
	days := int(c.ExpiresAt.Sub(now).Hours() / 24)
	m.config.Activity.Log(activity.Event{
		Type:      activity.EventCertificationExpiring,
		Severity:  activity.SeverityWarning,
		CompanyID: c.CompanyID,
		Message:   fmt.Sprintf("Certification %s expires in %s days", c.Title, strconv.Itoa(days)),
		Details: map[string]interface{}{
			"certification_id":   c.ID,
			"certification_type": string(c.Type),
			"expires_at":         c.ExpiresAt.Format(time.RFC3339),
		},
	})
}
