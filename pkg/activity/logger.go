// Package activity provides structured activity logging for workflow
// operations.
//
// Every state change in the product should be recorded here to enable:
// - Security monitoring and incident response
// - Compliance and audit trails
// - Debugging and troubleshooting
package activity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// EventType represents the type of activity event.
type EventType string

const (
	// Engagement events
	EventEngagementCreated EventType = "engagement_created"
	EventStageAdvanced     EventType = "stage_advanced"
	EventFindingAdded      EventType = "finding_added"
	EventFindingResolved   EventType = "finding_resolved"

	// Certification events
	EventCertificationIssued   EventType = "certification_issued"
	EventCertificationRevoked  EventType = "certification_revoked"
	EventCertificationExpiring EventType = "certification_expiring"

	// Incident events
	EventIncidentCreated  EventType = "incident_created"
	EventIncidentUpdated  EventType = "incident_updated"
	EventTimelineAppended EventType = "timeline_appended"
	EventSLABreached      EventType = "sla_breached"

	// Service events
	EventServiceStart EventType = "service_start"
	EventServiceStop  EventType = "service_stop"
	EventServiceError EventType = "service_error"
)

// Severity represents log severity level.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event represents an activity event.
type Event struct {
	Timestamp    time.Time              `json:"timestamp"`
	Type         EventType              `json:"type"`
	Severity     Severity               `json:"severity"`
	CompanyID    string                 `json:"company_id,omitempty"`
	EngagementID string                 `json:"engagement_id,omitempty"`
	IncidentID   string                 `json:"incident_id,omitempty"`
	Actor        string                 `json:"actor,omitempty"`
	Message      string                 `json:"message"`
	Error        string                 `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// LoggerConfig configures the activity logger.
type LoggerConfig struct {
	// LogFile is the path to the activity log file.
	// Default: ~/.blackwolf/activity.log
	LogFile string

	// MaxSizeMB is the maximum log file size before rotation.
	// Default: 100MB
	MaxSizeMB int

	// BufferSize is the number of events to buffer before flushing.
	// Default: 100
	BufferSize int

	// FlushInterval is how often to flush buffered events.
	// Default: 5 seconds
	FlushInterval time.Duration

	// Verbose enables console output of activity events.
	Verbose bool
}

// DefaultLoggerConfig returns sensible defaults.
func DefaultLoggerConfig() *LoggerConfig {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}

	return &LoggerConfig{
		LogFile:       filepath.Join(home, ".blackwolf", "activity.log"),
		MaxSizeMB:     100,
		BufferSize:    100,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is the activity logger. Events are buffered in memory and flushed
// to a JSONL file; rotated files are compressed with zstd.
type Logger struct {
	config *LoggerConfig
	file   *os.File
	mu     sync.Mutex

	buffer   []Event
	bufferMu sync.Mutex

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLogger creates a new activity logger.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	// Apply defaults for zero values
	if config.LogFile == "" {
		config.LogFile = DefaultLoggerConfig().LogFile
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 100
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	dir := filepath.Dir(config.LogFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		config: config,
		file:   file,
		buffer: make([]Event, 0, config.BufferSize),
		stopCh: make(chan struct{}),
	}

	return l, nil
}

// Start begins background flushing.
func (l *Logger) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.flushLoop()
}

// Stop stops the logger and flushes remaining events.
func (l *Logger) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()

	l.Flush()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Log records an activity event.
func (l *Logger) Log(event Event) {
	event.Timestamp = time.Now().UTC()

	l.bufferMu.Lock()
	l.buffer = append(l.buffer, event)
	shouldFlush := len(l.buffer) >= l.config.BufferSize
	l.bufferMu.Unlock()

	if l.config.Verbose {
		l.printEvent(event)
	}

	if shouldFlush {
		go l.Flush()
	}
}

// Convenience methods for common event types

// Info logs an informational event.
func (l *Logger) Info(eventType EventType, message string, details map[string]interface{}) {
	l.Log(Event{
		Type:     eventType,
		Severity: SeverityInfo,
		Message:  message,
		Details:  details,
	})
}

// Error logs an error event.
func (l *Logger) Error(eventType EventType, message string, err error, details map[string]interface{}) {
	event := Event{
		Type:     eventType,
		Severity: SeverityError,
		Message:  message,
		Details:  details,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// EngagementCreated logs creation of an engagement.
func (l *Logger) EngagementCreated(companyID, engagementID, engagementType string) {
	l.Log(Event{
		Type:         EventEngagementCreated,
		Severity:     SeverityInfo,
		CompanyID:    companyID,
		EngagementID: engagementID,
		Message:      fmt.Sprintf("Engagement created: %s", engagementType),
		Details: map[string]interface{}{
			"engagement_type": engagementType,
		},
	})
}

// StageAdvanced logs an engagement stage transition.
func (l *Logger) StageAdvanced(companyID, engagementID, from, to string) {
	l.Log(Event{
		Type:         EventStageAdvanced,
		Severity:     SeverityInfo,
		CompanyID:    companyID,
		EngagementID: engagementID,
		Message:      fmt.Sprintf("Stage advanced from %s to %s", from, to),
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// IncidentCreated logs creation of an incident.
func (l *Logger) IncidentCreated(companyID, incidentID, sev string) {
	l.Log(Event{
		Type:       EventIncidentCreated,
		Severity:   SeverityInfo,
		CompanyID:  companyID,
		IncidentID: incidentID,
		Message:    fmt.Sprintf("Incident created with severity %s", sev),
		Details: map[string]interface{}{
			"incident_severity": sev,
		},
	})
}

// SLABreached logs an SLA breach observation.
func (l *Logger) SLABreached(companyID, incidentID string, deadline time.Time) {
	l.Log(Event{
		Type:       EventSLABreached,
		Severity:   SeverityCritical,
		CompanyID:  companyID,
		IncidentID: incidentID,
		Message:    "Incident past its SLA deadline",
		Details: map[string]interface{}{
			"sla_deadline": deadline.Format(time.RFC3339),
		},
	})
}

// Flush writes buffered events to disk, rotating the file first when it has
// grown past the configured size.
func (l *Logger) Flush() {
	l.bufferMu.Lock()
	if len(l.buffer) == 0 {
		l.bufferMu.Unlock()
		return
	}
	events := l.buffer
	l.buffer = make([]Event, 0, l.config.BufferSize)
	l.bufferMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rotateLocked()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = l.file.Write(data)
		_, _ = l.file.Write([]byte("\n"))
	}

	_ = l.file.Sync()
}

// rotateLocked rotates the log file when it exceeds the size limit. The
// rotated file is compressed in the background. Callers hold l.mu.
func (l *Logger) rotateLocked() {
	info, err := l.file.Stat()
	if err != nil || info.Size() < int64(l.config.MaxSizeMB)*1024*1024 {
		return
	}

	rotated := fmt.Sprintf("%s.%s", l.config.LogFile, time.Now().UTC().Format("20060102T150405"))

	_ = l.file.Close()
	if err := os.Rename(l.config.LogFile, rotated); err != nil {
		// Reopen and keep appending to the original path.
		l.file, _ = os.OpenFile(l.config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		return
	}

	file, err := os.OpenFile(l.config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}
	l.file = file

	go func() {
		if err := compressFile(rotated); err == nil {
			_ = os.Remove(rotated)
		}
	}()
}

// compressFile writes a zstd-compressed copy of path at path.zst.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".zst", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// flushLoop periodically flushes buffered events.
func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}

// printEvent prints an event to console in human-readable format.
func (l *Logger) printEvent(event Event) {
	timestamp := event.Timestamp.Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] [%s] %s: %s\n", timestamp, event.Severity, event.Type, event.Message)
	if event.Error != "" {
		fmt.Printf("  Error: %s\n", event.Error)
	}
}
