// Package incident implements incident SLA tracking and the append-only
// incident timeline.
//
// Unlike engagements, incident status is a free state field: any status may
// follow any other. SLA breach is a live-monitoring signal evaluated at read
// time, not a permanent historical flag: once an incident is resolved or
// closed it can never be reported breached again, however late the
// resolution was.
package incident

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// Status is the incident handling status.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusContained     Status = "contained"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// AllStatuses returns the recognized incident statuses.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInvestigating, StatusContained, StatusResolved, StatusClosed}
}

// Valid reports whether the status is recognized.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusContained, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status ends SLA monitoring.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Incident is a tracked security incident with a severity-derived SLA
// deadline and an append-only timeline.
type Incident struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`

	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    severity.Level `json:"severity"`
	Status      Status         `json:"status"`

	AssignedTo     string `json:"assigned_to,omitempty"`
	SourceThreatID string `json:"source_threat_id,omitempty"`

	SLADeadline time.Time  `json:"sla_deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	Timeline []*TimelineEntry `json:"timeline"`

	// Version is the optimistic concurrency token maintained by the store.
	Version int64 `json:"version"`
}

// CreateInput is the payload for opening an incident.
type CreateInput struct {
	CompanyID      string         `json:"company_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       severity.Level `json:"severity"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	SourceThreatID string         `json:"source_threat_id,omitempty"`
}

// New opens an incident in status open with an SLA deadline derived from its
// severity, and records the opening timeline entry.
func New(in CreateInput, policy SLAPolicy, clk clock.Clock) (*Incident, error) {
	const op = "incident.New"

	if in.CompanyID == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "company id is required")
	}
	if in.Title == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "title is required")
	}
	if !in.Severity.Valid() {
		return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("unknown severity %q", in.Severity))
	}

	now := clk.Now()
	inc := &Incident{
		ID:             uuid.NewString(),
		CompanyID:      in.CompanyID,
		Title:          in.Title,
		Description:    in.Description,
		Severity:       in.Severity,
		Status:         StatusOpen,
		AssignedTo:     in.AssignedTo,
		SourceThreatID: in.SourceThreatID,
		SLADeadline:    policy.Deadline(in.Severity, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inc.appendEntry("Incident Created",
		fmt.Sprintf("Incident opened with severity %s", in.Severity), "system", now)
	return inc, nil
}

// NewFromThreat opens an incident from a correlated threat event. The
// numeric threat score (0-10) maps to incident severity the same way the
// correlation engine rates it.
func NewFromThreat(companyID, threatID, threatType string, score int, description string, policy SLAPolicy, clk clock.Clock) (*Incident, error) {
	return New(CreateInput{
		CompanyID:      companyID,
		Title:          fmt.Sprintf("Auto-generated: %s (severity %d)", threatType, score),
		Description:    description,
		Severity:       severity.LevelFromScore(score),
		SourceThreatID: threatID,
	}, policy, clk)
}

// IsBreached reports whether the incident is currently in breach of its SLA:
// not resolved or closed, and past its deadline.
func (i *Incident) IsBreached(now time.Time) bool {
	if i.Status.Terminal() {
		return false
	}
	return now.After(i.SLADeadline)
}

// SetStatus changes the incident status and records a timeline entry.
// Transitions are unconstrained: any status may follow any other. Moving to
// resolved or closed stamps the resolution time.
func (i *Incident) SetStatus(s Status, performedBy string, clk clock.Clock) error {
	const op = "incident.SetStatus"

	if !s.Valid() {
		return errors.E(errors.KindInvalidInput, op, fmt.Sprintf("unknown status %q", s))
	}
	if s == i.Status {
		return nil
	}

	now := clk.Now()
	old := i.Status
	i.Status = s
	if s.Terminal() && i.ResolvedAt == nil {
		i.ResolvedAt = &now
	}
	i.UpdatedAt = now

	i.appendEntry("Status Changed",
		fmt.Sprintf("Status changed from %s to %s", old, s), performedBy, now)
	return nil
}

// Assign sets the assignee and records a timeline entry.
func (i *Incident) Assign(assignee, performedBy string, clk clock.Clock) {
	now := clk.Now()
	i.AssignedTo = assignee
	i.UpdatedAt = now
	i.appendEntry("Assigned", fmt.Sprintf("Incident assigned to %s", assignee), performedBy, now)
}
