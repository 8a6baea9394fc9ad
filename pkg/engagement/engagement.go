// Package engagement implements the multi-stage lifecycle shared by security
// audits and penetration tests.
//
// An engagement is created in the first stage of its configured sequence and
// only ever moves forward, one stage at a time. There is no retreat or
// rollback operation: the progress record is an audit trail, not an editable
// field. Once an engagement reaches the terminal DELIVERED stage it is
// immutable in business terms, though the record itself persists.
package engagement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
	"github.com/blackwolfsec/soc-sdk/pkg/workflow"
)

// Type discriminates the two engagement kinds.
type Type string

const (
	TypeAudit   Type = "audit"
	TypePentest Type = "pentest"
)

// Valid reports whether the type is recognized.
func (t Type) Valid() bool {
	return t == TypeAudit || t == TypePentest
}

// Sequence returns the stage sequence configured for the type.
func (t Type) Sequence() *workflow.Sequence {
	if t == TypePentest {
		return workflow.Pentest()
	}
	return workflow.Audit()
}

// PentestMethod is the testing methodology of a penetration test.
type PentestMethod string

const (
	MethodBlackBox PentestMethod = "BLACK_BOX"
	MethodGreyBox  PentestMethod = "GREY_BOX"
	MethodWhiteBox PentestMethod = "WHITE_BOX"
)

// Engagement is a security audit or penetration test progressing through an
// ordered stage sequence. It exclusively owns its findings.
type Engagement struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Type      Type   `json:"type"`
	Title     string `json:"title"`

	// Stage is the current lifecycle stage. Mutated only by Advance.
	Stage workflow.Stage `json:"stage"`

	Scope         string        `json:"scope"`
	Methodology   string        `json:"methodology,omitempty"`
	TestMethod    PentestMethod `json:"test_method,omitempty"`
	LeadPersonnel string        `json:"lead_personnel,omitempty"`

	// ExecutiveSummary is only meaningful once the engagement is delivered.
	ExecutiveSummary string `json:"executive_summary,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Findings []*Finding `json:"findings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token maintained by the store.
	Version int64 `json:"version"`
}

// CreateInput is the payload for creating an engagement.
type CreateInput struct {
	CompanyID     string        `json:"company_id"`
	Title         string        `json:"title"`
	Type          Type          `json:"type"`
	Scope         string        `json:"scope"`
	Methodology   string        `json:"methodology,omitempty"`
	TestMethod    PentestMethod `json:"test_method,omitempty"`
	LeadPersonnel string        `json:"lead_personnel,omitempty"`
	StartDate     *time.Time    `json:"start_date,omitempty"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
}

// New creates an engagement in the first stage of its type's sequence.
func New(in CreateInput, clk clock.Clock) (*Engagement, error) {
	const op = "engagement.New"

	if in.CompanyID == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "company id is required")
	}
	if in.Title == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "title is required")
	}
	if !in.Type.Valid() {
		return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("unknown engagement type %q", in.Type))
	}
	if in.Scope == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "scope is required")
	}
	if in.Type == TypePentest && in.TestMethod != "" {
		switch in.TestMethod {
		case MethodBlackBox, MethodGreyBox, MethodWhiteBox:
		default:
			return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("unknown test method %q", in.TestMethod))
		}
	}

	now := clk.Now()
	return &Engagement{
		ID:            uuid.NewString(),
		CompanyID:     in.CompanyID,
		Type:          in.Type,
		Title:         in.Title,
		Stage:         in.Type.Sequence().First(),
		Scope:         in.Scope,
		Methodology:   in.Methodology,
		TestMethod:    in.TestMethod,
		LeadPersonnel: in.LeadPersonnel,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Sequence returns the stage sequence this engagement progresses through.
func (e *Engagement) Sequence() *workflow.Sequence {
	return e.Type.Sequence()
}

// AdvanceOption configures an Advance call.
type AdvanceOption func(*advanceOptions)

type advanceOptions struct {
	executiveSummary string
	hasSummary       bool
}

// WithExecutiveSummary attaches an executive summary as part of the
// transition. Typically used when advancing into REPORTING or DELIVERED.
func WithExecutiveSummary(summary string) AdvanceOption {
	return func(o *advanceOptions) {
		o.executiveSummary = summary
		o.hasSummary = true
	}
}

// Advance moves the engagement exactly one stage forward.
//
// Returns a KindTerminalStage error if the engagement is already at the last
// stage, leaving it unchanged. Skipping stages or setting an arbitrary stage
// is not possible through any exported operation.
func (e *Engagement) Advance(clk clock.Clock, opts ...AdvanceOption) error {
	const op = "engagement.Advance"

	var o advanceOptions
	for _, opt := range opts {
		opt(&o)
	}

	next, ok, err := e.Sequence().Next(e.Stage)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if !ok {
		return errors.E(errors.KindTerminalStage, op,
			fmt.Sprintf("engagement is already %s", e.Stage))
	}

	e.Stage = next
	if o.hasSummary {
		e.ExecutiveSummary = o.executiveSummary
	}
	e.UpdatedAt = clk.Now()
	return nil
}

// IsComplete reports whether the engagement has reached the terminal stage
// of its sequence.
func (e *Engagement) IsComplete() bool {
	return e.Stage == e.Sequence().Last()
}

// OpenFindingCount returns the number of findings still OPEN.
func (e *Engagement) OpenFindingCount() int {
	n := 0
	for _, f := range e.Findings {
		if f.Status == FindingOpen {
			n++
		}
	}
	return n
}

// RiskSummary counts the engagement's findings by risk level.
func (e *Engagement) RiskSummary() severity.CountByRisk {
	var c severity.CountByRisk
	for _, f := range e.Findings {
		c.Increment(f.RiskLevel)
	}
	return c
}
