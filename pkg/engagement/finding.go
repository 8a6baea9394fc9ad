package engagement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// FindingStatus is the lifecycle status of a finding.
type FindingStatus string

const (
	// FindingOpen is the initial status of every finding.
	FindingOpen FindingStatus = "OPEN"

	// FindingResolved is terminal. Resolution is not reversible.
	FindingResolved FindingStatus = "RESOLVED"
)

// Finding is a discovered issue owned by exactly one engagement.
// Findings are never deleted or archived; they track their own OPEN/RESOLVED
// lifecycle independently of the engagement's stage.
type Finding struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`

	Title          string        `json:"title"`
	Description    string        `json:"description"`
	RiskLevel      severity.Risk `json:"risk_level"`
	CVSSScore      float64       `json:"cvss_score"`
	AffectedAsset  string        `json:"affected_asset"`
	Recommendation string        `json:"recommendation,omitempty"`

	Status     FindingStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

// FindingInput is the payload for attaching a finding to an engagement.
type FindingInput struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	RiskLevel      severity.Risk `json:"risk_level"`
	CVSSScore      float64       `json:"cvss_score"`
	AffectedAsset  string        `json:"affected_asset"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// AddFinding attaches a new OPEN finding to the engagement.
//
// Findings may be added at any stage; audits commonly record them while
// SCANNING or TESTING. The CVSS score must be within [0, 10] and the risk
// level must be one of the recognized values.
func (e *Engagement) AddFinding(in FindingInput, clk clock.Clock) (*Finding, error) {
	const op = "engagement.AddFinding"

	if in.Title == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "title is required")
	}
	if !in.RiskLevel.Valid() {
		return nil, errors.E(errors.KindInvalidInput, op,
			fmt.Sprintf("unknown risk level %q", in.RiskLevel))
	}
	if in.CVSSScore < 0 || in.CVSSScore > 10 {
		return nil, errors.E(errors.KindInvalidInput, op,
			fmt.Sprintf("cvss score %.1f out of range [0, 10]", in.CVSSScore))
	}
	if in.AffectedAsset == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "affected asset is required")
	}

	f := &Finding{
		ID:             uuid.NewString(),
		EngagementID:   e.ID,
		Title:          in.Title,
		Description:    in.Description,
		RiskLevel:      in.RiskLevel,
		CVSSScore:      in.CVSSScore,
		AffectedAsset:  in.AffectedAsset,
		Recommendation: in.Recommendation,
		Status:         FindingOpen,
		CreatedAt:      clk.Now(),
	}

	e.Findings = append(e.Findings, f)
	e.UpdatedAt = f.CreatedAt
	return f, nil
}

// Finding returns the finding with the given id, if it belongs to this
// engagement.
func (e *Engagement) Finding(id string) (*Finding, bool) {
	for _, f := range e.Findings {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// ResolveFinding transitions a finding from OPEN to RESOLVED and stamps the
// resolution time.
//
// Resolving an already-resolved finding returns a KindAlreadyResolved error
// rather than succeeding silently, so stale-state bugs surface in the caller
// instead of being masked.
func (e *Engagement) ResolveFinding(id string, clk clock.Clock) (*Finding, error) {
	const op = "engagement.ResolveFinding"

	f, ok := e.Finding(id)
	if !ok {
		return nil, errors.E(errors.KindNotFound, op,
			fmt.Sprintf("finding %s does not exist on this engagement", id))
	}
	if f.Status == FindingResolved {
		return nil, errors.E(errors.KindAlreadyResolved, op,
			fmt.Sprintf("finding %s is already resolved", id))
	}

	now := clk.Now()
	f.Status = FindingResolved
	f.ResolvedAt = &now
	e.UpdatedAt = now
	return f, nil
}
