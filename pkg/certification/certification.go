// Package certification gates compliance certification issuance on
// engagement completion and tracks the certification lifecycle.
//
// Expiry is derived, never pushed: no background process flips ACTIVE to
// EXPIRED. Every consumer reads through EffectiveStatus, which applies the
// derived check, so a stale stored status is never observable.
package certification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/engagement"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// Type is a compliance framework.
type Type string

const (
	TypeISO27001 Type = "ISO_27001"
	TypeSOC2     Type = "SOC2"
	TypePCIDSS   Type = "PCI_DSS"
	TypeGDPR     Type = "GDPR"
	TypeHIPAA    Type = "HIPAA"
	TypeNIST     Type = "NIST"
)

// AllTypes returns the supported compliance frameworks.
func AllTypes() []Type {
	return []Type{TypeISO27001, TypeSOC2, TypePCIDSS, TypeGDPR, TypeHIPAA, TypeNIST}
}

// Valid reports whether the type is a supported framework.
func (t Type) Valid() bool {
	switch t {
	case TypeISO27001, TypeSOC2, TypePCIDSS, TypeGDPR, TypeHIPAA, TypeNIST:
		return true
	}
	return false
}

// Status is the certification lifecycle status.
type Status string

const (
	// StatusPending means the certification record exists but issuance is
	// still awaited.
	StatusPending Status = "PENDING"

	// StatusActive is the normal issued state.
	StatusActive Status = "ACTIVE"

	// StatusExpired is derived: an ACTIVE certification past its expiry.
	// It is observed through EffectiveStatus, never written proactively.
	StatusExpired Status = "EXPIRED"

	// StatusRevoked is terminal and set only by administrator action.
	StatusRevoked Status = "REVOKED"
)

// Certification is an issued (or pending) compliance certification,
// optionally backed by a delivered engagement.
type Certification struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Type      Type   `json:"certification_type"`
	Title     string `json:"title"`
	Status    Status `json:"status"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// EngagementID links the backing audit or pentest. Empty for
	// standalone certifications.
	EngagementID string `json:"engagement_id,omitempty"`

	IssuedBy string `json:"issued_by"`
	Notes    string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Version is the optimistic concurrency token maintained by the store.
	Version int64 `json:"version"`
}

// Policy holds the product rules applied at issuance time.
type Policy struct {
	// ValidityMonths is the validity window per framework, in calendar
	// months from issuance.
	ValidityMonths map[Type]int

	// ExpiringSoonWindow is the horizon for the renewal warning.
	ExpiringSoonWindow time.Duration

	// RequireFindingsResolved additionally gates issuance on the backing
	// engagement having no OPEN findings. Off by default; the completion
	// gate alone is the product baseline.
	RequireFindingsResolved bool
}

// DefaultValidityMonths is the validity window applied when the policy does
// not configure one for a framework.
const DefaultValidityMonths = 12

// DefaultExpiringSoonWindow is the default renewal warning horizon.
const DefaultExpiringSoonWindow = 30 * 24 * time.Hour

// DefaultPolicy returns the product-default issuance policy.
func DefaultPolicy() Policy {
	return Policy{
		ValidityMonths:     map[Type]int{},
		ExpiringSoonWindow: DefaultExpiringSoonWindow,
	}
}

func (p Policy) validityMonths(t Type) int {
	if m, ok := p.ValidityMonths[t]; ok && m > 0 {
		return m
	}
	return DefaultValidityMonths
}

func (p Policy) expiringSoonWindow() time.Duration {
	if p.ExpiringSoonWindow > 0 {
		return p.ExpiringSoonWindow
	}
	return DefaultExpiringSoonWindow
}

// Eligibility is the outcome of an issuance gate check.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// Issuer applies a Policy to issuance decisions.
type Issuer struct {
	policy Policy
	clk    clock.Clock
}

// NewIssuer creates an Issuer. A nil clock defaults to the system clock.
func NewIssuer(policy Policy, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &Issuer{policy: policy, clk: clk}
}

// CheckEligibility derives whether a certification may be issued against the
// given engagement. A nil engagement means a standalone certification, which
// is always eligible.
func (i *Issuer) CheckEligibility(e *engagement.Engagement) Eligibility {
	if e == nil {
		return Eligibility{Eligible: true}
	}
	if !e.IsComplete() {
		return Eligibility{Eligible: false, Reason: "engagement not yet delivered"}
	}
	if i.policy.RequireFindingsResolved && e.OpenFindingCount() > 0 {
		return Eligibility{
			Eligible: false,
			Reason:   fmt.Sprintf("engagement has %d open findings", e.OpenFindingCount()),
		}
	}
	return Eligibility{Eligible: true}
}

// IssueInput is the payload for issuing a certification.
type IssueInput struct {
	CompanyID string `json:"company_id"`
	Type      Type   `json:"certification_type"`
	Title     string `json:"title"`
	IssuedBy  string `json:"issued_by"`
	Notes     string `json:"notes,omitempty"`

	// Pending creates the record in PENDING instead of ACTIVE when
	// issuance is awaited.
	Pending bool `json:"pending,omitempty"`
}

// Issue validates the eligibility gate and produces a certification.
// The validity window is fixed at issuance from the policy for the given
// framework. Returns a KindNotEligible error if the gate rejects.
func (i *Issuer) Issue(in IssueInput, e *engagement.Engagement) (*Certification, error) {
	const op = "certification.Issue"

	if in.CompanyID == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "company id is required")
	}
	if in.Title == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "title is required")
	}
	if !in.Type.Valid() {
		return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("unknown certification type %q", in.Type))
	}
	if in.IssuedBy == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "issuer name is required")
	}
	if e != nil && e.CompanyID != in.CompanyID {
		return nil, errors.E(errors.KindNotFound, op, "engagement does not belong to this company")
	}

	if elig := i.CheckEligibility(e); !elig.Eligible {
		return nil, errors.E(errors.KindNotEligible, op, elig.Reason)
	}

	now := i.clk.Now()
	status := StatusActive
	if in.Pending {
		status = StatusPending
	}

	cert := &Certification{
		ID:        uuid.NewString(),
		CompanyID: in.CompanyID,
		Type:      in.Type,
		Title:     in.Title,
		Status:    status,
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, i.policy.validityMonths(in.Type), 0),
		IssuedBy:  in.IssuedBy,
		Notes:     in.Notes,
		CreatedAt: now,
	}
	if e != nil {
		cert.EngagementID = e.ID
	}
	return cert, nil
}

// Revoke transitions an ACTIVE certification to REVOKED. Revocation is
// terminal; any other current status returns a KindInvalidState error.
func (c *Certification) Revoke() error {
	const op = "certification.Revoke"
	if c.Status != StatusActive {
		return errors.E(errors.KindInvalidState, op,
			fmt.Sprintf("cannot revoke a %s certification", c.Status))
	}
	c.Status = StatusRevoked
	return nil
}

// Activate transitions a PENDING certification to ACTIVE.
func (c *Certification) Activate() error {
	const op = "certification.Activate"
	if c.Status != StatusPending {
		return errors.E(errors.KindInvalidState, op,
			fmt.Sprintf("cannot activate a %s certification", c.Status))
	}
	c.Status = StatusActive
	return nil
}

// EffectiveStatus applies the derived expiry check: an ACTIVE certification
// past its expiry reads as EXPIRED. The stored status is never mutated.
func (c *Certification) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusActive && now.After(c.ExpiresAt) {
		return StatusExpired
	}
	return c.Status
}

// IsExpiringSoon reports whether the certification expires within the given
// window: true iff 0 < expiresAt - now <= window. Already-expired
// certifications are not "expiring soon".
func (c *Certification) IsExpiringSoon(now time.Time, window time.Duration) bool {
	remaining := c.ExpiresAt.Sub(now)
	return remaining > 0 && remaining <= window
}

// IsExpiringSoon applies the policy's warning horizon.
func (i *Issuer) IsExpiringSoon(c *Certification, now time.Time) bool {
	return c.IsExpiringSoon(now, i.policy.expiringSoonWindow())
}
