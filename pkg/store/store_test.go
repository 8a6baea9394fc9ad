package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwolfsec/soc-sdk/pkg/certification"
	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/engagement"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/incident"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "soc.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
}

func TestEngagementRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	e, err := engagement.New(engagement.CreateInput{
		CompanyID: "acme",
		Title:     "Q1 infrastructure audit",
		Type:      engagement.TypeAudit,
		Scope:     "internal network",
	}, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.AddFinding(engagement.FindingInput{
		Title:         "Default credentials on admin panel",
		RiskLevel:     severity.RiskHigh,
		CVSSScore:     8.1,
		AffectedAsset: "admin.internal",
	}, clk); err != nil {
		t.Fatalf("AddFinding: %v", err)
	}

	if err := s.CreateEngagement(ctx, e); err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}

	got, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}
	if got.Title != e.Title || got.Type != e.Type || got.Stage != e.Stage {
		t.Errorf("loaded engagement mismatch: got %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if len(got.Findings) != 1 || got.Findings[0].Title != "Default credentials on admin panel" {
		t.Errorf("findings not round-tripped: %+v", got.Findings)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestEngagementTenantScoping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	e, err := engagement.New(engagement.CreateInput{
		CompanyID: "acme",
		Title:     "Perimeter pentest",
		Type:      engagement.TypePentest,
		Scope:     "public endpoints",
	}, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateEngagement(ctx, e); err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}

	if _, err := s.LoadEngagement(ctx, "other-corp", e.ID); !errors.IsNotFound(err) {
		t.Errorf("cross-tenant load error = %v, want not_found", err)
	}
	if _, err := s.LoadEngagement(ctx, "acme", "no-such-id"); !errors.IsNotFound(err) {
		t.Errorf("missing id load error = %v, want not_found", err)
	}
}

func TestEngagementSaveBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	e, err := engagement.New(engagement.CreateInput{
		CompanyID: "acme",
		Title:     "Q1 infrastructure audit",
		Type:      engagement.TypeAudit,
		Scope:     "internal network",
	}, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateEngagement(ctx, e); err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}

	clk.Advance(time.Hour)
	if err := e.Advance(clk); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := s.SaveEngagement(ctx, e); err != nil {
		t.Fatalf("SaveEngagement: %v", err)
	}
	if e.Version != 2 {
		t.Errorf("Version after save = %d, want 2", e.Version)
	}

	got, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}
	if got.Stage != e.Stage || got.Version != 2 {
		t.Errorf("reloaded stage=%s version=%d, want stage=%s version=2", got.Stage, got.Version, e.Stage)
	}
}

func TestEngagementConcurrentSaveConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	e, err := engagement.New(engagement.CreateInput{
		CompanyID: "acme",
		Title:     "Q1 infrastructure audit",
		Type:      engagement.TypeAudit,
		Scope:     "internal network",
	}, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateEngagement(ctx, e); err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}

	first, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}
	second, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}

	clk.Advance(time.Hour)
	if err := first.Advance(clk); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := s.SaveEngagement(ctx, first); err != nil {
		t.Fatalf("first SaveEngagement: %v", err)
	}

	if err := second.Advance(clk); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	err = s.SaveEngagement(ctx, second)
	if !errors.IsConflict(err) {
		t.Fatalf("second SaveEngagement error = %v, want conflict", err)
	}

	// The losing writer retries from fresh state.
	fresh, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}
	if fresh.Stage != first.Stage {
		t.Errorf("stored stage = %s, want %s from the winning write", fresh.Stage, first.Stage)
	}
	if err := fresh.Advance(clk); err != nil {
		t.Fatalf("Advance after reload: %v", err)
	}
	if err := s.SaveEngagement(ctx, fresh); err != nil {
		t.Errorf("retry SaveEngagement: %v", err)
	}
}

func TestFindingResolutionPersisted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	e, err := engagement.New(engagement.CreateInput{
		CompanyID: "acme",
		Title:     "Perimeter pentest",
		Type:      engagement.TypePentest,
		Scope:     "public endpoints",
	}, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f, err := e.AddFinding(engagement.FindingInput{
		Title:         "Reflected XSS in search",
		RiskLevel:     severity.RiskMedium,
		CVSSScore:     5.4,
		AffectedAsset: "www.acme.example",
	}, clk)
	if err != nil {
		t.Fatalf("AddFinding: %v", err)
	}
	if err := s.CreateEngagement(ctx, e); err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}

	clk.Advance(2 * time.Hour)
	if _, err := e.ResolveFinding(f.ID, clk); err != nil {
		t.Fatalf("ResolveFinding: %v", err)
	}
	if err := s.SaveEngagement(ctx, e); err != nil {
		t.Fatalf("SaveEngagement: %v", err)
	}

	got, err := s.LoadEngagement(ctx, "acme", e.ID)
	if err != nil {
		t.Fatalf("LoadEngagement: %v", err)
	}
	gf, ok := got.Finding(f.ID)
	if !ok {
		t.Fatalf("Finding: %s not found", f.ID)
	}
	if gf.Status != engagement.FindingResolved {
		t.Errorf("Status = %s, want %s", gf.Status, engagement.FindingResolved)
	}
	if gf.ResolvedAt == nil || !gf.ResolvedAt.Equal(clk.Now()) {
		t.Errorf("ResolvedAt = %v, want %v", gf.ResolvedAt, clk.Now())
	}
}

func TestCertificationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	issuer := certification.NewIssuer(certification.Policy{}, clk)
	c, err := issuer.Issue(certification.IssueInput{
		CompanyID: "acme",
		Type:      certification.TypeISO27001,
		Title:     "ISO 27001 certification",
		IssuedBy:  "lead-auditor",
	}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := s.CreateCertification(ctx, c); err != nil {
		t.Fatalf("CreateCertification: %v", err)
	}

	got, err := s.LoadCertification(ctx, "acme", c.ID)
	if err != nil {
		t.Fatalf("LoadCertification: %v", err)
	}
	if got.Type != c.Type || got.Status != certification.StatusActive {
		t.Errorf("loaded certification mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(c.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, c.ExpiresAt)
	}

	if _, err := s.LoadCertification(ctx, "other-corp", c.ID); !errors.IsNotFound(err) {
		t.Errorf("cross-tenant load error = %v, want not_found", err)
	}
}

func TestCertificationSaveConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	issuer := certification.NewIssuer(certification.Policy{}, clk)
	c, err := issuer.Issue(certification.IssueInput{
		CompanyID: "acme",
		Type:      certification.TypeSOC2,
		Title:     "SOC 2 Type II",
		IssuedBy:  "lead-auditor",
	}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.CreateCertification(ctx, c); err != nil {
		t.Fatalf("CreateCertification: %v", err)
	}

	first, err := s.LoadCertification(ctx, "acme", c.ID)
	if err != nil {
		t.Fatalf("LoadCertification: %v", err)
	}
	second, err := s.LoadCertification(ctx, "acme", c.ID)
	if err != nil {
		t.Fatalf("LoadCertification: %v", err)
	}

	if err := first.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.SaveCertification(ctx, first); err != nil {
		t.Fatalf("first SaveCertification: %v", err)
	}

	if err := second.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.SaveCertification(ctx, second); !errors.IsConflict(err) {
		t.Errorf("second SaveCertification error = %v, want conflict", err)
	}
}

func TestListActiveCertifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()

	issuer := certification.NewIssuer(certification.Policy{}, clk)
	active, err := issuer.Issue(certification.IssueInput{
		CompanyID: "acme",
		Type:      certification.TypeISO27001,
		Title:     "ISO 27001 certification",
		IssuedBy:  "lead-auditor",
	}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	pending, err := issuer.Issue(certification.IssueInput{
		CompanyID: "globex",
		Type:      certification.TypePCIDSS,
		Title:     "PCI DSS attestation",
		IssuedBy:  "qsa",
		Pending:   true,
	}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for _, c := range []*certification.Certification{active, pending} {
		if err := s.CreateCertification(ctx, c); err != nil {
			t.Fatalf("CreateCertification: %v", err)
		}
	}

	got, err := s.ListActiveCertifications(ctx)
	if err != nil {
		t.Fatalf("ListActiveCertifications: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("active certifications = %+v, want only %s", got, active.ID)
	}
}

func TestIncidentRoundTripWithTimeline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()
	policy := incident.DefaultSLAPolicy()

	in, err := incident.New(incident.CreateInput{
		CompanyID:   "acme",
		Title:       "Suspicious outbound traffic",
		Description: "beaconing to unknown host",
		Severity:    severity.High,
	}, policy, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateIncident(ctx, in); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	got, err := s.LoadIncident(ctx, "acme", in.ID)
	if err != nil {
		t.Fatalf("LoadIncident: %v", err)
	}
	if got.Severity != severity.High || got.Status != incident.StatusOpen {
		t.Errorf("loaded incident mismatch: %+v", got)
	}
	if !got.SLADeadline.Equal(in.SLADeadline) {
		t.Errorf("SLADeadline = %v, want %v", got.SLADeadline, in.SLADeadline)
	}
	if len(got.Timeline) != 1 || got.Timeline[0].Action != "Incident Created" {
		t.Errorf("timeline not round-tripped: %+v", got.Timeline)
	}
}

func TestIncidentTimelineAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()
	policy := incident.DefaultSLAPolicy()

	in, err := incident.New(incident.CreateInput{
		CompanyID: "acme",
		Title:     "Suspicious outbound traffic",
		Severity:  severity.Critical,
	}, policy, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateIncident(ctx, in); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	clk.Advance(10 * time.Minute)
	if err := in.SetStatus(incident.StatusInvestigating, "analyst-1", clk); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	clk.Advance(30 * time.Minute)
	if err := in.SetStatus(incident.StatusResolved, "analyst-1", clk); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SaveIncident(ctx, in); err != nil {
		t.Fatalf("SaveIncident: %v", err)
	}
	// Saving again must not duplicate entries.
	in.UpdatedAt = clk.Now()
	if err := s.SaveIncident(ctx, in); err != nil {
		t.Fatalf("second SaveIncident: %v", err)
	}

	got, err := s.LoadIncident(ctx, "acme", in.ID)
	if err != nil {
		t.Fatalf("LoadIncident: %v", err)
	}
	if len(got.Timeline) != 3 {
		t.Fatalf("timeline length = %d, want 3", len(got.Timeline))
	}
	wantActions := []string{"Incident Created", "Status Changed", "Status Changed"}
	for i, want := range wantActions {
		if got.Timeline[i].Action != want {
			t.Errorf("timeline[%d].Action = %q, want %q", i, got.Timeline[i].Action, want)
		}
		if got.Timeline[i].Seq != i {
			t.Errorf("timeline[%d].Seq = %d, want %d", i, got.Timeline[i].Seq, i)
		}
	}
	if got.ResolvedAt == nil {
		t.Error("ResolvedAt not persisted")
	}
}

func TestIncidentSaveConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()
	policy := incident.DefaultSLAPolicy()

	in, err := incident.New(incident.CreateInput{
		CompanyID: "acme",
		Title:     "Phishing report",
		Severity:  severity.Medium,
	}, policy, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CreateIncident(ctx, in); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	first, err := s.LoadIncident(ctx, "acme", in.ID)
	if err != nil {
		t.Fatalf("LoadIncident: %v", err)
	}
	second, err := s.LoadIncident(ctx, "acme", in.ID)
	if err != nil {
		t.Fatalf("LoadIncident: %v", err)
	}

	if err := first.SetStatus(incident.StatusInvestigating, "analyst-1", clk); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SaveIncident(ctx, first); err != nil {
		t.Fatalf("first SaveIncident: %v", err)
	}

	if err := second.SetStatus(incident.StatusContained, "analyst-2", clk); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SaveIncident(ctx, second); !errors.IsConflict(err) {
		t.Errorf("second SaveIncident error = %v, want conflict", err)
	}
}

func TestListOpenIncidents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clk := testClock()
	policy := incident.DefaultSLAPolicy()

	open, err := incident.New(incident.CreateInput{
		CompanyID: "acme",
		Title:     "Malware alert",
		Severity:  severity.Critical,
	}, policy, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	closed, err := incident.New(incident.CreateInput{
		CompanyID: "globex",
		Title:     "False positive",
		Severity:  severity.Low,
	}, policy, clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := closed.SetStatus(incident.StatusClosed, "analyst-1", clk); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	for _, in := range []*incident.Incident{open, closed} {
		if err := s.CreateIncident(ctx, in); err != nil {
			t.Fatalf("CreateIncident: %v", err)
		}
	}

	got, err := s.ListOpenIncidents(ctx)
	if err != nil {
		t.Fatalf("ListOpenIncidents: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Errorf("open incidents = %+v, want only %s", got, open.ID)
	}
}
