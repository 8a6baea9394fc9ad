package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackwolfsec/soc-sdk/pkg/engagement"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
	"github.com/blackwolfsec/soc-sdk/pkg/workflow"
)

// CreateEngagement persists a new engagement. Its version starts at 1.
func (s *Store) CreateEngagement(ctx context.Context, e *engagement.Engagement) error {
	const op = "store.CreateEngagement"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.KindInternal, op, "begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO engagements
			(id, company_id, type, title, stage, scope, methodology, test_method,
			 lead_personnel, executive_summary, start_date, end_date,
			 created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		e.ID, e.CompanyID, string(e.Type), e.Title, string(e.Stage), e.Scope,
		e.Methodology, string(e.TestMethod), e.LeadPersonnel, e.ExecutiveSummary,
		formatTimePtr(e.StartDate), formatTimePtr(e.EndDate),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return errors.E(errors.KindInternal, op, "insert engagement", err)
	}

	for _, f := range e.Findings {
		if err := insertFinding(ctx, tx, f); err != nil {
			return errors.E(errors.KindInternal, op, "insert finding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindInternal, op, "commit", err)
	}
	e.Version = 1
	return nil
}

// LoadEngagement loads an engagement with its findings, scoped to the
// caller's company.
func (s *Store) LoadEngagement(ctx context.Context, companyID, id string) (*engagement.Engagement, error) {
	const op = "store.LoadEngagement"

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, type, title, stage, scope, methodology, test_method,
		       lead_personnel, executive_summary, start_date, end_date,
		       created_at, updated_at, version
		FROM engagements WHERE id = ? AND company_id = ?`, id, companyID)

	e, err := scanEngagement(row)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.KindNotFound, op, fmt.Sprintf("engagement %s not found", id))
	}
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "scan engagement", err)
	}

	if e.Findings, err = s.loadFindings(ctx, e.ID); err != nil {
		return nil, errors.E(errors.KindInternal, op, "load findings", err)
	}
	return e, nil
}

// SaveEngagement persists engagement mutations conditioned on the version
// the caller loaded. A stale version returns a conflict error and mutates
// nothing; on success the in-memory version is bumped.
func (s *Store) SaveEngagement(ctx context.Context, e *engagement.Engagement) error {
	const op = "store.SaveEngagement"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.KindInternal, op, "begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE engagements
		SET stage = ?, methodology = ?, lead_personnel = ?, executive_summary = ?,
		    start_date = ?, end_date = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(e.Stage), e.Methodology, e.LeadPersonnel, e.ExecutiveSummary,
		formatTimePtr(e.StartDate), formatTimePtr(e.EndDate), formatTime(e.UpdatedAt),
		e.ID, e.Version)
	if err != nil {
		return errors.E(errors.KindInternal, op, "update engagement", err)
	}
	if err := checkWrite(ctx, tx, res, "engagements", e.ID, op); err != nil {
		return err
	}

	// Findings are owned exclusively by the engagement and never deleted,
	// so an upsert of the current set is safe under the row version guard.
	for _, f := range e.Findings {
		if err := upsertFinding(ctx, tx, f); err != nil {
			return errors.E(errors.KindInternal, op, "upsert finding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindInternal, op, "commit", err)
	}
	e.Version++
	return nil
}

// ListEngagements returns all engagements for a company, findings included.
func (s *Store) ListEngagements(ctx context.Context, companyID string) ([]*engagement.Engagement, error) {
	const op = "store.ListEngagements"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, type, title, stage, scope, methodology, test_method,
		       lead_personnel, executive_summary, start_date, end_date,
		       created_at, updated_at, version
		FROM engagements WHERE company_id = ? ORDER BY created_at`, companyID)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "query engagements", err)
	}
	defer rows.Close()

	var out []*engagement.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "scan engagement", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.KindInternal, op, "iterate engagements", err)
	}

	for _, e := range out {
		if e.Findings, err = s.loadFindings(ctx, e.ID); err != nil {
			return nil, errors.E(errors.KindInternal, op, "load findings", err)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEngagement(row rowScanner) (*engagement.Engagement, error) {
	var (
		e                              engagement.Engagement
		typ, stage, testMethod         string
		methodology, lead, summary     sql.NullString
		startDate, endDate             sql.NullString
		createdAt, updatedAt           string
	)

	err := row.Scan(&e.ID, &e.CompanyID, &typ, &e.Title, &stage, &e.Scope,
		&methodology, &testMethod, &lead, &summary, &startDate, &endDate,
		&createdAt, &updatedAt, &e.Version)
	if err != nil {
		return nil, err
	}

	e.Type = engagement.Type(typ)
	e.Stage = workflow.Stage(stage)
	e.TestMethod = engagement.PentestMethod(testMethod)
	e.Methodology = methodology.String
	e.LeadPersonnel = lead.String
	e.ExecutiveSummary = summary.String

	if e.StartDate, err = parseTimePtr(startDate); err != nil {
		return nil, err
	}
	if e.EndDate, err = parseTimePtr(endDate); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) loadFindings(ctx context.Context, engagementID string) ([]*engagement.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, engagement_id, title, description, risk_level, cvss_score,
		       affected_asset, recommendation, status, created_at, resolved_at
		FROM findings WHERE engagement_id = ? ORDER BY created_at, rowid`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engagement.Finding
	for rows.Next() {
		var (
			f                        engagement.Finding
			risk, status             string
			description, recommend   sql.NullString
			createdAt                string
			resolvedAt               sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.EngagementID, &f.Title, &description, &risk,
			&f.CVSSScore, &f.AffectedAsset, &recommend, &status, &createdAt, &resolvedAt); err != nil {
			return nil, err
		}
		f.Description = description.String
		f.Recommendation = recommend.String
		f.RiskLevel = severity.Risk(risk)
		f.Status = engagement.FindingStatus(status)
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if f.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func insertFinding(ctx context.Context, tx *sql.Tx, f *engagement.Finding) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO findings
			(id, engagement_id, title, description, risk_level, cvss_score,
			 affected_asset, recommendation, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.EngagementID, f.Title, f.Description, string(f.RiskLevel), f.CVSSScore,
		f.AffectedAsset, f.Recommendation, string(f.Status),
		formatTime(f.CreatedAt), formatTimePtr(f.ResolvedAt))
	return err
}

func upsertFinding(ctx context.Context, tx *sql.Tx, f *engagement.Finding) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO findings
			(id, engagement_id, title, description, risk_level, cvss_score,
			 affected_asset, recommendation, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			resolved_at = excluded.resolved_at`,
		f.ID, f.EngagementID, f.Title, f.Description, string(f.RiskLevel), f.CVSSScore,
		f.AffectedAsset, f.Recommendation, string(f.Status),
		formatTime(f.CreatedAt), formatTimePtr(f.ResolvedAt))
	return err
}
