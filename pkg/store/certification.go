package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackwolfsec/soc-sdk/pkg/certification"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// CreateCertification persists a newly issued certification.
func (s *Store) CreateCertification(ctx context.Context, c *certification.Certification) error {
	const op = "store.CreateCertification"

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certifications
			(id, company_id, certification_type, title, status, issued_at,
			 expires_at, engagement_id, issued_by, notes, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		c.ID, c.CompanyID, string(c.Type), c.Title, string(c.Status),
		formatTime(c.IssuedAt), formatTime(c.ExpiresAt), c.EngagementID,
		c.IssuedBy, c.Notes, formatTime(c.CreatedAt))
	if err != nil {
		return errors.E(errors.KindInternal, op, "insert certification", err)
	}
	c.Version = 1
	return nil
}

// LoadCertification loads a certification scoped to the caller's company.
func (s *Store) LoadCertification(ctx context.Context, companyID, id string) (*certification.Certification, error) {
	const op = "store.LoadCertification"

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, certification_type, title, status, issued_at,
		       expires_at, engagement_id, issued_by, notes, created_at, version
		FROM certifications WHERE id = ? AND company_id = ?`, id, companyID)

	c, err := scanCertification(row)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.KindNotFound, op, fmt.Sprintf("certification %s not found", id))
	}
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "scan certification", err)
	}
	return c, nil
}

// SaveCertification persists status changes conditioned on the loaded
// version. A stale version returns a conflict error.
func (s *Store) SaveCertification(ctx context.Context, c *certification.Certification) error {
	const op = "store.SaveCertification"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.KindInternal, op, "begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE certifications
		SET status = ?, notes = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(c.Status), c.Notes, c.ID, c.Version)
	if err != nil {
		return errors.E(errors.KindInternal, op, "update certification", err)
	}
	if err := checkWrite(ctx, tx, res, "certifications", c.ID, op); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindInternal, op, "commit", err)
	}
	c.Version++
	return nil
}

// ListCertifications returns all certifications for a company.
func (s *Store) ListCertifications(ctx context.Context, companyID string) ([]*certification.Certification, error) {
	const op = "store.ListCertifications"
	return s.queryCertifications(ctx, op, `
		SELECT id, company_id, certification_type, title, status, issued_at,
		       expires_at, engagement_id, issued_by, notes, created_at, version
		FROM certifications WHERE company_id = ? ORDER BY created_at`, companyID)
}

// ListActiveCertifications returns every stored-ACTIVE certification across
// tenants. Consumers apply the derived expiry check on read.
func (s *Store) ListActiveCertifications(ctx context.Context) ([]*certification.Certification, error) {
	const op = "store.ListActiveCertifications"
	return s.queryCertifications(ctx, op, `
		SELECT id, company_id, certification_type, title, status, issued_at,
		       expires_at, engagement_id, issued_by, notes, created_at, version
		FROM certifications WHERE status = ? ORDER BY expires_at`,
		string(certification.StatusActive))
}

func (s *Store) queryCertifications(ctx context.Context, op, query string, args ...any) ([]*certification.Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "query certifications", err)
	}
	defer rows.Close()

	var out []*certification.Certification
	for rows.Next() {
		c, err := scanCertification(rows)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "scan certification", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.KindInternal, op, "iterate certifications", err)
	}
	return out, nil
}

func scanCertification(row rowScanner) (*certification.Certification, error) {
	var (
		c                    certification.Certification
		typ, status          string
		engagementID, notes  sql.NullString
		issuedAt, expiresAt  string
		createdAt            string
	)

	err := row.Scan(&c.ID, &c.CompanyID, &typ, &c.Title, &status, &issuedAt,
		&expiresAt, &engagementID, &c.IssuedBy, &notes, &createdAt, &c.Version)
	if err != nil {
		return nil, err
	}

	c.Type = certification.Type(typ)
	c.Status = certification.Status(status)
	c.EngagementID = engagementID.String
	c.Notes = notes.String

	if c.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}
