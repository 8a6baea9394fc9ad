package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/incident"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// CreateIncident persists a new incident together with its initial
// timeline entries.
func (s *Store) CreateIncident(ctx context.Context, in *incident.Incident) error {
	const op = "store.CreateIncident"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.KindInternal, op, "begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO incidents
			(id, company_id, title, description, severity, status,
			 assigned_to, source_threat_id, sla_deadline, created_at,
			 updated_at, resolved_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		in.ID, in.CompanyID, in.Title, in.Description, string(in.Severity),
		string(in.Status), in.AssignedTo, in.SourceThreatID,
		formatTime(in.SLADeadline), formatTime(in.CreatedAt),
		formatTime(in.UpdatedAt), formatTimePtr(in.ResolvedAt))
	if err != nil {
		return errors.E(errors.KindInternal, op, "insert incident", err)
	}

	for _, entry := range in.Timeline {
		if err := insertTimelineEntry(ctx, tx, entry); err != nil {
			return errors.E(errors.KindInternal, op, "insert timeline entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindInternal, op, "commit", err)
	}
	in.Version = 1
	return nil
}

// LoadIncident loads an incident and its timeline scoped to the caller's
// company.
func (s *Store) LoadIncident(ctx context.Context, companyID, id string) (*incident.Incident, error) {
	const op = "store.LoadIncident"

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, description, severity, status,
		       assigned_to, source_threat_id, sla_deadline, created_at,
		       updated_at, resolved_at, version
		FROM incidents WHERE id = ? AND company_id = ?`, id, companyID)

	in, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.KindNotFound, op, fmt.Sprintf("incident %s not found", id))
	}
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "scan incident", err)
	}

	if in.Timeline, err = s.loadTimeline(ctx, in.ID); err != nil {
		return nil, errors.E(errors.KindInternal, op, "load timeline", err)
	}
	return in, nil
}

// SaveIncident persists incident changes conditioned on the loaded version.
// Timeline entries are append-only: rows already present are left untouched.
func (s *Store) SaveIncident(ctx context.Context, in *incident.Incident) error {
	const op = "store.SaveIncident"

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.KindInternal, op, "begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE incidents
		SET title = ?, description = ?, severity = ?, status = ?,
		    assigned_to = ?, source_threat_id = ?, sla_deadline = ?,
		    updated_at = ?, resolved_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		in.Title, in.Description, string(in.Severity), string(in.Status),
		in.AssignedTo, in.SourceThreatID, formatTime(in.SLADeadline),
		formatTime(in.UpdatedAt), formatTimePtr(in.ResolvedAt),
		in.ID, in.Version)
	if err != nil {
		return errors.E(errors.KindInternal, op, "update incident", err)
	}
	if err := checkWrite(ctx, tx, res, "incidents", in.ID, op); err != nil {
		return err
	}

	for _, entry := range in.Timeline {
		if err := insertTimelineEntry(ctx, tx, entry); err != nil {
			return errors.E(errors.KindInternal, op, "insert timeline entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.E(errors.KindInternal, op, "commit", err)
	}
	in.Version++
	return nil
}

// ListIncidents returns all incidents for a company, timelines included.
func (s *Store) ListIncidents(ctx context.Context, companyID string) ([]*incident.Incident, error) {
	const op = "store.ListIncidents"
	return s.queryIncidents(ctx, op, `
		SELECT id, company_id, title, description, severity, status,
		       assigned_to, source_threat_id, sla_deadline, created_at,
		       updated_at, resolved_at, version
		FROM incidents WHERE company_id = ? ORDER BY created_at`, companyID)
}

// ListOpenIncidents returns every non-terminal incident across tenants,
// ordered by SLA deadline. Timelines are not loaded.
func (s *Store) ListOpenIncidents(ctx context.Context) ([]*incident.Incident, error) {
	const op = "store.ListOpenIncidents"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, title, description, severity, status,
		       assigned_to, source_threat_id, sla_deadline, created_at,
		       updated_at, resolved_at, version
		FROM incidents WHERE status NOT IN (?, ?) ORDER BY sla_deadline`,
		string(incident.StatusResolved), string(incident.StatusClosed))
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "query incidents", err)
	}
	defer rows.Close()

	return collectIncidents(op, rows)
}

func (s *Store) queryIncidents(ctx context.Context, op, query string, args ...any) ([]*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "query incidents", err)
	}

	out, err := func() ([]*incident.Incident, error) {
		defer rows.Close()
		return collectIncidents(op, rows)
	}()
	if err != nil {
		return nil, err
	}

	for _, in := range out {
		if in.Timeline, err = s.loadTimeline(ctx, in.ID); err != nil {
			return nil, errors.E(errors.KindInternal, op, "load timeline", err)
		}
	}
	return out, nil
}

func collectIncidents(op string, rows *sql.Rows) ([]*incident.Incident, error) {
	var out []*incident.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, errors.E(errors.KindInternal, op, "scan incident", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.KindInternal, op, "iterate incidents", err)
	}
	return out, nil
}

func (s *Store) loadTimeline(ctx context.Context, incidentID string) ([]*incident.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, action, description, performed_by, created_at, seq
		FROM timeline_entries WHERE incident_id = ? ORDER BY created_at, seq`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*incident.TimelineEntry
	for rows.Next() {
		var (
			entry     incident.TimelineEntry
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.IncidentID, &entry.Action,
			&entry.Description, &entry.PerformedBy, &createdAt, &entry.Seq); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

func insertTimelineEntry(ctx context.Context, tx *sql.Tx, entry *incident.TimelineEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO timeline_entries
			(id, incident_id, action, description, performed_by, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(incident_id, seq) DO NOTHING`,
		entry.ID, entry.IncidentID, entry.Action, entry.Description,
		entry.PerformedBy, formatTime(entry.CreatedAt), entry.Seq)
	return err
}

func scanIncident(row rowScanner) (*incident.Incident, error) {
	var (
		in                     incident.Incident
		sev, status            string
		assignedTo, threatID   sql.NullString
		slaDeadline, createdAt string
		updatedAt              string
		resolvedAt             sql.NullString
	)

	err := row.Scan(&in.ID, &in.CompanyID, &in.Title, &in.Description, &sev,
		&status, &assignedTo, &threatID, &slaDeadline, &createdAt,
		&updatedAt, &resolvedAt, &in.Version)
	if err != nil {
		return nil, err
	}

	in.Severity = severity.Level(sev)
	in.Status = incident.Status(status)
	in.AssignedTo = assignedTo.String
	in.SourceThreatID = threatID.String

	if in.SLADeadline, err = parseTime(slaDeadline); err != nil {
		return nil, err
	}
	if in.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if in.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if in.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return nil, err
	}
	return &in, nil
}
