package incident

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blackwolfsec/soc-sdk/pkg/clock"
	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// TimelineEntry is one action in an incident's append-only log.
// Entries are never edited or removed; corrections are made by appending a
// new corrective entry, so the incident record is always reconstructable.
type TimelineEntry struct {
	ID         string `json:"id"`
	IncidentID string `json:"incident_id"`

	Action      string `json:"action"`
	Description string `json:"description"`
	PerformedBy string `json:"performed_by"`

	CreatedAt time.Time `json:"created_at"`

	// Seq is the insertion sequence within the incident, breaking ordering
	// ties between entries created in the same instant.
	Seq int `json:"seq"`
}

// AppendTimeline adds an entry at the end of the incident's timeline.
func (i *Incident) AppendTimeline(action, description, performedBy string, clk clock.Clock) (*TimelineEntry, error) {
	const op = "incident.AppendTimeline"

	if action == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "action is required")
	}
	if performedBy == "" {
		performedBy = "system"
	}

	now := clk.Now()
	entry := i.appendEntry(action, description, performedBy, now)
	i.UpdatedAt = now
	return entry, nil
}

func (i *Incident) appendEntry(action, description, performedBy string, at time.Time) *TimelineEntry {
	entry := &TimelineEntry{
		ID:          uuid.NewString(),
		IncidentID:  i.ID,
		Action:      action,
		Description: description,
		PerformedBy: performedBy,
		CreatedAt:   at,
		Seq:         len(i.Timeline),
	}
	i.Timeline = append(i.Timeline, entry)
	return entry
}

// TimelineEntries returns the timeline in creation order: sorted by
// CreatedAt with ties broken by insertion sequence. The returned slice is a
// copy; the underlying log cannot be mutated through it.
func (i *Incident) TimelineEntries() []*TimelineEntry {
	entries := append([]*TimelineEntry(nil), i.Timeline...)
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].CreatedAt.Equal(entries[b].CreatedAt) {
			return entries[a].Seq < entries[b].Seq
		}
		return entries[a].CreatedAt.Before(entries[b].CreatedAt)
	})
	return entries
}
