package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AbdouB/adaptive/internal/models"
)

// eventRow is the storage shape of a forensic event
type eventRow struct {
	Seq         int64  `db:"seq"`
	ID          string `db:"id"`
	SessionID   string `db:"session_id"`
	TimestampNs int64  `db:"timestamp_ns"`
	EventType   string `db:"event_type"`
	ComponentID string `db:"component_id"`
	DetailsJSON string `db:"details_json"`
	AuditHash   string `db:"audit_hash"`
}

func (row eventRow) event() (models.ForensicEvent, error) {
	details := map[string]any{}
	if err := json.Unmarshal([]byte(row.DetailsJSON), &details); err != nil {
		return models.ForensicEvent{}, fmt.Errorf("failed to decode details of event %s: %w", row.ID, err)
	}
	return models.ForensicEvent{
		ID:          row.ID,
		SessionID:   row.SessionID,
		Timestamp:   time.Unix(0, row.TimestampNs).UTC(),
		EventType:   models.ForensicEventType(row.EventType),
		ComponentID: row.ComponentID,
		Details:     details,
		AuditHash:   row.AuditHash,
	}, nil
}

// ForensicRepository persists the append-only audit trail
type ForensicRepository struct {
	db *DB
}

// NewForensicRepository creates a new forensic event repository
func NewForensicRepository(db *DB) *ForensicRepository {
	return &ForensicRepository{db: db}
}

// Create appends an event
func (r *ForensicRepository) Create(e models.ForensicEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to encode event details: %w", err)
	}
	query := `
		INSERT INTO forensic_events (
			id, session_id, timestamp_ns, event_type, component_id, details_json, audit_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		e.ID,
		e.SessionID,
		e.Timestamp.UnixNano(),
		string(e.EventType),
		e.ComponentID,
		string(details),
		e.AuditHash,
	)
	if err != nil {
		return fmt.Errorf("failed to create forensic event: %w", err)
	}
	return nil
}

// ListBySession returns a session's most recent events in append order.
// A non-positive limit returns the whole trail.
func (r *ForensicRepository) ListBySession(sessionID string, limit int) ([]models.ForensicEvent, error) {
	query := `
		SELECT * FROM (
			SELECT * FROM forensic_events WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`
	return r.selectEvents(query, sessionID, limitOrAll(limit))
}

// List returns the most recent events across all sessions in append order
func (r *ForensicRepository) List(limit int) ([]models.ForensicEvent, error) {
	query := `
		SELECT * FROM (
			SELECT * FROM forensic_events ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`
	return r.selectEvents(query, limitOrAll(limit))
}

// CountBySession returns how many events a session has persisted
func (r *ForensicRepository) CountBySession(sessionID string) (int, error) {
	var n int
	if err := r.db.Get(&n, `SELECT COUNT(*) FROM forensic_events WHERE session_id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("failed to count forensic events: %w", err)
	}
	return n, nil
}

func (r *ForensicRepository) selectEvents(query string, args ...interface{}) ([]models.ForensicEvent, error) {
	var rows []eventRow
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list forensic events: %w", err)
	}
	events := make([]models.ForensicEvent, 0, len(rows))
	for _, row := range rows {
		e, err := row.event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
