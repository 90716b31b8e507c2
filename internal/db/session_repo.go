package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AbdouB/adaptive/internal/models"
)

// SessionRepository handles session database operations
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session
func (r *SessionRepository) Create(s *models.SessionRecord) error {
	query := `
		INSERT INTO sessions (
			session_id, role, manifest, forensic_mode, started_at
		) VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		s.SessionID,
		s.Role,
		s.Manifest,
		s.ForensicMode,
		s.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(sessionID string) (*models.SessionRecord, error) {
	var s models.SessionRecord
	query := `SELECT * FROM sessions WHERE session_id = ?`
	err := r.db.Get(&s, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// List lists the most recent sessions first
func (r *SessionRepository) List(limit int) ([]*models.SessionRecord, error) {
	var sessions []*models.SessionRecord
	query := `SELECT * FROM sessions ORDER BY started_at DESC LIMIT ?`
	if err := r.db.Select(&sessions, query, limitOrAll(limit)); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetLatest gets the most recently started session
func (r *SessionRepository) GetLatest() (*models.SessionRecord, error) {
	var s models.SessionRecord
	query := `SELECT * FROM sessions ORDER BY started_at DESC LIMIT 1`
	err := r.db.Get(&s, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}
	return &s, nil
}

// End marks a session as ended and records its final log size and chain anchor
func (r *SessionRepository) End(sessionID string, eventCount int, anchor string) error {
	query := `UPDATE sessions SET ended_at = ?, event_count = ?, chain_anchor = ? WHERE session_id = ?`
	_, err := r.db.Exec(query, time.Now().UTC(), eventCount, anchor, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// limitOrAll maps a non-positive limit to sqlite's "no limit"
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
