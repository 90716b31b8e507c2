package models

import "time"

// SessionRecord is the persisted summary of one orchestrator session
type SessionRecord struct {
	SessionID    string     `json:"session_id" db:"session_id"`
	Role         string     `json:"role" db:"role"`
	Manifest     string     `json:"manifest,omitempty" db:"manifest"`
	ForensicMode bool       `json:"forensic_mode" db:"forensic_mode"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	EventCount   int        `json:"event_count" db:"event_count"`
	ChainAnchor  string     `json:"chain_anchor,omitempty" db:"chain_anchor"`
}

// NewSessionRecord creates a record for a session starting now
func NewSessionRecord(sessionID string, ctx SessionContext, manifest string) *SessionRecord {
	return &SessionRecord{
		SessionID:    sessionID,
		Role:         ctx.Role,
		Manifest:     manifest,
		ForensicMode: ctx.ForensicMode,
		StartedAt:    time.Now().UTC(),
	}
}
