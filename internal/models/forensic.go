package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// ForensicEventType classifies an audit trail entry
type ForensicEventType string

const (
	EventPhaseTransition ForensicEventType = "phase_transition"
	EventSystem          ForensicEventType = "system_event"
	EventUserInteraction ForensicEventType = "user_interaction"
)

// DefaultMaxEvents caps the in-memory forensic log
const DefaultMaxEvents = 1000

// ForensicEvent is an immutable audit trail entry
type ForensicEvent struct {
	ID          string            `json:"id" db:"id"`
	SessionID   string            `json:"session_id,omitempty" db:"session_id"`
	Timestamp   time.Time         `json:"timestamp" db:"-"`
	EventType   ForensicEventType `json:"event_type" db:"event_type"`
	ComponentID string            `json:"component_id,omitempty" db:"component_id"`
	Details     map[string]any    `json:"details"`
	AuditHash   string            `json:"audit_hash,omitempty" db:"audit_hash"`
}

// NewForensicEvent creates an event stamped with a fresh id and the current UTC time
func NewForensicEvent(sessionID string, eventType ForensicEventType, componentID string, details map[string]any) ForensicEvent {
	if details == nil {
		details = map[string]any{}
	}
	return ForensicEvent{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Timestamp:   time.Now().UTC().Round(0),
		EventType:   eventType,
		ComponentID: componentID,
		Details:     details,
	}
}

// ComputeHash returns sha256(prevHash || JCS(event without its hash)) in hex.
// The payload is RFC 8785 canonical JSON, so equal content hashes equally after
// a storage round trip.
func (e ForensicEvent) ComputeHash(prevHash string) (string, error) {
	e.AuditHash = ""
	payload, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sealed returns a copy of e carrying the hash chained onto prevHash
func (e ForensicEvent) Sealed(prevHash string) (ForensicEvent, error) {
	hash, err := e.ComputeHash(prevHash)
	if err != nil {
		return e, err
	}
	e.AuditHash = hash
	return e, nil
}
