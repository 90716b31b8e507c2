package models

import (
	"maps"
	"time"
)

// Urgency is the session-wide attention level
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is one of the known levels
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// DeviceClass describes the form factor the session is rendered on
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceTablet  DeviceClass = "tablet"
	DeviceMobile  DeviceClass = "mobile"
)

// DefaultMaxHistory bounds the interaction history kept in the session context
const DefaultMaxHistory = 50

// SessionContext is the registry-owned bundle of user, device and urgency state
type SessionContext struct {
	Role         string             `json:"role"`
	Urgency      Urgency            `json:"urgency"`
	Device       DeviceClass        `json:"device"`
	ForensicMode bool               `json:"forensic_mode"`
	Preferences  map[string]any     `json:"preferences,omitempty"`
	History      []InteractionEvent `json:"history,omitempty"`
}

// DefaultSessionContext returns the context a fresh session starts with
func DefaultSessionContext() SessionContext {
	return SessionContext{
		Role:        "analyst",
		Urgency:     UrgencyNormal,
		Device:      DeviceDesktop,
		Preferences: map[string]any{},
	}
}

// Clone returns a copy that shares no mutable state with c
func (c SessionContext) Clone() SessionContext {
	out := c
	out.Preferences = maps.Clone(c.Preferences)
	if c.History != nil {
		out.History = make([]InteractionEvent, len(c.History))
		copy(out.History, c.History)
	}
	return out
}

// ContextUpdate is a partial session context. Nil fields are left untouched.
type ContextUpdate struct {
	Role         *string        `json:"role,omitempty"`
	Urgency      *Urgency       `json:"urgency,omitempty"`
	Device       *DeviceClass   `json:"device,omitempty"`
	ForensicMode *bool          `json:"forensic_mode,omitempty"`
	Preferences  map[string]any `json:"preferences,omitempty"`
}

// Empty reports whether the update carries no field
func (u ContextUpdate) Empty() bool {
	return u.Role == nil && u.Urgency == nil && u.Device == nil && u.ForensicMode == nil && u.Preferences == nil
}

// Fields returns the set fields keyed by their JSON names
func (u ContextUpdate) Fields() map[string]any {
	out := map[string]any{}
	if u.Role != nil {
		out["role"] = *u.Role
	}
	if u.Urgency != nil {
		out["urgency"] = string(*u.Urgency)
	}
	if u.Device != nil {
		out["device"] = string(*u.Device)
	}
	if u.ForensicMode != nil {
		out["forensic_mode"] = *u.ForensicMode
	}
	if u.Preferences != nil {
		out["preferences"] = maps.Clone(u.Preferences)
	}
	return out
}

// Merge shallow-merges u into c and returns the result; c is not modified.
// Preferences are replaced as a whole, not merged key by key.
func (c SessionContext) Merge(u ContextUpdate) SessionContext {
	out := c.Clone()
	if u.Role != nil {
		out.Role = *u.Role
	}
	if u.Urgency != nil {
		out.Urgency = *u.Urgency
	}
	if u.Device != nil {
		out.Device = *u.Device
	}
	if u.ForensicMode != nil {
		out.ForensicMode = *u.ForensicMode
	}
	if u.Preferences != nil {
		out.Preferences = maps.Clone(u.Preferences)
	}
	return out
}

// InteractionEvent is one entry of the bounded interaction history
type InteractionEvent struct {
	Type        string    `json:"type"` // click, chat, intent, drag
	ComponentID string    `json:"component_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewInteractionEvent creates an interaction stamped with the current time
func NewInteractionEvent(eventType, componentID, text string) InteractionEvent {
	return InteractionEvent{
		Type:        eventType,
		ComponentID: componentID,
		Text:        text,
		Timestamp:   time.Now(),
	}
}

// AppendHistory returns a copy of c with e appended, keeping at most max entries
func (c SessionContext) AppendHistory(e InteractionEvent, max int) SessionContext {
	out := c.Clone()
	out.History = append(out.History, e)
	if max > 0 && len(out.History) > max {
		out.History = out.History[len(out.History)-max:]
	}
	return out
}

// StringPtr returns a pointer to s, for building ContextUpdate literals
func StringPtr(s string) *string { return &s }

// UrgencyPtr returns a pointer to u
func UrgencyPtr(u Urgency) *Urgency { return &u }

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool { return &b }
