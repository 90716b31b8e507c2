package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AbdouB/adaptive/internal/models"
)

// ErrChainBroken is returned when an audit hash does not match its predecessor
var ErrChainBroken = errors.New("audit hash chain broken")

// appendLocked creates, seals and stores one forensic event. Caller holds r.mu.
func (r *Registry) appendLocked(eventType models.ForensicEventType, componentID string, details map[string]any) {
	e := models.NewForensicEvent(r.cfg.SessionID, eventType, componentID, details)
	if r.forensicMode {
		sealed, err := e.Sealed(r.lastHash)
		if err != nil {
			r.logger.Errorf("Failed to seal forensic event %s: %v", e.ID, err)
		} else {
			e = sealed
			r.lastHash = sealed.AuditHash
		}
	}

	r.events = append(r.events, e)
	if over := len(r.events) - r.cfg.MaxEvents; over > 0 {
		for _, dropped := range r.events[:over] {
			if dropped.AuditHash != "" {
				r.anchor = dropped.AuditHash
			}
		}
		kept := make([]models.ForensicEvent, len(r.events)-over)
		copy(kept, r.events[over:])
		r.events = kept
	}

	r.outbox = append(r.outbox, e)
	r.metrics.ObserveEvent(eventType)
}

// Events returns a copy of the retained forensic log, oldest first
func (r *Registry) Events() []models.ForensicEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ForensicEvent, len(r.events))
	copy(out, r.events)
	return out
}

// EventCount returns the number of retained forensic events
func (r *Registry) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ChainAnchor returns the hash preceding the oldest retained sealed event
func (r *Registry) ChainAnchor() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anchor
}

// Subscribe registers an observer for every appended forensic event. Observers run
// outside the registry lock, in append order, and may call back into the registry.
func (r *Registry) Subscribe(fn func(models.ForensicEvent)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.eventSubs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.eventSubs, id)
	}
}

// flush delivers queued events. Only one goroutine drains at a time; events appended
// by an observer are picked up by the same loop.
func (r *Registry) flush() {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	for len(r.outbox) > 0 {
		e := r.outbox[0]
		r.outbox = r.outbox[1:]

		ids := make([]int, 0, len(r.eventSubs))
		for id := range r.eventSubs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		subs := make([]func(models.ForensicEvent), 0, len(ids))
		for _, id := range ids {
			subs = append(subs, r.eventSubs[id])
		}

		r.mu.Unlock()
		for _, fn := range subs {
			fn(e)
		}
		r.mu.Lock()
	}
	r.outbox = nil
	r.flushing = false
	r.mu.Unlock()
}

// VerifyChain checks the audit hashes of events, starting from anchor.
// Events without a hash were appended outside forensic mode and are skipped.
func VerifyChain(events []models.ForensicEvent, anchor string) error {
	prev := anchor
	for i, e := range events {
		if e.AuditHash == "" {
			continue
		}
		want, err := e.ComputeHash(prev)
		if err != nil {
			return fmt.Errorf("failed to hash event %d (%s): %w", i, e.ID, err)
		}
		if want != e.AuditHash {
			return fmt.Errorf("%w at event %d (%s)", ErrChainBroken, i, e.ID)
		}
		prev = e.AuditHash
	}
	return nil
}
