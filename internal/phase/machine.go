// Package phase implements the per-component visibility lifecycle
package phase

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/AbdouB/adaptive/internal/models"
)

// Event names of the underlying transition table
const (
	eventWarm              = "warm"
	eventSurfaceComplete   = "surface_complete"
	eventFocus             = "focus"
	eventBlur              = "blur"
	eventDissolve          = "dissolve"
	eventHibernateComplete = "hibernate_complete"
	eventAssignPrefix      = "assign_"
)

// ChangeFunc receives every phase change in order
type ChangeFunc func(next, prev models.Phase)

// AdvanceFunc receives the phase changes the machine makes on its own timers:
// animation completions and auto-surfacing
type AdvanceFunc func(next, prev models.Phase, label models.Transition)

type notification struct {
	next  models.Phase
	prev  models.Phase
	label models.Transition
	auto  bool
}

// Machine owns the phase of exactly one visual element.
// All methods are safe for concurrent use. Change notifications are delivered
// in order and outside the internal lock, so a ChangeFunc may call back into the machine.
type Machine struct {
	id          string
	duration    models.AnimationDuration
	scheduler   Scheduler
	onChange    ChangeFunc
	onAdvance   AdvanceFunc
	logger      *zap.SugaredLogger
	autoSurface bool
	autoDelay   time.Duration

	mu           sync.Mutex
	fsm          *fsm.FSM
	last         models.Transition
	transitioned bool
	changedAt    time.Time
	selfDriven   bool // set while a timer callback applies its transition

	// pending is the scheduled auto-advance; gen invalidates timers that already fired
	pending Timer
	gen     uint64
	closed  bool

	queue      []notification
	delivering bool
}

// Option configures a Machine
type Option func(*Machine)

// WithDuration sets the animation budget driving the auto-advances
func WithDuration(d models.AnimationDuration) Option {
	return func(m *Machine) {
		if d != "" {
			m.duration = d
		}
	}
}

// WithOnChange sets the change callback
func WithOnChange(f ChangeFunc) Option {
	return func(m *Machine) { m.onChange = f }
}

// WithOnAdvance sets the callback for timer-driven changes. It runs after the ChangeFunc.
func WithOnAdvance(f AdvanceFunc) Option {
	return func(m *Machine) { m.onAdvance = f }
}

// WithAutoSurface makes the machine surface itself after delay, without any caller
func WithAutoSurface(delay time.Duration) Option {
	return func(m *Machine) {
		m.autoSurface = true
		m.autoDelay = delay
	}
}

// WithScheduler replaces the timer source
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a machine in the dormant phase
func New(id string, opts ...Option) *Machine {
	m := &Machine{
		id:        id,
		duration:  models.DurationNormal,
		scheduler: RealScheduler{},
		logger:    zap.NewNop().Sugar(),
		changedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}

	all := make([]string, 0, len(models.AllPhases))
	for _, p := range models.AllPhases {
		all = append(all, string(p))
	}

	events := fsm.Events{
		{Name: eventWarm, Src: []string{string(models.PhaseDormant), string(models.PhaseDissolving)}, Dst: string(models.PhaseWarming)},
		{Name: eventSurfaceComplete, Src: []string{string(models.PhaseWarming)}, Dst: string(models.PhaseSurfaced)},
		{Name: eventFocus, Src: []string{string(models.PhaseSurfaced)}, Dst: string(models.PhaseFocused)},
		{Name: eventBlur, Src: []string{string(models.PhaseFocused)}, Dst: string(models.PhaseSurfaced)},
		{Name: eventDissolve, Src: all, Dst: string(models.PhaseDissolving)},
		{Name: eventHibernateComplete, Src: []string{string(models.PhaseDissolving)}, Dst: string(models.PhaseDormant)},
	}
	// Pairs outside the named edges are applied as explicit, unlabeled assignments
	for _, p := range models.AllPhases {
		events = append(events, fsm.EventDesc{Name: eventAssignPrefix + string(p), Src: all, Dst: string(p)})
	}

	m.fsm = fsm.NewFSM(
		string(models.PhaseDormant),
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Debugf("Component %s entered %s from %s via %s", m.id, e.Dst, e.Src, e.Event)
			},
		},
	)

	if m.autoSurface {
		m.mu.Lock()
		gen := m.gen
		m.pending = m.scheduler.AfterFunc(m.autoDelay, func() { m.runAutoSurface(gen) })
		m.mu.Unlock()
	}

	return m
}

// ID returns the component id
func (m *Machine) ID() string {
	return m.id
}

// Duration returns the configured animation budget
func (m *Machine) Duration() models.AnimationDuration {
	return m.duration
}

// Phase returns the current phase
func (m *Machine) Phase() models.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Phase(m.fsm.Current())
}

// State returns a snapshot with derived opacity and relevance
func (m *Machine) State() models.ComponentPhaseState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.NewComponentPhaseState(m.id, models.Phase(m.fsm.Current()), m.last, m.transitioned, m.changedAt)
}

// IsVisible reports phase != dormant
func (m *Machine) IsVisible() bool { return models.IsVisible(m.Phase()) }

// IsInteractive reports phase in {surfaced, focused, dissolving}
func (m *Machine) IsInteractive() bool { return models.IsInteractive(m.Phase()) }

// IsFocused reports phase == focused
func (m *Machine) IsFocused() bool { return models.IsFocused(m.Phase()) }

// Surface requests the surfaced phase
func (m *Machine) Surface() models.Transition { return m.TransitionTo(models.PhaseSurfaced) }

// Dissolve requests the dissolving phase
func (m *Machine) Dissolve() models.Transition { return m.TransitionTo(models.PhaseDissolving) }

// Focus requests the focused phase
func (m *Machine) Focus() models.Transition { return m.TransitionTo(models.PhaseFocused) }

// Blur requests the surfaced phase from focused
func (m *Machine) Blur() models.Transition { return m.TransitionTo(models.PhaseSurfaced) }

// Hibernate requests the dormant phase
func (m *Machine) Hibernate() models.Transition { return m.TransitionTo(models.PhaseDormant) }

// TransitionTo is the single entry point for phase requests. It never fails:
// the most recent request cancels any pending auto-advance, and requests outside
// the named edges are applied directly with TransitionNone.
// It returns the transition label that was applied.
func (m *Machine) TransitionTo(target models.Phase) models.Transition {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.TransitionNone
	}
	if !target.Valid() {
		m.mu.Unlock()
		m.logger.Warnf("Ignoring unknown target phase %q for component %s", target, m.id)
		return models.TransitionNone
	}
	label := m.transitionLocked(target)
	m.mu.Unlock()

	m.deliver()
	return label
}

// transitionLocked applies the transition table. Caller holds m.mu.
func (m *Machine) transitionLocked(target models.Phase) models.Transition {
	m.cancelLocked()

	current := models.Phase(m.fsm.Current())

	switch {
	case target == models.PhaseSurfaced && (current == models.PhaseDormant || current == models.PhaseDissolving):
		m.fireLocked(eventWarm, models.PhaseWarming, models.TransitionSurface)
		m.scheduleLocked(m.duration.Half(), eventSurfaceComplete, models.PhaseSurfaced, models.TransitionSurface)
		return models.TransitionSurface

	case target == models.PhaseFocused && current == models.PhaseSurfaced:
		m.fireLocked(eventFocus, models.PhaseFocused, models.TransitionFocus)
		return models.TransitionFocus

	case target == models.PhaseSurfaced && current == models.PhaseFocused:
		m.fireLocked(eventBlur, models.PhaseSurfaced, models.TransitionBlur)
		return models.TransitionBlur

	case target == models.PhaseDissolving:
		m.fireLocked(eventDissolve, models.PhaseDissolving, models.TransitionDissolve)
		return models.TransitionDissolve

	case target == models.PhaseDormant:
		if current == models.PhaseDormant {
			return models.TransitionNone
		}
		m.fireLocked(eventDissolve, models.PhaseDissolving, models.TransitionHibernate)
		m.scheduleLocked(m.duration.Duration(), eventHibernateComplete, models.PhaseDormant, models.TransitionHibernate)
		return models.TransitionHibernate

	default:
		m.fireLocked(eventAssignPrefix+string(target), target, models.TransitionNone)
		return models.TransitionNone
	}
}

// fireLocked runs one table event and queues the notification. Caller holds m.mu.
func (m *Machine) fireLocked(event string, dst models.Phase, label models.Transition) bool {
	prev := models.Phase(m.fsm.Current())
	if prev == dst {
		return false
	}
	if err := m.fsm.Event(context.Background(), event); err != nil {
		m.logger.Errorf("Transition %s rejected for component %s in %s: %v", event, m.id, prev, err)
		return false
	}
	m.last = label
	m.transitioned = true
	m.changedAt = time.Now()
	m.queue = append(m.queue, notification{next: dst, prev: prev, label: label, auto: m.selfDriven})
	return true
}

// scheduleLocked arms the auto-advance. Caller holds m.mu and has canceled the previous one.
func (m *Machine) scheduleLocked(d time.Duration, event string, dst models.Phase, label models.Transition) {
	gen := m.gen
	m.pending = m.scheduler.AfterFunc(d, func() {
		m.mu.Lock()
		if m.closed || gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.pending = nil
		m.selfDriven = true
		m.fireLocked(event, dst, label)
		m.selfDriven = false
		m.mu.Unlock()
		m.deliver()
	})
}

func (m *Machine) runAutoSurface(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.logger.Debugf("Auto-surfacing component %s", m.id)
	m.selfDriven = true
	m.transitionLocked(models.PhaseSurfaced)
	m.selfDriven = false
	m.mu.Unlock()
	m.deliver()
}

// cancelLocked stops the pending timer and invalidates any callback already in flight
func (m *Machine) cancelLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.gen++
}

// HasPending reports whether an auto-advance is scheduled
func (m *Machine) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Close cancels any pending timer. After Close returns no new notification starts
// and every request is ignored. Close is idempotent.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancelLocked()
	m.closed = true
	m.queue = nil
}

// deliver drains the notification queue in order. Only one goroutine drains at a
// time; nested calls from inside a ChangeFunc just leave their entries for it.
func (m *Machine) deliver() {
	m.mu.Lock()
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	for len(m.queue) > 0 && !m.closed {
		n := m.queue[0]
		m.queue = m.queue[1:]
		cb, adv := m.onChange, m.onAdvance
		m.mu.Unlock()
		if cb != nil {
			cb(n.next, n.prev)
		}
		if adv != nil && n.auto {
			adv(n.next, n.prev, n.label)
		}
		m.mu.Lock()
	}
	m.queue = nil
	m.delivering = false
	m.mu.Unlock()
}
