// Package orchestrator coordinates many phase machines with shared session context
// and an append-only forensic event log.
//
// A Registry is created explicitly for one session and torn down with Close.
// Each component's phase.Machine is the only owner of its phase; the registry holds
// handles to the machines and never writes a phase itself.
//
// Actions naming an unknown component id are documented no-ops: they return false,
// append no forensic event and leave the session context unchanged. Components can
// unmount while async actions targeting them are still in flight.
//
// Calling a mutating method on a closed or zero-value Registry is a wiring bug and panics.
package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AbdouB/adaptive/internal/conditions"
	"github.com/AbdouB/adaptive/internal/metrics"
	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/phase"
)

var (
	// ErrRegistryClosed is the panic value for mutations after Close
	ErrRegistryClosed = errors.New("registry is closed")
	// ErrNotInitialized is the panic value for a Registry not built with New
	ErrNotInitialized = errors.New("registry used without orchestrator.New")
	// ErrInvalidComponent is returned when a registration has no id
	ErrInvalidComponent = errors.New("invalid component config")
)

// Config holds registry tunables
type Config struct {
	SessionID         string
	Duration          models.AnimationDuration // Default for components that declare none
	SurfaceThreshold  float64                  // Surface score at or above which EvaluateAll promotes
	DissolveThreshold float64                  // Dissolve score at or above which EvaluateAll demotes
	MaxEvents         int                      // In-memory forensic log cap, oldest dropped first
	MaxHistory        int                      // Interaction history cap
}

// DefaultConfig returns the default tunables
func DefaultConfig() Config {
	return Config{
		Duration:          models.DurationNormal,
		SurfaceThreshold:  0.5,
		DissolveThreshold: 0.5,
		MaxEvents:         models.DefaultMaxEvents,
		MaxHistory:        models.DefaultMaxHistory,
	}
}

// PhaseChangeFunc observes phase changes of any registered component
type PhaseChangeFunc func(componentID string, next, prev models.Phase)

type component struct {
	config  models.ComponentConfig
	machine *phase.Machine
}

// Registry is the session-scoped orchestrator
type Registry struct {
	cfg       Config
	logger    *zap.SugaredLogger
	scheduler phase.Scheduler
	metrics   *metrics.Metrics
	evaluator *conditions.Evaluator

	mu           sync.Mutex
	components   map[string]*component
	context      models.SessionContext
	forensicMode bool
	status       models.SystemStatus
	data         map[string]any
	intent       string
	closed       bool

	events   []models.ForensicEvent
	lastHash string
	anchor   string // Hash preceding the oldest retained sealed event

	eventSubs map[int]func(models.ForensicEvent)
	phaseSubs map[int]PhaseChangeFunc
	nextSub   int
	outbox    []models.ForensicEvent
	flushing  bool
}

// Option configures a Registry
type Option func(*Registry)

// WithConfig replaces the tunables; zero fields keep their defaults
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		def := DefaultConfig()
		if cfg.Duration == "" {
			cfg.Duration = def.Duration
		}
		if cfg.SurfaceThreshold <= 0 {
			cfg.SurfaceThreshold = def.SurfaceThreshold
		}
		if cfg.DissolveThreshold <= 0 {
			cfg.DissolveThreshold = def.DissolveThreshold
		}
		if cfg.MaxEvents <= 0 {
			cfg.MaxEvents = def.MaxEvents
		}
		if cfg.MaxHistory <= 0 {
			cfg.MaxHistory = def.MaxHistory
		}
		if cfg.SessionID == "" {
			cfg.SessionID = r.cfg.SessionID
		}
		r.cfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithScheduler sets the timer source handed to every machine
func WithScheduler(s phase.Scheduler) Option {
	return func(r *Registry) { r.scheduler = s }
}

// WithMetrics attaches Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithEvaluator replaces the condition evaluator
func WithEvaluator(e *conditions.Evaluator) Option {
	return func(r *Registry) { r.evaluator = e }
}

// WithSessionContext sets the initial session context
func WithSessionContext(c models.SessionContext) Option {
	return func(r *Registry) {
		r.context = c.Clone()
		r.forensicMode = c.ForensicMode
	}
}

// New creates a registry for one session
func New(opts ...Option) (*Registry, error) {
	cfg := DefaultConfig()
	cfg.SessionID = uuid.New().String()

	r := &Registry{
		cfg:        cfg,
		logger:     zap.NewNop().Sugar(),
		scheduler:  phase.RealScheduler{},
		components: make(map[string]*component),
		context:    models.DefaultSessionContext(),
		status:     models.SystemStatus{Status: models.StatusIdle},
		data:       map[string]any{},
		eventSubs:  make(map[int]func(models.ForensicEvent)),
		phaseSubs:  make(map[int]PhaseChangeFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New(nil)
	}
	if r.evaluator == nil {
		e, err := conditions.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to create evaluator: %w", err)
		}
		r.evaluator = e
	}

	r.logger.Debugf("Registry created for session %s", r.cfg.SessionID)
	return r, nil
}

// SessionID returns the session this registry belongs to
func (r *Registry) SessionID() string {
	return r.cfg.SessionID
}

// lockOpen takes the lock and panics on wiring bugs
func (r *Registry) lockOpen() {
	if r.components == nil {
		panic(ErrNotInitialized)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		panic(ErrRegistryClosed)
	}
}

// RegisterComponent creates a dormant machine for cfg. Re-registering a live id
// closes the old machine first, so none of its timers can fire afterwards.
func (r *Registry) RegisterComponent(cfg models.ComponentConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidComponent)
	}

	c := &component{config: cfg}
	duration := cfg.Duration
	if duration == "" {
		duration = r.cfg.Duration
	}
	opts := []phase.Option{
		phase.WithDuration(duration),
		phase.WithScheduler(r.scheduler),
		phase.WithLogger(r.logger.Named(cfg.ID)),
		phase.WithOnChange(func(next, prev models.Phase) { r.onPhaseChange(c, next, prev) }),
		phase.WithOnAdvance(func(next, prev models.Phase, label models.Transition) { r.onAdvance(c, next, prev, label) }),
	}
	if cfg.AutoSurface {
		opts = append(opts, phase.WithAutoSurface(cfg.AutoSurfaceDelay))
	}

	r.lockOpen()
	old, replaced := r.components[cfg.ID]
	if replaced {
		old.machine.Close()
	}
	c.machine = phase.New(cfg.ID, opts...)
	r.components[cfg.ID] = c
	r.metrics.Components.Set(float64(len(r.components)))
	r.appendLocked(models.EventSystem, cfg.ID, map[string]any{
		"action":   "component_registered",
		"category": cfg.Category,
		"replaced": replaced,
	})
	r.mu.Unlock()

	if replaced {
		r.logger.Warnf("Component %s re-registered, previous machine closed", cfg.ID)
	}
	r.flush()
	return nil
}

// UnregisterComponent closes the machine and removes it. It reports whether id was registered.
func (r *Registry) UnregisterComponent(id string) bool {
	r.lockOpen()
	c, ok := r.components[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	// Close before removal so no timer of this machine outlives its entry
	c.machine.Close()
	delete(r.components, id)
	r.metrics.Components.Set(float64(len(r.components)))
	r.appendLocked(models.EventSystem, id, map[string]any{"action": "component_unregistered"})
	r.mu.Unlock()

	r.flush()
	return true
}

// Surface requests the surfaced phase; the machine runs the warming hop
func (r *Registry) Surface(id, reason string) bool {
	return r.request(id, models.PhaseSurfaced, reason)
}

// Dissolve requests the dissolving phase
func (r *Registry) Dissolve(id string) bool {
	return r.request(id, models.PhaseDissolving, "")
}

// Focus requests the focused phase
func (r *Registry) Focus(id string) bool {
	return r.request(id, models.PhaseFocused, "")
}

// Blur requests the surfaced phase from focused
func (r *Registry) Blur(id string) bool {
	return r.request(id, models.PhaseSurfaced, "")
}

// Hibernate requests the dormant phase through the dissolving hold
func (r *Registry) Hibernate(id string) bool {
	return r.request(id, models.PhaseDormant, "")
}

func (r *Registry) request(id string, target models.Phase, reason string) bool {
	r.lockOpen()
	c, ok := r.components[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debugf("Ignoring %s request for unknown component %s", target, id)
		return false
	}
	details := map[string]any{
		"componentId": id,
		"phase":       string(target),
	}
	if reason != "" {
		details["reason"] = reason
	}
	r.appendLocked(models.EventPhaseTransition, id, details)
	m := c.machine
	r.mu.Unlock()

	// Outside the registry lock: the machine's notifications call back into onPhaseChange
	m.TransitionTo(target)
	r.flush()
	return true
}

func (r *Registry) onPhaseChange(c *component, next, prev models.Phase) {
	r.mu.Lock()
	if current, ok := r.components[c.config.ID]; !ok || current != c {
		r.mu.Unlock()
		return
	}
	subs := r.phaseSubscribersLocked()
	r.mu.Unlock()

	r.metrics.ObservePhase(next)
	r.logger.Debugf("Component %s: %s -> %s", c.config.ID, prev, next)
	for _, fn := range subs {
		fn(c.config.ID, next, prev)
	}
}

// onAdvance records changes the machine made on its own timers. Requested changes are
// already logged by request, so these carry action phase_changed instead of a target.
func (r *Registry) onAdvance(c *component, next, prev models.Phase, label models.Transition) {
	r.mu.Lock()
	if current, ok := r.components[c.config.ID]; r.closed || !ok || current != c {
		r.mu.Unlock()
		return
	}
	r.appendLocked(models.EventPhaseTransition, c.config.ID, map[string]any{
		"componentId": c.config.ID,
		"action":      "phase_changed",
		"from":        string(prev),
		"to":          string(next),
		"transition":  string(label),
	})
	r.mu.Unlock()
	r.flush()
}

// SetContext shallow-merges the update into the session context and logs the merged keys.
// An empty update changes nothing and logs nothing.
func (r *Registry) SetContext(u models.ContextUpdate) {
	if u.Empty() {
		return
	}
	r.lockOpen()
	r.context = r.context.Merge(u)
	if u.ForensicMode != nil {
		r.forensicMode = *u.ForensicMode
	}
	r.appendLocked(models.EventSystem, "", map[string]any{
		"action":  "context_updated",
		"updates": u.Fields(),
	})
	r.mu.Unlock()
	r.flush()
}

// SetForensicMode toggles audit hashing; the flag is mirrored into the session context
func (r *Registry) SetForensicMode(enabled bool) {
	r.lockOpen()
	r.forensicMode = enabled
	r.context = r.context.Merge(models.ContextUpdate{ForensicMode: &enabled})
	r.appendLocked(models.EventSystem, "", map[string]any{
		"action":  "forensic_mode",
		"enabled": enabled,
	})
	r.mu.Unlock()
	r.flush()
}

// SetStatus replaces the system status indicator. It is presentation state and is not logged.
func (r *Registry) SetStatus(s models.SystemStatus) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	r.lockOpen()
	r.status = s
	r.mu.Unlock()
	return nil
}

// SetData publishes a data-state value read by data conditions
func (r *Registry) SetData(key string, value any) {
	r.lockOpen()
	data := make(map[string]any, len(r.data)+1)
	for k, v := range r.data {
		data[k] = v
	}
	data[key] = value
	r.data = data
	r.appendLocked(models.EventSystem, "", map[string]any{
		"action": "data_updated",
		"key":    key,
	})
	r.mu.Unlock()
	r.flush()
}

// SetIntent records free-text chat input as the current intent
func (r *Registry) SetIntent(text string) {
	r.lockOpen()
	r.intent = text
	r.context = r.context.AppendHistory(models.NewInteractionEvent("intent", "", text), r.cfg.MaxHistory)
	r.appendLocked(models.EventUserInteraction, "", map[string]any{
		"type": "intent",
		"text": text,
	})
	r.mu.Unlock()
	r.flush()
}

// RecordInteraction appends to the bounded interaction history
func (r *Registry) RecordInteraction(e models.InteractionEvent) {
	r.lockOpen()
	r.context = r.context.AppendHistory(e, r.cfg.MaxHistory)
	details := map[string]any{"type": e.Type}
	if e.Text != "" {
		details["text"] = e.Text
	}
	r.appendLocked(models.EventUserInteraction, e.ComponentID, details)
	r.mu.Unlock()
	r.flush()
}

// Get returns the phase snapshot of one component
func (r *Registry) Get(id string) (models.ComponentPhaseState, bool) {
	r.mu.Lock()
	c, ok := r.components[id]
	r.mu.Unlock()
	if !ok {
		return models.ComponentPhaseState{}, false
	}
	return c.machine.State(), true
}

// Machine returns the handle of one component, for UI code that drives it directly
func (r *Registry) Machine(id string) (*phase.Machine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[id]
	if !ok {
		return nil, false
	}
	return c.machine, true
}

// Config returns the registration of one component
func (r *Registry) Config(id string) (models.ComponentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[id]
	if !ok {
		return models.ComponentConfig{}, false
	}
	return c.config, true
}

// Components returns snapshots of every component ordered by id
func (r *Registry) Components() []models.ComponentPhaseState {
	r.mu.Lock()
	machines := make([]*phase.Machine, 0, len(r.components))
	for _, c := range r.components {
		machines = append(machines, c.machine)
	}
	r.mu.Unlock()

	out := make([]models.ComponentPhaseState, 0, len(machines))
	for _, m := range machines {
		out = append(out, m.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Context returns a copy of the session context
func (r *Registry) Context() models.SessionContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context.Clone()
}

// ForensicMode reports the forensic flag
func (r *Registry) ForensicMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forensicMode
}

// Status returns the system status
func (r *Registry) Status() models.SystemStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot returns the state conditions are evaluated against
func (r *Registry) Snapshot() conditions.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return conditions.Snapshot{
		Context: r.context.Clone(),
		Status:  r.status,
		Data:    r.data,
		Intent:  r.intent,
	}
}

// OnPhaseChange subscribes to phase changes of every component
func (r *Registry) OnPhaseChange(fn PhaseChangeFunc) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.phaseSubs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.phaseSubs, id)
	}
}

func (r *Registry) phaseSubscribersLocked() []PhaseChangeFunc {
	ids := make([]int, 0, len(r.phaseSubs))
	for id := range r.phaseSubs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]PhaseChangeFunc, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.phaseSubs[id])
	}
	return out
}

// Close tears the session down: every machine is closed before the registry
// drops it. Close is idempotent; later mutations panic with ErrRegistryClosed.
func (r *Registry) Close() {
	if r.components == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for id, c := range r.components {
		c.machine.Close()
		delete(r.components, id)
	}
	r.metrics.Components.Set(0)
	r.appendLocked(models.EventSystem, "", map[string]any{"action": "session_closed"})
	r.closed = true
	r.mu.Unlock()

	r.flush()
	r.logger.Debugf("Registry for session %s closed", r.cfg.SessionID)
}
