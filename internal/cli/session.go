package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/AbdouB/adaptive/internal/config"
	"github.com/AbdouB/adaptive/internal/db"
	"github.com/AbdouB/adaptive/internal/logger"
	"github.com/AbdouB/adaptive/internal/metrics"
	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/orchestrator"
)

// phaseChange is one observed transition, in the order it was delivered
type phaseChange struct {
	ComponentID string       `json:"component_id"`
	From        models.Phase `json:"from"`
	To          models.Phase `json:"to"`
	At          time.Time    `json:"at"`
}

// liveSession couples a registry with its audit store and metrics
type liveSession struct {
	registry *orchestrator.Registry
	promReg  *prometheus.Registry
	sessions *db.SessionRepository
	events   *db.ForensicRepository

	mu          sync.Mutex
	changes     []phaseChange
	persistErrs int
	unsubscribe []func()
}

// startSession creates a registry, persists its session record and registers
// every component of the manifest. Events are written to the store as they are appended.
func startSession(manifestPath string, sctx models.SessionContext) (*liveSession, error) {
	if manifestPath == "" {
		manifestPath = cfg.Manifest
	}
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	registry, err := orchestrator.New(
		orchestrator.WithConfig(cfg.Orchestrator("")),
		orchestrator.WithLogger(logger.For("orchestrator")),
		orchestrator.WithMetrics(metrics.New(promReg)),
		orchestrator.WithSessionContext(sctx),
	)
	if err != nil {
		return nil, err
	}

	s := &liveSession{
		registry: registry,
		promReg:  promReg,
		sessions: db.NewSessionRepository(database),
		events:   db.NewForensicRepository(database),
	}

	record := models.NewSessionRecord(registry.SessionID(), sctx, manifestPath)
	if err := s.sessions.Create(record); err != nil {
		registry.Close()
		return nil, err
	}

	s.unsubscribe = append(s.unsubscribe,
		registry.Subscribe(s.persist),
		registry.OnPhaseChange(s.record),
	)

	for _, c := range manifest.Components {
		if err := registry.RegisterComponent(c); err != nil {
			return nil, s.abort(err)
		}
	}
	log.Debugf("Session %s started with %d components", registry.SessionID(), len(manifest.Components))
	return s, nil
}

func (s *liveSession) persist(e models.ForensicEvent) {
	if err := s.events.Create(e); err != nil {
		log.Errorf("Failed to persist forensic event %s: %v", e.ID, err)
		s.mu.Lock()
		s.persistErrs++
		s.mu.Unlock()
	}
}

func (s *liveSession) record(id string, next, prev models.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, phaseChange{ComponentID: id, From: prev, To: next, At: time.Now().UTC()})
}

// takeChanges returns and clears the transitions observed so far
func (s *liveSession) takeChanges() []phaseChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.changes
	s.changes = nil
	return out
}

// close tears the registry down and finalises the session record
func (s *liveSession) close() error {
	s.registry.Close()
	for _, fn := range s.unsubscribe {
		fn()
	}
	count, err := s.events.CountBySession(s.registry.SessionID())
	if err != nil {
		return err
	}
	if err := s.sessions.End(s.registry.SessionID(), count, s.registry.ChainAnchor()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErrs > 0 {
		return fmt.Errorf("%d forensic events could not be persisted", s.persistErrs)
	}
	return nil
}

// abort closes the session on an error path; a close failure is joined to cause
func (s *liveSession) abort(cause error) error {
	if err := s.close(); err != nil {
		log.Errorf("Failed to close session %s: %v", s.registry.SessionID(), err)
		return errors.Join(cause, fmt.Errorf("failed to close session: %w", err))
	}
	return cause
}

// metricValues flattens the session's counters and gauges into name{labels} => value
func (s *liveSession) metricValues() (map[string]float64, error) {
	families, err := s.promReg.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	out := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}

// parseValue decodes a command-line value as a YAML scalar or flow sequence,
// so errors=3 is a number, ok=true a bool and tags=[a, b] a list
func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// parseAssignment splits key=value
func parseAssignment(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("expected key=value, got %q", s)
	}
	if key == "" {
		return "", nil, fmt.Errorf("missing key in %q", s)
	}
	return key, parseValue(raw), nil
}

// sortedKeys returns map keys in order for stable text output
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// contextFromFlags builds the starting session context
func contextFromFlags(role, urgency string, forensic bool) (models.SessionContext, error) {
	sctx := models.DefaultSessionContext()
	if role != "" {
		sctx.Role = role
	}
	if urgency != "" {
		u := models.Urgency(urgency)
		if !u.Valid() {
			return sctx, fmt.Errorf("invalid urgency %q", urgency)
		}
		sctx.Urgency = u
	}
	sctx.ForensicMode = forensic
	return sctx, nil
}
