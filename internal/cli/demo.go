package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/orchestrator"
)

// settle is added to every animation wait so the timer has fired
const settle = 50 * time.Millisecond

// demoStep is one checked action of a scenario
type demoStep struct {
	Scenario string       `json:"scenario"`
	Action   string       `json:"action"`
	Expected models.Phase `json:"expected"`
	Actual   models.Phase `json:"actual"`
	OK       bool         `json:"ok"`
}

// demoRun drives one component through the scenarios and records what it saw
type demoRun struct {
	session *liveSession
	id      string
	steps   []demoStep
}

func (d *demoRun) check(scenario, action string, expected models.Phase) {
	state, _ := d.session.registry.Get(d.id)
	d.steps = append(d.steps, demoStep{
		Scenario: scenario,
		Action:   action,
		Expected: expected,
		Actual:   state.Phase,
		OK:       state.Phase == expected,
	})
}

func (d *demoRun) wait(dur time.Duration) {
	time.Sleep(dur + settle)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the phase lifecycle scenarios",
	Long: `Register the manifest components and drive one of them through the
basic lifecycle, the focus round trip and the surface/dissolve cancel race,
then let the rule engine react to data and urgency.

All events are persisted; the audit chain is verified at the end.

Example:
  adaptive demo
  adaptive demo --manifest components.yaml --component validation-grid --text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _ := cmd.Flags().GetString("manifest")
		componentID, _ := cmd.Flags().GetString("component")

		sctx := models.DefaultSessionContext()
		sctx.ForensicMode = true
		s, err := startSession(manifest, sctx)
		if err != nil {
			return err
		}

		if componentID == "" {
			components := s.registry.Components()
			if len(components) == 0 {
				return s.abort(fmt.Errorf("manifest declares no components"))
			}
			componentID = components[0].ID
		}
		machine, ok := s.registry.Machine(componentID)
		if !ok {
			return s.abort(fmt.Errorf("unknown component %q", componentID))
		}
		dur := machine.Duration()

		d := &demoRun{session: s, id: componentID}
		r := s.registry

		// Basic lifecycle
		r.Surface(componentID, "demo: basic lifecycle")
		d.check("basic", "surface", models.PhaseWarming)
		d.wait(dur.Half())
		d.check("basic", "animation complete", models.PhaseSurfaced)

		// Focus round trip
		r.Focus(componentID)
		d.check("focus", "focus", models.PhaseFocused)
		r.Blur(componentID)
		d.check("focus", "blur", models.PhaseSurfaced)

		// Hibernate to dormant
		r.Hibernate(componentID)
		d.check("hibernate", "hibernate", models.PhaseDissolving)
		d.wait(dur.Duration())
		d.check("hibernate", "animation complete", models.PhaseDormant)

		// Cancel race: dissolve lands before the surface animation completes
		r.Surface(componentID, "demo: cancel race")
		r.Dissolve(componentID)
		d.check("cancel-race", "surface then dissolve", models.PhaseDissolving)
		d.wait(dur.Half())
		d.check("cancel-race", "stale surface timer", models.PhaseDissolving)

		// Rule-driven surfacing
		r.SetData("errors", 3)
		r.SetContext(models.ContextUpdate{Urgency: models.UrgencyPtr(models.UrgencyCritical)})
		evaluations := r.EvaluateAll()

		changes := s.takeChanges()
		metricValues, err := s.metricValues()
		if err != nil {
			return s.abort(err)
		}
		if err := s.close(); err != nil {
			return err
		}

		stored, err := s.events.ListBySession(r.SessionID(), 0)
		if err != nil {
			return err
		}
		chainErr := orchestrator.VerifyChain(stored, "")

		passed := 0
		for _, st := range d.steps {
			if st.OK {
				passed++
			}
		}

		if !outputText {
			result := map[string]interface{}{
				"session_id":    r.SessionID(),
				"component_id":  componentID,
				"steps":         d.steps,
				"passed":        passed,
				"total":         len(d.steps),
				"phase_changes": changes,
				"evaluations":   evaluations,
				"events_stored": len(stored),
				"chain_valid":   chainErr == nil,
				"metrics":       metricValues,
			}
			if chainErr != nil {
				result["chain_error"] = chainErr.Error()
			}
			outputResult(result)
			return nil
		}

		fmt.Printf("Session %s (component: %s, duration: %s)\n", r.SessionID(), componentID, dur)
		fmt.Println(strings.Repeat("-", 50))
		for _, st := range d.steps {
			mark := "ok  "
			if !st.OK {
				mark = "FAIL"
			}
			fmt.Printf("  [%s] %-12s %-24s %s\n", mark, st.Scenario, st.Action, st.Actual)
		}
		fmt.Printf("\n%d/%d checks passed\n", passed, len(d.steps))

		fmt.Printf("\nPhase changes (%d):\n", len(changes))
		for _, c := range changes {
			fmt.Printf("  %s  %-16s %s -> %s\n", c.At.Format("15:04:05.000"), c.ComponentID, c.From, c.To)
		}

		if len(evaluations) > 0 {
			fmt.Println("\nRule evaluation:")
			printEvaluations(evaluations)
		}

		fmt.Printf("\nEvents stored: %d\n", len(stored))
		if chainErr != nil {
			fmt.Printf("Audit chain: BROKEN (%v)\n", chainErr)
		} else {
			fmt.Println("Audit chain: valid")
		}

		fmt.Println("\nMetrics:")
		for _, k := range sortedKeys(metricValues) {
			fmt.Printf("  %s %g\n", k, metricValues[k])
		}
		return nil
	},
}

// printEvaluations renders EvaluateAll results for --text output
func printEvaluations(evaluations []orchestrator.Evaluation) {
	for _, ev := range evaluations {
		marker := " "
		switch ev.Action {
		case orchestrator.ActionSurface:
			marker = "+"
		case orchestrator.ActionDissolve:
			marker = "-"
		}
		forced := ""
		if ev.Forced {
			forced = " (forced)"
		}
		fmt.Printf("  %s %-20s surface=%.2f dissolve=%.2f %s%s\n",
			marker, ev.ComponentID, ev.SurfaceScore, ev.DissolveScore, ev.Action, forced)
		for _, e := range ev.Errors {
			fmt.Printf("      error: %s\n", e)
		}
	}
}

func init() {
	demoCmd.Flags().String("manifest", "", "Component manifest (YAML); defaults to the built-in components")
	demoCmd.Flags().String("component", "", "Component to drive; defaults to the first registered")

	rootCmd.AddCommand(demoCmd)
}
