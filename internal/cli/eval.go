package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdouB/adaptive/internal/models"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate component rules once against the given state",
	Long: `Build a session from the flags, run the rule engine once and report
which components would surface or dissolve.

Example:
  adaptive eval --set errors=3
  adaptive eval --set errors=3 --urgency critical --intent "show validation errors"
  adaptive eval --set upload=report.csv --text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _ := cmd.Flags().GetString("manifest")
		sets, _ := cmd.Flags().GetStringArray("set")
		intentText, _ := cmd.Flags().GetString("intent")
		role, _ := cmd.Flags().GetString("role")
		urgency, _ := cmd.Flags().GetString("urgency")
		forensic, _ := cmd.Flags().GetBool("forensic")

		sctx, err := contextFromFlags(role, urgency, forensic)
		if err != nil {
			return err
		}

		assignments := make(map[string]any, len(sets))
		order := make([]string, 0, len(sets))
		for _, a := range sets {
			key, value, err := parseAssignment(a)
			if err != nil {
				return err
			}
			if _, seen := assignments[key]; !seen {
				order = append(order, key)
			}
			assignments[key] = value
		}

		s, err := startSession(manifest, sctx)
		if err != nil {
			return err
		}
		r := s.registry
		for _, key := range order {
			r.SetData(key, assignments[key])
		}
		if intentText != "" {
			r.SetIntent(intentText)
		}

		intents := r.DetectIntents()
		evaluations := r.EvaluateAll()
		components := r.Components()
		if err := s.close(); err != nil {
			return err
		}

		if !outputText {
			outputResult(map[string]interface{}{
				"session_id":  r.SessionID(),
				"data":        assignments,
				"intent":      intentText,
				"intents":     intents,
				"evaluations": evaluations,
				"components":  components,
			})
			return nil
		}

		fmt.Printf("Session %s\n", r.SessionID())
		if len(evaluations) == 0 {
			fmt.Println("No component declares conditions.")
			return nil
		}
		for _, m := range intents {
			fmt.Printf("Intent: %s %q (%.2f) %s\n", m.Key, m.Phrase, m.Score, markHighlights(strings.TrimSpace(intentText), m.Highlights))
		}
		printEvaluations(evaluations)
		fmt.Println()
		for _, c := range components {
			if c.Phase != models.PhaseDormant {
				fmt.Printf("  %-20s %s\n", c.ID, c.Phase)
			}
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().String("manifest", "", "Component manifest (YAML); defaults to the built-in components")
	evalCmd.Flags().StringArray("set", nil, "Data value as key=value (repeatable)")
	evalCmd.Flags().String("intent", "", "Free-text intent")
	evalCmd.Flags().String("role", "", "Session role")
	evalCmd.Flags().String("urgency", "", "Session urgency: low, normal, high, critical")
	evalCmd.Flags().Bool("forensic", false, "Enable audit hashing")

	rootCmd.AddCommand(evalCmd)
}
