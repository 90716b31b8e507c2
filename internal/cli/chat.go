package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdouB/adaptive/internal/intent"
	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/orchestrator"
)

// chatTurn is the outcome of one input line
type chatTurn struct {
	Input       string                       `json:"input"`
	Command     string                       `json:"command,omitempty"`
	Intents     []intent.Match               `json:"intents,omitempty"`
	Evaluations []orchestrator.Evaluation    `json:"evaluations,omitempty"`
	Components  []models.ComponentPhaseState `json:"components"`
	Error       string                       `json:"error,omitempty"`
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Drive components from free-text intent on stdin",
	Long: `Read lines from stdin. Each line becomes the session intent and the rule
engine re-evaluates every component. Lines starting with / are commands:

  /set key=value       publish a data value (YAML scalar: 3, true, [a, b])
  /urgency level       low, normal, high or critical
  /forensic on|off     toggle audit hashing
  /focus id            focus a surfaced component
  /dissolve id         dissolve a component
  /quit                end the session

Example:
  echo "show me the validation errors" | adaptive chat --text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _ := cmd.Flags().GetString("manifest")
		role, _ := cmd.Flags().GetString("role")
		forensic, _ := cmd.Flags().GetBool("forensic")

		sctx, err := contextFromFlags(role, "", forensic)
		if err != nil {
			return err
		}
		s, err := startSession(manifest, sctx)
		if err != nil {
			return err
		}
		r := s.registry

		if outputText {
			fmt.Printf("Session %s. Type an intent, /quit to end.\n", r.SessionID())
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			turn := chatTurn{Input: line}
			if strings.HasPrefix(line, "/") {
				name, arg, _ := strings.Cut(line[1:], " ")
				turn.Command = name
				if name == "quit" || name == "exit" {
					break
				}
				if err := runChatCommand(r, name, strings.TrimSpace(arg)); err != nil {
					turn.Error = err.Error()
				}
			} else {
				r.SetIntent(line)
				turn.Intents = r.DetectIntents()
			}
			if turn.Error == "" {
				turn.Evaluations = r.EvaluateAll()
			}
			turn.Components = r.Components()
			printTurn(turn)
		}
		if err := scanner.Err(); err != nil {
			return s.abort(fmt.Errorf("failed to read stdin: %w", err))
		}

		if err := s.close(); err != nil {
			return err
		}
		if outputText {
			fmt.Printf("Session %s ended, %d events recorded.\n", r.SessionID(), r.EventCount())
		}
		return nil
	},
}

// runChatCommand applies one slash command to the registry
func runChatCommand(r *orchestrator.Registry, name, arg string) error {
	switch name {
	case "set":
		key, value, err := parseAssignment(arg)
		if err != nil {
			return err
		}
		r.SetData(key, value)
	case "urgency":
		u := models.Urgency(arg)
		if !u.Valid() {
			return fmt.Errorf("invalid urgency %q", arg)
		}
		r.SetContext(models.ContextUpdate{Urgency: &u})
	case "forensic":
		switch arg {
		case "on":
			r.SetForensicMode(true)
		case "off":
			r.SetForensicMode(false)
		default:
			return fmt.Errorf("expected on or off, got %q", arg)
		}
	case "focus":
		if !r.Focus(arg) {
			return fmt.Errorf("unknown component %q", arg)
		}
		r.RecordInteraction(models.NewInteractionEvent("focus", arg, ""))
	case "dissolve":
		if !r.Dissolve(arg) {
			return fmt.Errorf("unknown component %q", arg)
		}
		r.RecordInteraction(models.NewInteractionEvent("dismiss", arg, ""))
	default:
		return fmt.Errorf("unknown command /%s", name)
	}
	return nil
}

func printTurn(turn chatTurn) {
	if !outputText {
		outputResult(turn)
		return
	}
	if turn.Error != "" {
		fmt.Printf("! %s\n", turn.Error)
		return
	}
	for _, m := range turn.Intents {
		fmt.Printf("  intent: %s %q (%.2f) %s\n", m.Key, m.Phrase, m.Score, markHighlights(turn.Input, m.Highlights))
	}
	acted := false
	for _, ev := range turn.Evaluations {
		if ev.Action != orchestrator.ActionNone {
			acted = true
		}
	}
	if acted {
		printEvaluations(turn.Evaluations)
	}
	var visible []string
	for _, c := range turn.Components {
		if c.IsVisible() {
			visible = append(visible, fmt.Sprintf("%s (%s)", c.ID, c.Phase))
		}
	}
	if len(visible) == 0 {
		fmt.Println("  visible: none")
		return
	}
	fmt.Printf("  visible: %s\n", strings.Join(visible, ", "))
}

// markHighlights brackets the highlighted byte runs of input: "show [validation] [errors]"
func markHighlights(input string, highlights []int) string {
	if len(highlights) == 0 {
		return input
	}
	lit := make(map[int]bool, len(highlights))
	for _, i := range highlights {
		lit[i] = true
	}
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		if lit[i] && !lit[i-1] {
			b.WriteByte('[')
		}
		b.WriteByte(input[i])
		if lit[i] && !lit[i+1] {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func init() {
	chatCmd.Flags().String("manifest", "", "Component manifest (YAML); defaults to the built-in components")
	chatCmd.Flags().String("role", "", "Session role")
	chatCmd.Flags().Bool("forensic", false, "Start with audit hashing enabled")

	rootCmd.AddCommand(chatCmd)
}
