package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdouB/adaptive/internal/db"
	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/orchestrator"
)

// resolveSession returns the requested session or the latest one
func resolveSession(sessionID string) (*models.SessionRecord, error) {
	repo := db.NewSessionRepository(database)
	var (
		s   *models.SessionRecord
		err error
	)
	if sessionID != "" {
		s, err = repo.Get(sessionID)
	} else {
		s, err = repo.GetLatest()
	}
	if err != nil {
		return nil, err
	}
	if s == nil {
		if sessionID != "" {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("no sessions recorded yet. Run 'adaptive demo' first")
	}
	return s, nil
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the persisted forensic audit trail",
	Long: `List forensic events of a session, oldest first. Defaults to the most
recent session; --all lists across sessions.

Example:
  adaptive events --limit 20
  adaptive events --session 6f1c... --text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		repo := db.NewForensicRepository(database)
		var (
			events []models.ForensicEvent
			err    error
		)
		if all {
			events, err = repo.List(limit)
		} else {
			var s *models.SessionRecord
			s, err = resolveSession(sessionID)
			if err != nil {
				return err
			}
			sessionID = s.SessionID
			events, err = repo.ListBySession(sessionID, limit)
		}
		if err != nil {
			return err
		}

		if !outputText {
			outputResult(map[string]interface{}{
				"session_id": sessionID,
				"events":     events,
				"count":      len(events),
			})
			return nil
		}

		if all {
			fmt.Printf("Events (all sessions, %d)\n", len(events))
		} else {
			fmt.Printf("Events for session %s (%d)\n", sessionID, len(events))
		}
		fmt.Println(strings.Repeat("-", 50))
		for _, e := range events {
			seal := " "
			if e.AuditHash != "" {
				seal = "#"
			}
			fmt.Printf("%s %s %-17s %-16s %v\n", seal, e.Timestamp.Format("15:04:05.000"), e.EventType, e.ComponentID, e.Details)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain of a session",
	Long: `Recompute the sha256 chain over a session's stored events. Events recorded
while forensic mode was off carry no hash and are skipped.

Example:
  adaptive verify
  adaptive verify --session 6f1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		s, err := resolveSession(sessionID)
		if err != nil {
			return err
		}
		events, err := db.NewForensicRepository(database).ListBySession(s.SessionID, 0)
		if err != nil {
			return err
		}

		sealed := 0
		last := ""
		for _, e := range events {
			if e.AuditHash != "" {
				sealed++
				last = e.AuditHash
			}
		}
		chainErr := orchestrator.VerifyChain(events, "")

		if !outputText {
			result := map[string]interface{}{
				"session_id": s.SessionID,
				"events":     len(events),
				"sealed":     sealed,
				"valid":      chainErr == nil,
				"head":       last,
			}
			if chainErr != nil {
				result["error"] = chainErr.Error()
			}
			outputResult(result)
		} else if chainErr == nil {
			fmt.Printf("Session %s: chain valid (%d events, %d sealed)\n", s.SessionID, len(events), sealed)
		}

		if chainErr != nil {
			return fmt.Errorf("session %s: %w", s.SessionID, chainErr)
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		sessions, err := db.NewSessionRepository(database).List(limit)
		if err != nil {
			return err
		}

		if !outputText {
			outputResult(map[string]interface{}{
				"sessions": sessions,
				"count":    len(sessions),
			})
			return nil
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}
		for _, s := range sessions {
			state := "open"
			if s.EndedAt != nil {
				state = "ended"
			}
			fmt.Printf("%s  %s  %-8s %-6s events=%d\n", s.SessionID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Role, state, s.EventCount)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("session", "", "Session ID; defaults to the latest")
	eventsCmd.Flags().IntP("limit", "n", 50, "Maximum number of events (0 for all)")
	eventsCmd.Flags().BoolP("all", "a", false, "List events across all sessions")

	verifyCmd.Flags().String("session", "", "Session ID; defaults to the latest")

	sessionsCmd.Flags().IntP("limit", "n", 20, "Maximum number of sessions")

	rootCmd.AddCommand(eventsCmd, verifyCmd, sessionsCmd)
}
