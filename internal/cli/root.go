// Package cli provides the command-line interface for the adaptive engine
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AbdouB/adaptive/internal/config"
	"github.com/AbdouB/adaptive/internal/db"
	"github.com/AbdouB/adaptive/internal/logger"
)

// Version is set by main at startup
var Version = "dev"

var (
	database   *db.DB
	cfg        config.Config
	log        *zap.SugaredLogger
	outputText bool // --text flag for human-readable output (default is JSON)
	verbose    bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "adaptive",
	Short: "Adaptive UI phase orchestrator",
	Long: `Adaptive - phase lifecycle orchestration for adaptive UI components

Components surface, focus and dissolve in response to session context,
data and user intent. Every transition is recorded in a forensic audit trail.

Quick Start:
  adaptive demo                          # Run the lifecycle scenarios
  adaptive chat                          # Type intents, watch components react
  adaptive eval --set errors=3           # One-shot rule evaluation
  adaptive events                        # Show the latest audit trail
  adaptive verify                        # Check the audit hash chain`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger.Initialize(cfg.Logging.Level, logger.Format(cfg.Logging.Format))
		log = logger.For("cli")

		// Skip DB init for help commands
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		log.Debugf("Opened audit store at %s", database.Path())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if database != nil {
			database.Close()
		}
		_ = logger.Sync()
	},
}

// Execute runs the CLI
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		outputError(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputText, "text", false, "Human-readable text output (default is JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging on stderr")
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(versionCmd)
}

// outputResult outputs the result in the appropriate format
func outputResult(result interface{}) {
	if outputText {
		fmt.Printf("%+v\n", result)
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	}
}

// outputError outputs an error in the appropriate format
func outputError(err error) {
	if outputText {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else {
		result := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		enc := json.NewEncoder(os.Stderr)
		enc.Encode(result)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if outputText {
			fmt.Printf("adaptive version %s (Go)\n", Version)
			return
		}
		outputResult(map[string]interface{}{"version": Version})
	},
}
