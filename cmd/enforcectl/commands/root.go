package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	dbPath     string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "enforcectl",
		Short: "Workflow and quality enforcement engine",
		Long: `enforcectl answers enforcement questions for manufacturing execution:
whether performance may be recorded against a work order, whether an
operation may start or complete, whether a quality inspection or
electronic signature is required, and whether an NCR disposition is legal.

Decisions are driven by a layered configuration hierarchy
(operation > work order > routing > site > system defaults) and every
applied bypass is written to an append-only audit trail.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newQualityCommand())
	rootCmd.AddCommand(newAuditCommand())

	return rootCmd
}
