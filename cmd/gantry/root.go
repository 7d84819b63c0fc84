package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagProjectDir string
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Task graph manager for AI-assisted development",
	Long: `Gantry manages a project's task graph: a dependency-ordered set of
tasks stored under .gantry/ and mutated through atomic, validated
operations.

Core capabilities:
- Validates dependency integrity (missing refs, self-deps, duplicates, cycles)
- Picks the next actionable task by readiness and priority
- Scores task complexity and recommends which tasks to break down
- Expands tasks into subtasks and rewrites them via AI providers
- Tracks AI token usage and cost per operation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatal prints an error and exits. Commands use it for operational
// failures after flag parsing succeeded, so cobra's usage text stays
// out of the output.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Load configuration from this file instead of the usual search path")
	rootCmd.PersistentFlags().StringVar(&flagProjectDir, "project", ".", "Project directory containing the .gantry data directory")

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(setStatusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(addDepCmd)
	rootCmd.AddCommand(removeDepCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
