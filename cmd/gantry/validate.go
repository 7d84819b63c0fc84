package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/graph"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check dependency integrity",
	Long: `Check every dependency list for references to missing tasks,
self-dependencies, duplicates, and cycles. Exits 1 when violations are
found.

Run 'gantry fix' to repair what this reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		c, err := rt.store.Snapshot(cmd.Context())
		if err != nil {
			fatal(withInitHint(err))
		}

		violations := graph.New(c).Validate()
		if len(violations) == 0 {
			printStatus("✓", fmt.Sprintf("No violations in %d tasks", len(c.Tasks)), color.FgGreen)
			return
		}

		for _, v := range violations {
			printStatus("✗", fmt.Sprintf("[%s] %s", v.Type, v.Message), color.FgRed)
		}
		fmt.Printf("\n%d violation(s). Run 'gantry fix' to repair them.\n", len(violations))
		os.Exit(1)
	},
}

var errNothingToFix = errors.New("nothing to fix")

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Repair dependency violations",
	Long: `Repair dependency violations by removing bad edges, in a fixed
order: self-references first, then references to missing tasks, then
duplicates, then one edge per cycle until the graph is acyclic. The
repaired collection is written atomically; a clean graph is left
untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		var fixes []graph.Violation
		err = rt.store.Mutate(cmd.Context(), func(c *models.Collection) error {
			fixes = graph.AutoFix(c)
			if len(fixes) == 0 {
				return errNothingToFix
			}
			return nil
		})
		if errors.Is(err, errNothingToFix) {
			printStatus("✓", "No violations to fix", color.FgGreen)
			return
		}
		if err != nil {
			fatal(withInitHint(err))
		}

		for _, f := range fixes {
			printStatus("✓", f.Message, color.FgGreen)
		}
		fmt.Printf("\nApplied %d fix(es).\n", len(fixes))
	},
}
