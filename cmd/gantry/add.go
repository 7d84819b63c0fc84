package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/engine"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	addTitle        string
	addDescription  string
	addDetails      string
	addTestStrategy string
	addEffort       string
	addPriority     string
	addDepends      []int
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task",
	Long: `Create a task. The id is allocated automatically and never reused.
Initial dependencies must reference existing tasks.

Examples:
  gantry add --title "Wire the payment webhook"
  gantry add --title "Ship v2 API" --priority high --depends 3,7`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		res := rt.eng.Add(cmd.Context(), engine.AddRequest{
			Title:           addTitle,
			Description:     addDescription,
			Details:         addDetails,
			TestStrategy:    addTestStrategy,
			EstimatedEffort: addEffort,
			Priority:        addPriority,
			Dependencies:    addDepends,
		})
		finishOp(res)

		if t, ok := res.Data.(*models.Task); ok {
			printStatus("✓", fmt.Sprintf("Created task %d: %s", t.ID, t.Title), color.FgGreen)
		}
	},
}

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Task title (required)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Detailed description")
	addCmd.Flags().StringVar(&addDetails, "details", "", "Implementation notes")
	addCmd.Flags().StringVar(&addTestStrategy, "test-strategy", "", "How the task will be verified")
	addCmd.Flags().StringVar(&addEffort, "effort", "", "Estimated effort, free-form (e.g. 2d)")
	addCmd.Flags().StringVar(&addPriority, "priority", "", "Priority: high, medium, or low (default medium)")
	addCmd.Flags().IntSliceVar(&addDepends, "depends", nil, "Comma-separated ids this task depends on")
}
