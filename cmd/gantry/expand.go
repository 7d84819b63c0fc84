package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/engine"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	expandID        int
	expandNum       int
	expandResearch  bool
	expandClear     bool
	expandAll       bool
	expandThreshold int
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Break a task into subtasks via AI",
	Long: `Ask the configured model to break a task into concrete subtasks.
New subtasks are appended as pending, with ids that continue after the
highest ever used, so references to old subtasks never silently point
at new ones.

--all expands every pending task without subtasks whose complexity
score meets the threshold. Tasks are processed concurrently and one
task's failure doesn't stop the others.

Examples:
  gantry expand --id 5              # Model picks the subtask count
  gantry expand --id 5 --num 3      # Exactly 3 subtasks
  gantry expand --id 5 --clear      # Replace existing subtasks
  gantry expand --id 5 --research   # Use the research model
  gantry expand --all               # All high-complexity tasks
  gantry expand --all --threshold 7`,
	Run: func(cmd *cobra.Command, args []string) {
		if expandAll == (expandID > 0) {
			fatal(fmt.Errorf("pass exactly one of --id or --all"))
		}

		rt, err := newRuntime(true)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		if expandAll {
			threshold := expandThreshold
			if threshold <= 0 {
				threshold = rt.cfg.Analyze.Threshold
			}
			res := rt.eng.ExpandAll(cmd.Context(), threshold, expandNum, expandResearch)
			finishOp(res)
			if rows, ok := res.Data.([]engine.ExpandOutcome); ok {
				renderExpandOutcomes(rows)
			}
			return
		}

		res := rt.eng.Expand(cmd.Context(), expandID, expandNum, expandResearch, expandClear)
		finishOp(res)

		if t, ok := res.Data.(*models.Task); ok {
			printStatus("✓", fmt.Sprintf("Expanded task %d into %d subtask(s)", t.ID, len(t.Subtasks)), color.FgGreen)
			for _, sub := range t.Subtasks {
				fmt.Printf("  %d.%d %s\n", t.ID, sub.ID, sub.Title)
			}
		}
	},
}

func init() {
	expandCmd.Flags().IntVar(&expandID, "id", 0, "Task to expand")
	expandCmd.Flags().IntVar(&expandNum, "num", 0, "Subtask count (0 lets the model decide)")
	expandCmd.Flags().BoolVar(&expandResearch, "research", false, "Use the research model")
	expandCmd.Flags().BoolVar(&expandClear, "clear", false, "Drop existing subtasks before expanding")
	expandCmd.Flags().BoolVar(&expandAll, "all", false, "Expand every eligible high-complexity task")
	expandCmd.Flags().IntVar(&expandThreshold, "threshold", 0, "Eligibility score for --all (default from config)")
}

func renderExpandOutcomes(rows []engine.ExpandOutcome) {
	for _, row := range rows {
		if row.Err != "" {
			printStatus("✗", fmt.Sprintf("Task %d (%s): %s", row.TaskID, row.Title, row.Err), color.FgRed)
			continue
		}
		printStatus("✓", fmt.Sprintf("Task %d (%s): added %d subtask(s)", row.TaskID, row.Title, row.Added), color.FgGreen)
	}
}
