package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/pkg/models"
)

var setStatusCmd = &cobra.Command{
	Use:   "set-status <id|id.sub> <status>",
	Short: "Change a task or subtask status",
	Long: `Move a task to a new status, or a subtask referenced as parent.sub.

Task statuses: pending, in-progress, review, blocked, deferred, done,
cancelled. Subtasks only carry pending or completed.

Examples:
  gantry set-status 3 done
  gantry set-status 3.2 completed`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		res := rt.eng.SetStatus(cmd.Context(), args[0], args[1])
		finishOp(res)

		if strings.Contains(args[0], ".") {
			printStatus("✓", fmt.Sprintf("Subtask %s is now %s", args[0], args[1]), color.FgGreen)
		} else if t, ok := res.Data.(*models.Task); ok {
			printStatus("✓", fmt.Sprintf("Task %d is now %s", t.ID, t.Status), color.FgGreen)
		}
	},
}
