package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var addDepCmd = &cobra.Command{
	Use:   "add-dep <id> <dep-id>",
	Short: "Add a dependency edge",
	Long: `Make task <id> depend on task <dep-id>. The change is validated
against the whole graph first; an edge that would create a cycle, a
self-dependency, or a duplicate is rejected and nothing is written.

Examples:
  gantry add-dep 5 3   # Task 5 now waits for task 3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, depID := parseEdgeArgs(args)

		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		res := rt.eng.AddDependency(cmd.Context(), id, depID)
		finishOp(res)
		printStatus("✓", fmt.Sprintf("Task %d now depends on task %d", id, depID), color.FgGreen)
	},
}

var removeDepCmd = &cobra.Command{
	Use:   "remove-dep <id> <dep-id>",
	Short: "Remove a dependency edge",
	Long: `Remove task <id>'s dependency on task <dep-id>.

Examples:
  gantry remove-dep 5 3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, depID := parseEdgeArgs(args)

		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		res := rt.eng.RemoveDependency(cmd.Context(), id, depID)
		finishOp(res)
		printStatus("✓", fmt.Sprintf("Task %d no longer depends on task %d", id, depID), color.FgGreen)
	},
}

func parseEdgeArgs(args []string) (id, depID int) {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fatal(fmt.Errorf("invalid task id %q", args[0]))
	}
	depID, err = strconv.Atoi(args[1])
	if err != nil {
		fatal(fmt.Errorf("invalid dependency id %q", args[1]))
	}
	return id, depID
}
