package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task in full",
	Long: `Show a task's complete record: description, details, test strategy,
dependencies with their current status, and subtasks.

Examples:
  gantry show 5`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid task id %q", args[0]))
		}

		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		c, err := rt.store.Snapshot(cmd.Context())
		if err != nil {
			fatal(withInitHint(err))
		}

		t := c.Find(id)
		if t == nil {
			fatal(fmt.Errorf("task %d not found", id))
		}
		renderTaskDetail(t, c)
	},
}
