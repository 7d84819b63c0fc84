package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/graph"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next task to work on",
	Long: `Pick the next actionable task: not done or cancelled, every
dependency done, highest priority first, lowest id breaking ties.`,
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

		res := graph.New(c).NextTask()
		if res.None() {
			fmt.Println(dimStyle.Render("No task is ready: " + res.Reason))
			return
		}

		renderTaskDetail(res.Task, c)
		fmt.Printf("\nStart it with: gantry set-status %d in-progress\n", res.Task.ID)
	},
}
