package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/engine"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Long: `Delete a task. Its subtasks go with it, and every other task that
depended on it has the reference stripped so the graph stays closed.

Examples:
  gantry delete 7
  gantry delete 7 --yes   # Skip the confirmation prompt`,
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

		if !deleteYes {
			c, err := rt.store.Snapshot(cmd.Context())
			if err != nil {
				fatal(withInitHint(err))
			}
			t := c.Find(id)
			if t == nil {
				fatal(fmt.Errorf("task %d not found", id))
			}
			if !confirm(fmt.Sprintf("Delete task %d (%s)?", id, t.Title)) {
				fmt.Println("Aborted.")
				return
			}
		}

		res := rt.eng.Delete(cmd.Context(), id)
		finishOp(res)

		if summary, ok := res.Data.(*engine.DeleteSummary); ok {
			printStatus("✓", fmt.Sprintf("Deleted task %d: %s", summary.Task.ID, summary.Task.Title), color.FgGreen)
			if len(summary.StrippedFrom) > 0 {
				fmt.Println(dimStyle.Render(fmt.Sprintf("Removed the dependency from tasks %s", joinIDs(summary.StrippedFrom))))
			}
		}
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

// confirm asks a yes/no question on stdin and defaults to no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
