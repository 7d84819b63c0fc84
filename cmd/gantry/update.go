package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	updatePrompt   string
	updateResearch bool
)

var updateCmd = &cobra.Command{
	Use:   "update <id> [field=value ...]",
	Short: "Update a task's fields, by hand or via AI",
	Long: `Update a task. Two modes:

Manual: pass field=value pairs. Allowed fields are title, description,
details, test_strategy, priority, status, estimated_effort, and
actual_effort. Dependencies and subtasks have their own commands.

AI: pass --prompt with an instruction. The current task is sent to the
configured model, which returns a patch; a model deciding nothing
should change is a clean no-op.

Examples:
  gantry update 5 priority=high status=in-progress
  gantry update 5 title="Ship the v2 API"
  gantry update 5 --prompt "Tighten the description around rate limiting"
  gantry update 5 --prompt "Research current best practice first" --research`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid task id %q", args[0]))
		}

		pairs := args[1:]
		if updatePrompt != "" && len(pairs) > 0 {
			fatal(fmt.Errorf("--prompt and field=value pairs cannot be combined"))
		}
		if updatePrompt == "" && len(pairs) == 0 {
			fatal(fmt.Errorf("nothing to update: pass field=value pairs or --prompt"))
		}

		rt, err := newRuntime(updatePrompt != "")
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		if updatePrompt != "" {
			res := rt.eng.UpdateWithAI(cmd.Context(), id, updatePrompt, updateResearch)
			finishOp(res)
			if res.Updated {
				if t, ok := res.Data.(*models.Task); ok {
					printStatus("✓", fmt.Sprintf("Updated task %d: %s", t.ID, t.Title), color.FgGreen)
				}
			}
			return
		}

		fields, err := parseFieldPairs(pairs)
		if err != nil {
			fatal(err)
		}
		res := rt.eng.UpdateManual(cmd.Context(), id, fields)
		finishOp(res)
		if t, ok := res.Data.(*models.Task); ok {
			printStatus("✓", fmt.Sprintf("Updated task %d: %s", t.ID, t.Title), color.FgGreen)
		}
	},
}

func init() {
	updateCmd.Flags().StringVar(&updatePrompt, "prompt", "", "Rewrite the task via AI with this instruction")
	updateCmd.Flags().BoolVar(&updateResearch, "research", false, "Use the research role for the AI rewrite")
}

func parseFieldPairs(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected field=value, got %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty field name in %q", pair)
		}
		fields[key] = value
	}
	return fields, nil
}
