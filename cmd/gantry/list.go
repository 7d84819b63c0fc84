package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/graph"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	listStatus  string
	listOrder   string
	listReady   bool
	listBlocked bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List the project's tasks with status, priority, dependencies, and
subtask progress.

Examples:
  gantry list                    # All tasks in id order
  gantry list --status pending   # Only pending tasks
  gantry list --ready            # Only tasks whose dependencies are done
  gantry list --order topo       # Dependency order (prerequisites first)`,
	Run: func(cmd *cobra.Command, args []string) {
		if listReady && listBlocked {
			fatal(fmt.Errorf("--ready and --blocked are mutually exclusive"))
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

		var filter models.Status
		if listStatus != "" {
			filter, err = models.ParseStatus(listStatus)
			if err != nil {
				fatal(err)
			}
		}

		tasks, err := orderedTasks(c, listOrder)
		if err != nil {
			fatal(err)
		}

		if filter != "" {
			kept := tasks[:0]
			for _, t := range tasks {
				if t.Status == filter {
					kept = append(kept, t)
				}
			}
			tasks = kept
		}
		if listReady || listBlocked {
			tasks = filterReadiness(c, tasks, listReady)
		}

		renderTaskTable(tasks)
		printStatusCounts(c)
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show tasks with this status")
	listCmd.Flags().StringVar(&listOrder, "order", "id", "Row order: id or topo")
	listCmd.Flags().BoolVar(&listReady, "ready", false, "Only show tasks whose dependencies are all done")
	listCmd.Flags().BoolVar(&listBlocked, "blocked", false, "Only show open tasks waiting on dependencies")
}

// filterReadiness keeps the tasks that are ready (or blocked), preserving
// the display order already chosen.
func filterReadiness(c *models.Collection, tasks []*models.Task, ready bool) []*models.Task {
	g := graph.New(c)
	var members []*models.Task
	if ready {
		members = g.Ready()
	} else {
		members = g.Blocked()
	}
	keep := make(map[int]bool, len(members))
	for _, t := range members {
		keep[t.ID] = true
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if keep[t.ID] {
			kept = append(kept, t)
		}
	}
	return kept
}

// orderedTasks returns pointers into the snapshot in the requested
// order. Topological order falls back to id order when the graph has a
// cycle, with a warning, so list keeps working on a broken graph.
func orderedTasks(c *models.Collection, order string) ([]*models.Task, error) {
	switch order {
	case "", "id":
		tasks := make([]*models.Task, 0, len(c.Tasks))
		for _, id := range c.IDs() {
			tasks = append(tasks, c.Find(id))
		}
		return tasks, nil
	case "topo":
		g := graph.New(c)
		ids, err := g.TopoOrder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, falling back to id order\n", err)
			return orderedTasks(c, "id")
		}
		tasks := make([]*models.Task, 0, len(ids))
		for _, id := range ids {
			tasks = append(tasks, c.Find(id))
		}
		return tasks, nil
	default:
		return nil, fmt.Errorf("unknown order %q (want id or topo)", order)
	}
}

func printStatusCounts(c *models.Collection) {
	if len(c.Tasks) == 0 {
		return
	}
	counts := make(map[models.Status]int)
	for i := range c.Tasks {
		counts[c.Tasks[i].Status]++
	}
	line := fmt.Sprintf("%d tasks", len(c.Tasks))
	for _, s := range []models.Status{
		models.StatusPending, models.StatusInProgress, models.StatusReview,
		models.StatusBlocked, models.StatusDeferred, models.StatusDone,
		models.StatusCancelled,
	} {
		if counts[s] > 0 {
			line += fmt.Sprintf(", %d %s", counts[s], s)
		}
	}
	fmt.Println(dimStyle.Render(line))
}
