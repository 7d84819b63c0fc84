package complexity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// Selection names the tasks a batch run analyzes: an explicit id list,
// an inclusive id range, or every task.
type Selection struct {
	IDs  []int
	From int
	To   int
	All  bool
}

// ParseSelection understands "all", a single id, a comma-separated id
// list, and an inclusive "from..to" range.
func ParseSelection(raw string) (Selection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return Selection{All: true}, nil
	}

	if strings.Contains(raw, "..") {
		parts := strings.SplitN(raw, "..", 2)
		from, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid range start %q", parts[0])
		}
		to, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid range end %q", parts[1])
		}
		if from > to {
			return Selection{}, fmt.Errorf("range start %d is after end %d", from, to)
		}
		return Selection{From: from, To: to}, nil
	}

	var ids []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Selection{}, fmt.Errorf("invalid task id %q", part)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return Selection{IDs: ids}, nil
}

// Resolve picks the selected tasks out of the collection. Explicit ids
// must exist; ranges and "all" simply take what is there. The result
// preserves selection order (ascending id for ranges and "all").
func (s Selection) Resolve(c *models.Collection) ([]models.Task, error) {
	var tasks []models.Task

	switch {
	case s.All:
		for _, id := range c.IDs() {
			tasks = append(tasks, *c.Find(id))
		}
	case len(s.IDs) > 0:
		for _, id := range s.IDs {
			t := c.Find(id)
			if t == nil {
				return nil, fmt.Errorf("task %d not found", id)
			}
			tasks = append(tasks, *t)
		}
	default:
		for _, id := range c.IDs() {
			if id >= s.From && id <= s.To {
				tasks = append(tasks, *c.Find(id))
			}
		}
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks selected")
	}
	return tasks, nil
}
