package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/gantry/internal/engine"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	statusStyles = map[models.Status]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.StatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.StatusDeferred:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		models.StatusReview:     lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		models.StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true),
	}

	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}

	levelStyles = map[models.ComplexityLevel]lipgloss.Style{
		models.ComplexityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.ComplexityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.ComplexityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		models.ComplexityVeryHigh: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func styledStatus(s models.Status) string {
	if st, ok := statusStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}

func styledPriority(p models.Priority) string {
	if st, ok := priorityStyles[p]; ok {
		return st.Render(string(p))
	}
	return string(p)
}

func styledLevel(l models.ComplexityLevel) string {
	if st, ok := levelStyles[l]; ok {
		return st.Render(string(l))
	}
	return string(l)
}

// renderTaskTable prints one row per task: id, title, status, priority,
// dependency list, and subtask progress.
func renderTaskTable(tasks []*models.Task) {
	if len(tasks) == 0 {
		fmt.Println(dimStyle.Render("No tasks."))
		return
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-5s %-44s %-12s %-8s %-14s %s",
		"ID", "TITLE", "STATUS", "PRIO", "DEPS", "SUBTASKS")))
	for _, t := range tasks {
		deps := "-"
		if len(t.Dependencies) > 0 {
			deps = joinIDs(t.Dependencies)
		}
		subs := "-"
		if len(t.Subtasks) > 0 {
			subs = fmt.Sprintf("%d/%d", doneSubtasks(t), len(t.Subtasks))
		}
		fmt.Printf("%-5d %-44s %s %s %-14s %s\n",
			t.ID,
			truncate(t.Title, 44),
			pad(styledStatus(t.Status), 12),
			pad(styledPriority(t.Priority), 8),
			truncate(deps, 14),
			subs)
	}
}

// renderTaskDetail prints the whole task including subtasks and
// dependency titles resolved against the collection.
func renderTaskDetail(t *models.Task, c *models.Collection) {
	fmt.Printf("%s %s\n", headerStyle.Render(fmt.Sprintf("Task %d:", t.ID)), titleStyle.Render(t.Title))
	fmt.Printf("  Status:   %s\n", styledStatus(t.Status))
	fmt.Printf("  Priority: %s\n", styledPriority(t.Priority))
	if t.EstimatedEffort != "" {
		fmt.Printf("  Effort:   %s", t.EstimatedEffort)
		if t.ActualEffort != "" {
			fmt.Printf(" (actual %s)", t.ActualEffort)
		}
		fmt.Println()
	}
	if !t.CreatedAt.IsZero() {
		fmt.Printf("  Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Printf("  Updated:  %s\n", t.UpdatedAt.Format("2006-01-02 15:04"))
	}

	if len(t.Dependencies) > 0 {
		fmt.Println("\n  Dependencies:")
		for _, depID := range t.Dependencies {
			label := "(missing)"
			status := ""
			if dep := c.Find(depID); dep != nil {
				label = dep.Title
				status = styledStatus(dep.Status)
			}
			fmt.Printf("    %-4d %-44s %s\n", depID, truncate(label, 44), status)
		}
	}

	if t.Description != "" {
		fmt.Printf("\n  Description:\n%s\n", indent(t.Description, 4))
	}
	if t.Details != "" {
		fmt.Printf("\n  Details:\n%s\n", indent(t.Details, 4))
	}
	if t.TestStrategy != "" {
		fmt.Printf("\n  Test strategy:\n%s\n", indent(t.TestStrategy, 4))
	}

	if len(t.Subtasks) > 0 {
		fmt.Printf("\n  Subtasks (%d/%d done):\n", doneSubtasks(t), len(t.Subtasks))
		for _, sub := range t.Subtasks {
			mark := "[ ]"
			if sub.Status == models.SubtaskCompleted {
				mark = "[x]"
			}
			fmt.Printf("    %s %d.%d %s\n", mark, t.ID, sub.ID, sub.Title)
			if sub.Description != "" {
				fmt.Println(dimStyle.Render(indent(sub.Description, 10)))
			}
		}
	}
}

// renderReport prints the complexity table, the level summary, and the
// ready-to-run expand commands for tasks over the threshold.
func renderReport(r *models.ComplexityReport) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-5s %-44s %-6s %-10s %s",
		"ID", "TITLE", "SCORE", "LEVEL", "SUBTASKS")))
	for _, e := range r.Entries {
		rec := "-"
		if e.RecommendedSubtasks > 0 {
			rec = fmt.Sprintf("%d", e.RecommendedSubtasks)
		}
		fmt.Printf("%-5d %-44s %-6d %s %s\n",
			e.TaskID,
			truncate(e.Title, 44),
			e.Score,
			pad(styledLevel(e.Level), 10),
			rec)
	}

	s := r.Summary
	fmt.Printf("\n%s %d high, %d medium, %d low (threshold %d)\n",
		headerStyle.Render("Summary:"), s.HighCount, s.MediumCount, s.LowCount, r.Threshold)

	var cmds []string
	for _, e := range r.Entries {
		if e.ExpandCommand != "" {
			cmds = append(cmds, e.ExpandCommand)
		}
	}
	if len(cmds) > 0 {
		fmt.Println("\nRecommended expansions:")
		for _, c := range cmds {
			fmt.Printf("  %s\n", c)
		}
	}
}

// finishOp prints the shared tail of a mutating command: AI usage when
// any calls were made, the no-change note, and a failure exit carrying
// the error code.
func finishOp(res *engine.Result) {
	printAIUsage(res)
	if !res.Success {
		fatal(res.Err)
	}
	if !res.Updated && res.Message != "" {
		printStatus("⚠", res.Message, color.FgYellow)
	}
}

func printAIUsage(res *engine.Result) {
	u := res.Usage
	if u.Calls == 0 {
		return
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("AI usage: %d call(s), %s in / %s out tokens, $%.4f",
		u.Calls, formatNumber(u.InputTokens), formatNumber(u.OutputTokens), res.Cost)))
}

func doneSubtasks(t *models.Task) int {
	n := 0
	for _, sub := range t.Subtasks {
		if sub.Status == models.SubtaskCompleted {
			n++
		}
	}
	return n
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// pad right-pads a styled cell to width, counting visible runes rather
// than the ANSI escape bytes lipgloss adds.
func pad(cell string, width int) string {
	visible := lipgloss.Width(cell)
	if visible >= width {
		return cell
	}
	return cell + strings.Repeat(" ", width-visible)
}

func indent(s string, spaces int) string {
	prefix := strings.Repeat(" ", spaces)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// formatDuration formats a duration compactly (90s -> 1m).
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		if len(s) > offset {
			result.WriteString(",")
		}
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
