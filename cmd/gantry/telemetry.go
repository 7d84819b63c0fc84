package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/telemetry"
)

var (
	telemetryDays   int
	telemetryRecent int
	telemetryPurge  int
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Show AI usage and cost",
	Long: `Aggregate recorded AI calls per provider and model: call counts,
errors, token totals, and estimated cost.

Examples:
  gantry telemetry             # All time
  gantry telemetry --days 7    # Last week only
  gantry telemetry --recent 10 # The last 10 individual calls
  gantry telemetry --purge 30  # Drop records older than 30 days`,
	Run: func(cmd *cobra.Command, args []string) {
		tdb, err := telemetry.OpenProject(projectRoot())
		if err != nil {
			fatal(err)
		}
		defer tdb.Close()

		if telemetryPurge > 0 {
			deleted, err := tdb.Purge(time.Duration(telemetryPurge) * 24 * time.Hour)
			if err != nil {
				fatal(err)
			}
			printStatus("✓", fmt.Sprintf("Purged %d record(s) older than %d days", deleted, telemetryPurge), color.FgGreen)
			return
		}

		if telemetryRecent > 0 {
			renderRecentCalls(tdb, telemetryRecent)
			return
		}

		var since time.Time
		if telemetryDays > 0 {
			since = time.Now().UTC().Add(-time.Duration(telemetryDays) * 24 * time.Hour)
		}
		rows, err := tdb.Summary(since)
		if err != nil {
			fatal(err)
		}
		if len(rows) == 0 {
			fmt.Println(dimStyle.Render("No AI calls recorded."))
			return
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s %-32s %-6s %-7s %-12s %-12s %s",
			"PROVIDER", "MODEL", "CALLS", "ERRORS", "IN", "OUT", "COST")))
		var totalCalls, totalErrors int
		var totalIn, totalOut int64
		var totalCost float64
		for _, row := range rows {
			fmt.Printf("%-10s %-32s %-6d %-7d %-12s %-12s $%.4f\n",
				row.Provider,
				truncate(row.Model, 32),
				row.Calls,
				row.Errors,
				formatNumber(row.InputTokens),
				formatNumber(row.OutputTokens),
				row.Cost)
			totalCalls += row.Calls
			totalErrors += row.Errors
			totalIn += row.InputTokens
			totalOut += row.OutputTokens
			totalCost += row.Cost
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("%-10s %-32s %-6d %-7d %-12s %-12s $%.4f",
			"total", "", totalCalls, totalErrors, formatNumber(totalIn), formatNumber(totalOut), totalCost)))
	},
}

func init() {
	telemetryCmd.Flags().IntVar(&telemetryDays, "days", 0, "Only count calls from the last N days (0 = all time)")
	telemetryCmd.Flags().IntVar(&telemetryRecent, "recent", 0, "List the last N individual calls instead of the summary")
	telemetryCmd.Flags().IntVar(&telemetryPurge, "purge", 0, "Delete records older than N days")
}

func renderRecentCalls(tdb *telemetry.DB, limit int) {
	calls, err := tdb.Recent(limit)
	if err != nil {
		fatal(err)
	}
	if len(calls) == 0 {
		fmt.Println(dimStyle.Render("No AI calls recorded."))
		return
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-17s %-16s %-10s %-32s %-8s %-14s %-8s %s",
		"STARTED", "OP", "PROVIDER", "MODEL", "TRIES", "TOKENS", "TIME", "OUTCOME")))
	for _, rec := range calls {
		outcome := rec.Outcome
		if rec.Outcome == telemetry.OutcomeError {
			outcome = color.RedString("error")
		}
		fmt.Printf("%-17s %-16s %-10s %-32s %-8d %-14s %-8s %s\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			truncate(rec.Op, 16),
			rec.Provider,
			truncate(rec.Model, 32),
			rec.Attempts,
			fmt.Sprintf("%s/%s", formatNumber(rec.InputTokens), formatNumber(rec.OutputTokens)),
			formatDuration(rec.Latency),
			outcome)
		if rec.Error != "" {
			fmt.Println(dimStyle.Render("    " + truncate(rec.Error, 100)))
		}
	}
}
