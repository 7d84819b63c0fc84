package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/gantry/internal/complexity"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	analyzeThreshold int
	analyzeResearch  bool
	analyzeSave      bool
	analyzeTag       string
	analyzeExport    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ids]",
	Short: "Score task complexity",
	Long: `Score tasks on a 1-10 complexity scale and recommend which ones to
break down. The score is deterministic; --research asks the configured
research model to refine it.

The ids argument selects tasks: "all" (the default), a single id, a
comma-separated list, or an inclusive range.

Examples:
  gantry analyze                 # Every task
  gantry analyze 3,7             # Just tasks 3 and 7
  gantry analyze 2..8            # Tasks 2 through 8
  gantry analyze --research      # Refine scores via the research model
  gantry analyze --save --tag v2 # Keep the report in the run history
  gantry analyze --export report.yaml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw := ""
		if len(args) > 0 {
			raw = args[0]
		}
		sel, err := complexity.ParseSelection(raw)
		if err != nil {
			fatal(err)
		}

		rt, err := newRuntime(analyzeResearch)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		c, err := rt.store.Snapshot(cmd.Context())
		if err != nil {
			fatal(withInitHint(err))
		}

		threshold := analyzeThreshold
		if threshold <= 0 {
			threshold = rt.cfg.Analyze.Threshold
		}

		report, err := rt.eng.Analyzer().AnalyzeBatch(cmd.Context(), c, sel, complexity.Options{
			Threshold: threshold,
			Research:  analyzeResearch,
		})
		if err != nil {
			fatal(err)
		}
		report.Tag = analyzeTag

		renderReport(report)

		if analyzeExport != "" {
			if err := exportReport(report, analyzeExport); err != nil {
				fatal(err)
			}
			printStatus("✓", fmt.Sprintf("Exported report to %s", analyzeExport), color.FgGreen)
		}

		if analyzeSave {
			runID, err := saveReport(report)
			if err != nil {
				fatal(err)
			}
			printStatus("✓", fmt.Sprintf("Saved as run %s", runID), color.FgGreen)
		}
	},
}

var analyzeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved analysis runs",
	Run: func(cmd *cobra.Command, args []string) {
		hs, err := complexity.OpenHistory(complexity.ProjectHistoryPath(projectRoot()))
		if err != nil {
			fatal(err)
		}
		defer hs.Close()

		runs, err := hs.ListRuns(20)
		if err != nil {
			fatal(err)
		}
		if len(runs) == 0 {
			fmt.Println(dimStyle.Render("No saved runs. Use 'gantry analyze --save' to keep one."))
			return
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s %-17s %-6s %-20s %s",
			"RUN", "CREATED", "TASKS", "HIGH/MED/LOW", "TAG")))
		for _, run := range runs {
			tag := run.Tag
			if tag == "" {
				tag = "-"
			}
			fmt.Printf("%-10s %-17s %-6d %-20s %s\n",
				run.ID[:8],
				run.CreatedAt.Format("2006-01-02 15:04"),
				run.TaskCount,
				fmt.Sprintf("%d/%d/%d", run.HighCount, run.MediumCount, run.LowCount),
				tag)
		}
	},
}

var analyzeShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Re-render a saved analysis run",
	Long: `Re-render a run saved with 'gantry analyze --save'. A unique prefix
of the run id is enough, so the short ids from 'gantry analyze history'
work as-is.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hs, err := complexity.OpenHistory(complexity.ProjectHistoryPath(projectRoot()))
		if err != nil {
			fatal(err)
		}
		defer hs.Close()

		report, err := hs.GetReport(args[0])
		if err != nil {
			fatal(err)
		}
		renderReport(report)
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeThreshold, "threshold", 0, "Score at which expansion is recommended (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeResearch, "research", false, "Refine scores via the research model")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Save the report to the run history")
	analyzeCmd.Flags().StringVar(&analyzeTag, "tag", "", "Label the saved run")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "", "Write the report as YAML to this file")

	analyzeCmd.AddCommand(analyzeHistoryCmd)
	analyzeCmd.AddCommand(analyzeShowCmd)
}

func exportReport(r *models.ComplexityReport, path string) error {
	body, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, body, 0644)
}

func saveReport(r *models.ComplexityReport) (string, error) {
	hs, err := complexity.OpenHistory(complexity.ProjectHistoryPath(projectRoot()))
	if err != nil {
		return "", err
	}
	defer hs.Close()
	return hs.SaveReport(r)
}
