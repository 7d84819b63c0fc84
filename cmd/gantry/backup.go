package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	backupOut  string
	restoreYes bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the tasks file somewhere safe",
	Long: `Copy the raw tasks file to a backup location. Without --out the
copy lands next to the original with a timestamp suffix.

Examples:
  gantry backup
  gantry backup --out /tmp/tasks-before-cleanup.json`,
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		dst := backupOut
		if dst == "" {
			dst = fmt.Sprintf("%s.backup-%s", rt.store.Path(), time.Now().Format("20060102-150405"))
		}

		if err := rt.store.Backup(dst); err != nil {
			fatal(withInitHint(err))
		}
		printStatus("✓", fmt.Sprintf("Backed up tasks to %s", dst), color.FgGreen)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Replace the tasks file with a backup",
	Long: `Replace the current tasks file with a previously taken backup. The
current file is overwritten, so this asks for confirmation first.

Examples:
  gantry restore .gantry/tasks.json.backup-20250110-093000 --yes`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rt, err := newRuntime(false)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		if !restoreYes && !confirm(fmt.Sprintf("Overwrite %s with %s?", rt.store.Path(), args[0])) {
			fmt.Println("Aborted.")
			return
		}

		if err := rt.store.Restore(args[0]); err != nil {
			fatal(err)
		}
		printStatus("✓", fmt.Sprintf("Restored tasks from %s", args[0]), color.FgGreen)
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupOut, "out", "", "Backup destination path")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip the confirmation prompt")
}
