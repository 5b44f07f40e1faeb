package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Report (and optionally remove) orphaned containers, dead run dirs, and unused images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")

		report, err := deps.GC.Collect(cmd.Context(), force)
		if err != nil {
			return fmt.Errorf("collect garbage: %w", err)
		}

		printSection := func(title string, items []string) {
			fmt.Printf("%s (%d)\n", title, len(items))
			for _, item := range items {
				fmt.Printf("  %s\n", item)
			}
		}
		printSection("Orphan containers", report.OrphanContainers)
		printSection("Dead run directories", report.DeadRunDirs)
		printSection("Unused images", report.UnusedImages)

		if !force {
			fmt.Println("\npass --force to remove the above")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
	gcCmd.Flags().Bool("force", false, "remove everything found, best-effort")
}
