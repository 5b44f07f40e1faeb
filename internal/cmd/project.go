package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// defaultUsageTool is the external CLI projectStatus shells out to for
// cost figures when --cost is passed.
const defaultUsageTool = "ccusage"

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect runs grouped by project config",
}

var projectStatusCmd = &cobra.Command{
	Use:   "status <config>",
	Short: "Show every run started from a config, with optional cost totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := requireDeps(cmd.Context())
		if err != nil {
			return err
		}

		cost, _ := cmd.Flags().GetBool("cost")

		infos, err := deps.Sessions.ProjectStatus(cmd.Context(), args[0], cost, defaultUsageTool)
		if err != nil {
			return fmt.Errorf("project status: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header := "RUN\tBRANCH\tSTATE"
		if cost {
			header += "\tCOST"
		}
		fmt.Fprintln(w, header)

		var total float64
		for _, info := range infos {
			line := fmt.Sprintf("%s\t%s\t%s", info.RunID, info.Branch, info.State)
			if cost {
				if info.Usage != nil {
					line += fmt.Sprintf("\t$%.2f", info.Usage.CostUSD)
					total += info.Usage.CostUSD
				} else {
					line += "\t-"
				}
			}
			fmt.Fprintln(w, line)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if cost {
			fmt.Printf("Total: $%.2f across %d run(s)\n", total, len(infos))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectStatusCmd)
	projectStatusCmd.Flags().Bool("cost", false, "join each run with usage/cost data")
}
