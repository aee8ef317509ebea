package main

import (
	"fmt"
	"path/filepath"

	"dscraper/pkg/config"
	"dscraper/pkg/metadata"
	"dscraper/pkg/resolver"
	"dscraper/pkg/ui"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scrape runs",
	Long: `Show the reports written at the end of each scrape, newest first.
Reports live in "Discord Scrapes/.dscraper/runs" under the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(configFile, nil)
		if err != nil {
			return err
		}
		stateDir, err := resolver.StateDir(cfg.Output.BaseDirectory)
		if err != nil {
			return err
		}

		reports, err := metadata.List(filepath.Join(stateDir, "runs"))
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			ui.PrintWarning("No runs recorded yet")
			return nil
		}
		if historyLimit > 0 && len(reports) > historyLimit {
			reports = reports[:historyLimit]
		}

		for _, r := range reports {
			status := ui.Green("complete")
			if r.Cancelled {
				status = ui.Yellow("cancelled")
			}
			fmt.Printf("%s  %s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), ui.Dim(r.RunID), status)
			fmt.Printf("    %d targets (%d failed), %d days, %d downloaded, %d skipped, %d failed, %s in %s\n",
				r.TargetsScanned, r.TargetsFailed, r.DaysScanned,
				r.Downloaded, r.Skipped, r.Failed, ui.FormatBytes(r.Bytes), r.Duration)
			for _, t := range r.Targets {
				if t.Error != "" {
					fmt.Printf("    %s %s\n", ui.Red(t.Target), t.Error)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show, 0 for all")
}
