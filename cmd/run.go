package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fecworks/fecsync/internal/detect"
	"github.com/fecworks/fecsync/internal/integrate"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect changed archives and integrate them",
		Long:  `Probes every configured (dataset, cycle) pair, retrieves the changed archives, transforms them, and replaces each affected cycle slice of the derived outputs. The update state is written once at the end of the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			cycles, err := requestedCycles(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			force, _ := cmd.Flags().GetBool("force")

			detector := detect.New(a.cfg, a.store, probeOptions()...)
			changes := detector.Detect(ctx, cycles)
			if force {
				changes = detector.WithForced(changes, cycles)
			}

			if len(changes) == 0 {
				a.lg.Info("all datasets up to date", "cycles", cycles)
				if !dryRun {
					a.store.SetLastCheck(time.Now())
					return a.store.Save()
				}
				return nil
			}

			engine := integrate.New(a.cfg, a.store, a.dataDir,
				integrate.WithFetchOptions(fetchOptions()),
				integrate.WithDryRun(dryRun))
			summary, err := engine.Run(ctx, changes)
			if err != nil {
				return err
			}

			if !dryRun {
				a.store.SetLastCheck(time.Now())
				if err := a.store.Save(); err != nil {
					return err
				}
			}

			printSummary(summary)
			if failed := summary.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d change(s) failed", failed, len(summary.Results))
			}
			return nil
		},
	}
	cmd.Flags().IntSlice("cycle", nil, "election cycle(s) to update (repeatable, default: current and two prior)")
	cmd.Flags().Bool("dry-run", false, "download and transform but write no outputs or state")
	cmd.Flags().Bool("force", false, "integrate every (dataset, cycle) pair even when unchanged")
	return cmd
}

func printSummary(summary *integrate.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Cycle", "Reason", "Status", "Rows"})
	for _, res := range summary.Results {
		status := color.GreenString(string(res.Status))
		if res.Status == integrate.StatusFailed {
			status = color.RedString(string(res.Status))
		}
		t.AppendRow(table.Row{res.Dataset, res.Cycle, res.Reason, status, res.Rows})
	}
	t.AppendFooter(table.Row{"", "", "", "succeeded/failed",
		fmt.Sprintf("%d/%d", summary.Succeeded(), summary.Failed())})
	t.Render()
}
