package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fecworks/fecsync/internal/verify"
)

// recentCycles bounds the per-cycle breakdown to the cycles still likely
// to be receiving amendments.
const recentCycles = 5

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the derived output files for consistency",
		Long:  `Checks every configured dataset's output file: presence, declared columns, election cycle plausibility and aggregate bounds. Exits non-zero when any check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			cycleCounts, _ := cmd.Flags().GetBool("cycle-counts")

			reports := verify.New(a.cfg, a.dataDir).Verify(ctx)
			printReports(reports, cycleCounts)

			failed := 0
			for _, report := range reports {
				if !report.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d dataset(s) failed verification", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().Bool("cycle-counts", false, "also print per-cycle row counts")
	return cmd
}

func printReports(reports []verify.FileReport, cycleCounts bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "File", "Rows", "Status", "Issues"})
	for _, report := range reports {
		status := color.GreenString("OK")
		if !report.OK() {
			status = color.RedString("FAIL")
		}
		detail := ""
		for i, issue := range report.Issues {
			if i > 0 {
				detail += "; "
			}
			detail += issue.Detail
		}
		t.AppendRow(table.Row{report.Dataset, report.OutputFile, report.Rows, status, detail})
	}
	t.Render()

	if !cycleCounts {
		return
	}
	for _, report := range reports {
		if len(report.CycleCounts) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", report.Dataset)
		ct := table.NewWriter()
		ct.SetOutputMirror(os.Stdout)
		ct.SetStyle(table.StyleLight)
		ct.AppendHeader(table.Row{"Cycle", "Rows"})
		cycles := report.Cycles()
		if len(cycles) > recentCycles {
			cycles = cycles[len(cycles)-recentCycles:]
		}
		for _, cycle := range cycles {
			ct.AppendRow(table.Row{cycle, report.CycleCounts[cycle]})
		}
		ct.Render()
	}
}
