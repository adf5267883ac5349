package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fecworks/fecsync/internal/detect"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe upstream archives and report pending changes",
		Long:  `Issues metadata-only probes for every configured (dataset, cycle) pair and reports which ones changed since the last integration. Nothing is downloaded and no state is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			cycles, err := requestedCycles(cmd)
			if err != nil {
				return err
			}

			changes := detect.New(a.cfg, a.store, probeOptions()...).Detect(ctx, cycles)
			if len(changes) == 0 {
				fmt.Println("No changes detected.")
				return nil
			}

			printChanges(changes)
			return nil
		},
	}
	cmd.Flags().IntSlice("cycle", nil, "election cycle(s) to check (repeatable, default: current and two prior)")
	return cmd
}

func printChanges(changes []detect.Change) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Cycle", "Reason"})
	for _, ch := range changes {
		t.AppendRow(table.Row{ch.Dataset, ch.Cycle, ch.Reason})
	}
	t.Render()
}
