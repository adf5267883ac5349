package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded update state",
		Long:  `Prints the last check time and the per-(dataset, cycle) validators recorded by previous runs. Reads only the state file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := setup(cmd)
			if err != nil {
				return err
			}

			if last := a.store.LastCheck(); last != "" {
				fmt.Printf("Last check: %s\n", last)
			} else {
				fmt.Println("Last check: never")
			}

			datasets := a.store.Datasets()
			if len(datasets) == 0 {
				fmt.Println("No cycles integrated yet.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Dataset", "Cycle", "Last Updated", "ETag", "Content Length"})
			for _, dataset := range datasets {
				for _, cycle := range a.store.Cycles(dataset) {
					cs, ok := a.store.CycleState(dataset, cycle)
					if !ok {
						continue
					}
					t.AppendRow(table.Row{dataset, cycle, cs.LastUpdated, cs.ETag, cs.ContentLength})
				}
			}
			t.Render()
			return nil
		},
	}
}
