package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fecworks/fecsync/internal/build"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("%s version", build.Slug),
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(build.Version)
			return nil
		},
	}
}
