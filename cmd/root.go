// Package cmd wires the command-line surface: check, run, verify,
// status and version.
package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fecworks/fecsync/internal/build"
	"github.com/fecworks/fecsync/internal/fetch"
)

var rootCmd = &cobra.Command{
	Use:           build.Slug,
	Short:         "Incremental updater for datasets derived from FEC bulk files",
	Long:          `Keeps derived CSV datasets in sync with the FEC's periodically republished bulk archives: detects changed cycle archives, retrieves and transforms them, and replaces each affected cycle slice in place.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func registerCommands() {
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "config/datasets.yaml", "dataset registry file")
	flags.String("data-dir", "data", "directory holding the derived output files")
	flags.String("state-file", "data/update_state.json", "update state file")
	flags.String("log-format", "text", "log format (text or json)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("quiet", false, "suppress log output")
	flags.Duration("probe-timeout", 30*time.Second, "timeout for change-detection probes")
	flags.Duration("download-timeout", fetch.DefaultTimeout, "timeout for a single download attempt")
	flags.Int("retry-attempts", fetch.DefaultMaxAttempts, "download attempt budget, including the first try")
	flags.Duration("retry-delay", fetch.DefaultBaseDelay, "base delay between download retries")
	flags.Int("chunk-size", fetch.DefaultChunkSize, "buffer size for streaming downloads")

	for _, key := range []string{
		"config", "data-dir", "state-file", "log-format", "debug", "quiet",
		"probe-timeout", "download-timeout", "retry-attempts", "retry-delay", "chunk-size",
	} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(key)))
	}

	viper.SetEnvPrefix(strings.ToUpper(build.Slug))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	registerCommands()
}
