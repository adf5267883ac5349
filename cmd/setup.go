package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/detect"
	"github.com/fecworks/fecsync/internal/fetch"
	"github.com/fecworks/fecsync/internal/logger"
	"github.com/fecworks/fecsync/internal/state"
)

// app bundles everything a subcommand needs: the dataset registry, the
// update state and a context carrying the configured logger.
type app struct {
	cfg     *config.Config
	store   *state.Store
	dataDir string
	lg      logger.Logger
}

func setup(cmd *cobra.Command) (*app, context.Context, error) {
	var opts []logger.Option
	if viper.GetBool("debug") {
		opts = append(opts, logger.WithDebug())
	}
	if viper.GetBool("quiet") {
		opts = append(opts, logger.WithQuiet())
	}
	opts = append(opts, logger.WithFormat(viper.GetString("log-format")))
	lg := logger.NewLogger(opts...)

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}

	store := state.New(viper.GetString("state-file"))
	if err := store.Load(); err != nil {
		return nil, nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		dataDir: viper.GetString("data-dir"),
		lg:      lg,
	}
	return a, logger.WithLogger(cmd.Context(), lg), nil
}

// probeOptions builds the detector options from the bound settings.
func probeOptions() []detect.Option {
	return []detect.Option{detect.WithProbeTimeout(viper.GetDuration("probe-timeout"))}
}

// fetchOptions builds the download settings from the bound settings.
func fetchOptions() fetch.Options {
	return fetch.Options{
		MaxAttempts: viper.GetInt("retry-attempts"),
		BaseDelay:   viper.GetDuration("retry-delay"),
		ChunkSize:   viper.GetInt("chunk-size"),
		Timeout:     viper.GetDuration("download-timeout"),
	}
}

// requestedCycles resolves the --cycle flag, defaulting to the current
// cycle plus the two prior ones.
func requestedCycles(cmd *cobra.Command) ([]int, error) {
	cycles, err := cmd.Flags().GetIntSlice("cycle")
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return config.DefaultCycles(time.Now()), nil
	}
	for _, cycle := range cycles {
		if cycle%2 != 0 {
			return nil, fmt.Errorf("invalid cycle %d: election cycles are even years", cycle)
		}
	}
	return cycles, nil
}
