// Command presence configures the detection zones of mmWave presence
// sensors and relays their live state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/monitoring"
)

var (
	flagConfig  string
	flagDev     bool
	flagLogFile string

	cfg *config.Config
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "presence",
		Short: "Zone configurator and live view for mmWave presence sensors",
		Long: `presence edits the detection, exclusion and entry zones of mmWave
presence sensors managed by Home Assistant, pushes them to the device and
relays the live target stream.

Configuration is read from --config (json, yaml or toml) and from
PRESENCE_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			var outputs []string
			if flagLogFile != "" {
				outputs = append(outputs, flagLogFile)
			}
			logger, err := monitoring.NewLogger(flagDev, outputs...)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			monitoring.UseZap(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagDev, "dev", false, "Human readable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(
		newServeCmd(),
		newEditCmd(),
		newPlotCmd(),
		newReplayCmd(),
		newLD2450Cmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
