package commands

import (
	"fmt"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	config Config
	clock  chrono.StandardImpl
	tel    telemetry.API = telemetry.SlogAPI{}
)

var rootCmd = &cobra.Command{
	Use:   "slotwatch",
	Short: "slotwatch scrapes a sign up page and announces time slots it has not seen before.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		config, err = LoadConfig(configPath)
		if err != nil {
			return err
		}
		clock, err = chrono.NewStandardImpl(config.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(listCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		serviceutil.Fatal("slotwatch failed", err)
	}
}
