package main

import (
	"github.com/leeaandrob/weeklyreport/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "weeklyreport",
	Short: "Weekly US stock market report for Discord",
	Long: `Generates the weekly US stock market report with an LLM and posts it
to a Discord webhook, split into messages under the webhook length limit.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	if loaded.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if policy, _ := cmd.Flags().GetString("policy"); policy != "" {
		loaded.WeekPolicy = policy
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("policy", "", `week policy override: "strict" or "cutoff:<weekday>"`)
}
