package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and post the report once",
	Long: `Generates every report section for the resolved week and posts each one
to the Discord webhook. With --dry-run the messages are printed instead and
nothing is recorded in the run ledger.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "print messages to stdout instead of posting them")
	runCmd.Flags().String("date", "", "resolve the week from this date (YYYY-MM-DD) instead of today")
	rootCmd.AddCommand(runCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var sink publish.Sink
	if dryRun {
		sink = publish.NewConsoleSink(cmd.OutOrStdout())
	}

	a, err := newApp(ctx, cfg, sink, !dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	today, err := referenceDate(cmd)
	if err != nil {
		return err
	}

	result, err := a.runner.RunFor(ctx, today, "cli")
	cmd.PrintErrf("run %s: week %s, %s, %d messages sent, %d failed\n",
		result.ID, result.Week.Key(), result.Status(), result.ChunksSent(), result.ChunksFailed())
	if err != nil {
		return fmt.Errorf("report incomplete: %w", err)
	}
	return nil
}

// referenceDate returns --date in the configured location, or now.
func referenceDate(cmd *cobra.Command) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}

	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		return time.Now().In(loc), nil
	}

	t, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date: %w", err)
	}
	return t, nil
}
