package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/api"
	"github.com/leeaandrob/weeklyreport/internal/scheduler"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const reportJob = "weekly-report"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report on a schedule and serve the admin API",
	Long: `Starts the cron scheduler (SCHEDULE, evaluated in TIMEZONE) and the admin
API on HTTP_ADDR. The API exposes the current week, the run ledger and a
trigger for manual runs.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("weeklyreport - Starting report service")

	a, err := newApp(ctx, cfg, nil, true)
	if err != nil {
		return err
	}
	defer a.close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize scheduler
	sched := scheduler.NewScheduler(loc)
	if err := sched.AddJob(&scheduler.Job{
		Name:     reportJob,
		Schedule: cfg.Schedule,
		Handler: func(ctx context.Context) error {
			_, err := a.runner.Run(ctx, scheduler.TriggerFrom(ctx))
			return err
		},
	}); err != nil {
		return err
	}

	// Initialize API server
	apiServer := api.NewServer(a.runner, a.ledger, sched, reportJob, cfg.HTTPAddr)

	// Start all services
	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	sched.Start()

	dc := a.runner.CurrentWeek()
	log.Info().
		Str("api", cfg.HTTPAddr).
		Str("schedule", cfg.Schedule).
		Str("timezone", cfg.Timezone).
		Str("week", dc.Key()).
		Msg("weeklyreport service running")

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err = <-serverErr:
		log.Error().Err(err).Msg("API server error")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := apiServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("API server shutdown failed")
	}
	// Waits for scheduled and API-triggered runs before the store closes.
	sched.Stop()

	log.Info().Msg("weeklyreport service stopped")
	return err
}
