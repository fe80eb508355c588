package main

import (
	"fmt"
	"io"
	"os"

	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/leeaandrob/weeklyreport/internal/report"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [file]",
	Short: "Show how a text would be split into messages",
	Long: `Splits the text of file (or stdin) exactly as a report section would be
split and prints every message with its length. Nothing is posted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("title", "", "message title (defaults to the report title)")
	previewCmd.Flags().String("date", "", "resolve the title's week from this date (YYYY-MM-DD)")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		policy, err := cfg.Policy()
		if err != nil {
			return err
		}
		today, err := referenceDate(cmd)
		if err != nil {
			return err
		}
		title = report.RenderTitle(cfg.Report, week.Resolve(today, policy))
	}

	pc := publisherConfig(cfg)
	pc.InterMessageDelay = 0
	p, err := publish.NewPublisher(publish.NewConsoleSink(cmd.OutOrStdout()), pc)
	if err != nil {
		return err
	}

	delivery, err := p.Publish(cmd.Context(), title, string(body))
	if err != nil {
		return err
	}
	cmd.PrintErrf("%d messages, limit %d\n", len(delivery.Results), pc.Limit)
	return nil
}
