package main

import (
	"encoding/json"

	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/spf13/cobra"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the week the report would cover",
	Args:  cobra.NoArgs,
	RunE:  showWeek,
}

func init() {
	weekCmd.Flags().String("date", "", "resolve the week from this date (YYYY-MM-DD) instead of today")
	weekCmd.Flags().Bool("json", false, "print JSON")
	rootCmd.AddCommand(weekCmd)
}

func showWeek(cmd *cobra.Command, _ []string) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	today, err := referenceDate(cmd)
	if err != nil {
		return err
	}

	dc := week.Resolve(today, policy)
	f := week.Format{Long: cfg.Report.Format.Long, Short: cfg.Report.Format.Short}
	d := dc.Display(f)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"policy":              policy.String(),
			"reference":           dc.Reference.Format("2006-01-02"),
			"week_start":          d.WeekStartISO,
			"week_end":            d.WeekEndISO,
			"previous_week_start": d.PreviousWeekStartISO,
			"previous_week_end":   d.PreviousWeekEndISO,
		})
	}

	cmd.Printf("Policy:        %s\n", policy)
	cmd.Printf("Reference:     %s\n", dc.Reference.Format("2006-01-02 (Mon)"))
	cmd.Printf("Week:          %s 〜 %s\n", d.WeekStartLong, d.WeekEndShort)
	cmd.Printf("Previous week: %s 〜 %s\n", d.PreviousWeekStartLong, d.PreviousWeekEndShort)
	return nil
}
