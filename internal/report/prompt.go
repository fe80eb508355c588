package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/config"
	"github.com/leeaandrob/weeklyreport/internal/marketdata"
	"github.com/leeaandrob/weeklyreport/internal/week"
)

// missingMarker replaces values that could not be fetched.
const missingMarker = "取得失敗"

// Snapshot holds the quotes of the reporting week and the week before.
type Snapshot struct {
	Current  marketdata.Results
	Previous marketdata.Results
}

// Failed returns the number of symbol lookups that failed in both weeks.
func (s Snapshot) Failed() int {
	return len(s.Current.Failed()) + len(s.Previous.Failed())
}

// Fetched returns the number of successful symbol lookups in both weeks.
func (s Snapshot) Fetched() int {
	return len(s.Current.Succeeded()) + len(s.Previous.Succeeded())
}

// Empty reports whether no lookup was attempted.
func (s Snapshot) Empty() bool {
	return len(s.Current) == 0 && len(s.Previous) == 0
}

func dateFormat(def *config.ReportDefinition) week.Format {
	return week.Format{Long: def.Format.Long, Short: def.Format.Short, ISO: time.DateOnly}
}

// weekLabels names the reporting window and the week before it relative to
// the run date.
func weekLabels(dc week.DateContext) (current, previous string) {
	if dc.IsCurrentWeek() {
		return "今週", "前週"
	}
	return "前週", "前々週"
}

// placeholders expands the text fields of a report definition.
func placeholders(dc week.DateContext, f week.Format, symbols []string) *strings.Replacer {
	d := dc.Display(f)
	label, prevLabel := weekLabels(dc)
	return strings.NewReplacer(
		"{week_label}", label,
		"{prev_week_label}", prevLabel,
		"{week_start}", d.WeekStartLong,
		"{week_end}", d.WeekEndShort,
		"{prev_week_start}", d.PreviousWeekStartLong,
		"{prev_week_end}", d.PreviousWeekEndShort,
		"{week_start_iso}", d.WeekStartISO,
		"{week_end_iso}", d.WeekEndISO,
		"{symbols}", strings.Join(symbols, ", "),
	)
}

// RenderTitle expands the report title for the week of dc.
func RenderTitle(def *config.ReportDefinition, dc week.DateContext) string {
	return placeholders(dc, dateFormat(def), def.Symbols).Replace(def.Title)
}

// renderSnapshot formats both weeks of quotes for the model. A failed symbol
// is listed with a marker instead of being dropped.
func renderSnapshot(s Snapshot, dc week.DateContext) string {
	if s.Empty() {
		return ""
	}

	d := dc.Display(week.DefaultFormat)
	label, prevLabel := weekLabels(dc)

	var sb strings.Builder
	sb.WriteString("## 市場データ\n")
	writeQuotes(&sb, fmt.Sprintf("%s (%s〜%s)", label, d.WeekStartISO, d.WeekEndISO), s.Current)
	writeQuotes(&sb, fmt.Sprintf("%s (%s〜%s)", prevLabel, d.PreviousWeekStartISO, d.PreviousWeekEndISO), s.Previous)
	return strings.TrimSpace(sb.String())
}

func writeQuotes(sb *strings.Builder, heading string, results marketdata.Results) {
	if len(results) == 0 {
		return
	}
	sb.WriteString("### " + heading + "\n")
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintf(sb, "- %s: %s\n", r.Symbol, missingMarker)
			continue
		}
		q := r.Quote
		fmt.Fprintf(sb, "- %s: 始値 %.2f / 終値 %.2f (%+.2f%%)\n", r.Symbol, q.Open, q.Close, q.PercentChange)
	}
}

// userPrompt builds the instructions for one section.
func userPrompt(sec config.SectionDefinition, rep *strings.Replacer, snapshot, news string) string {
	var sb strings.Builder
	sb.WriteString("# " + sec.Title + "\n")
	sb.WriteString(rep.Replace(sec.Prompt))

	if snapshot != "" {
		sb.WriteString("\n\n")
		sb.WriteString(snapshot)
	}
	if sec.News && news != "" {
		sb.WriteString("\n\n## 関連ニュース\n")
		sb.WriteString(news)
	}
	return sb.String()
}

// failureNotice lists the sections that did not reach the sink.
func failureNotice(sections []SectionResult) string {
	var sb strings.Builder
	sb.WriteString("以下のセクションは配信できませんでした:\n")
	for _, s := range sections {
		if s.Delivered() {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", s.Title, s.failure())
	}
	return strings.TrimSpace(sb.String())
}
