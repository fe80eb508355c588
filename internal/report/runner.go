// Package report produces the weekly market report and delivers it.
//
// A run resolves the reporting week, gathers market data and news, asks the
// model for each section separately and publishes every section as its own
// chunked message. A failing section never stops the others.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leeaandrob/weeklyreport/internal/config"
	"github.com/leeaandrob/weeklyreport/internal/enrichment"
	"github.com/leeaandrob/weeklyreport/internal/llm"
	"github.com/leeaandrob/weeklyreport/internal/marketdata"
	"github.com/leeaandrob/weeklyreport/internal/models"
	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/rs/zerolog/log"
)

// NewsSource gathers news for symbols over a date range.
type NewsSource interface {
	Enrich(ctx context.Context, symbols []string, from, to time.Time) *enrichment.EnrichedContext
}

// RunStore records run outcomes.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	HasDelivered(ctx context.Context, weekKey string) (bool, error)
}

// Options configures a Runner. Market, News and Store are optional.
type Options struct {
	Definition *config.ReportDefinition
	Policy     week.Policy
	Location   *time.Location
	Generator  llm.TextGenerator
	Publisher  *publish.Publisher
	Market     marketdata.Source
	News       NewsSource
	Store      RunStore

	NotifyFailures  bool
	SkipIfDelivered bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes report runs. Runs are serialized so that messages of two
// runs never interleave on the sink.
type Runner struct {
	opts Options
	mu   sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Definition == nil {
		return nil, errors.New("report definition is required")
	}
	if err := opts.Definition.Validate(); err != nil {
		return nil, err
	}
	if opts.Generator == nil {
		return nil, errors.New("text generator is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}, nil
}

// Week resolves the reporting week for now in the runner's location.
func (r *Runner) Week(now time.Time) week.DateContext {
	return week.Resolve(now.In(r.opts.Location), r.opts.Policy)
}

// CurrentWeek resolves the reporting week for the current time.
func (r *Runner) CurrentWeek() week.DateContext {
	return r.Week(r.opts.Now())
}

// Format returns the display format of the report dates.
func (r *Runner) Format() week.Format {
	return dateFormat(r.opts.Definition)
}

// Policy returns the week policy.
func (r *Runner) Policy() week.Policy {
	return r.opts.Policy
}

// Run produces and delivers the report for the current week. trigger names
// what started the run and is kept in the ledger.
func (r *Runner) Run(ctx context.Context, trigger string) (*RunResult, error) {
	return r.RunFor(ctx, r.opts.Now(), trigger)
}

// RunFor produces and delivers the report for the week resolved from today.
// The returned error joins the failures of individual sections; the result
// is always non-nil.
func (r *Runner) RunFor(ctx context.Context, today time.Time, trigger string) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := r.opts.Definition
	dc := r.Week(today)
	rep := placeholders(dc, dateFormat(def), def.Symbols)

	result := &RunResult{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Week:      dc,
		Policy:    r.opts.Policy,
		Title:     rep.Replace(def.Title),
		StartedAt: r.opts.Now(),
	}

	logger := log.With().Str("run_id", result.ID).Str("week", dc.Key()).Logger()
	logger.Info().Str("trigger", trigger).Str("policy", r.opts.Policy.String()).Msg("Starting report run")

	if r.opts.SkipIfDelivered && r.opts.Store != nil {
		delivered, err := r.opts.Store.HasDelivered(ctx, dc.Key())
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to check ledger, running anyway")
		} else if delivered {
			logger.Info().Msg("Week already delivered, skipping")
			result.Skipped = true
			r.finish(ctx, result)
			return result, nil
		}
	}

	result.Market = r.fetchMarket(ctx, dc)
	snapshot := renderSnapshot(result.Market, dc)
	news := r.fetchNews(ctx, dc)

	system := rep.Replace(def.System)
	for _, sec := range def.Sections {
		result.Sections = append(result.Sections, r.runSection(ctx, result.Title, sec, system, userPrompt(sec, rep, snapshot, news)))
	}

	if r.opts.NotifyFailures && len(result.FailedSections()) > 0 {
		notice, err := r.opts.Publisher.Publish(ctx, result.Title, failureNotice(result.Sections))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to publish failure notice")
		}
		result.Notice = notice
	}

	r.finish(ctx, result)

	logger.Info().
		Str("status", string(result.Status())).
		Int("sections", len(result.Sections)).
		Int("failed_sections", len(result.FailedSections())).
		Int("chunks_sent", result.ChunksSent()).
		Int("chunks_failed", result.ChunksFailed()).
		Msg("Report run complete")

	return result, result.Err()
}

func (r *Runner) runSection(ctx context.Context, title string, sec config.SectionDefinition, system, user string) SectionResult {
	res := SectionResult{Name: sec.Name, Title: sec.Title}

	text, err := r.opts.Generator.Generate(ctx, system, user)
	if err != nil {
		log.Error().Err(err).Str("section", sec.Name).Msg("Failed to generate section")
		res.Err = fmt.Errorf("generate: %w", err)
		return res
	}
	res.Text = text

	delivery, err := r.opts.Publisher.Publish(ctx, sectionTitle(title, sec.Title), text)
	if err != nil {
		log.Error().Err(err).Str("section", sec.Name).Msg("Failed to publish section")
		res.Err = fmt.Errorf("publish: %w", err)
		return res
	}
	res.Delivery = delivery
	return res
}

func (r *Runner) fetchMarket(ctx context.Context, dc week.DateContext) Snapshot {
	if r.opts.Market == nil {
		return Snapshot{}
	}
	symbols := append(append([]string{}, r.opts.Definition.Indices...), r.opts.Definition.Symbols...)
	return Snapshot{
		Current:  marketdata.FetchAll(ctx, r.opts.Market, symbols, dc.WeekStart, dc.WeekEnd),
		Previous: marketdata.FetchAll(ctx, r.opts.Market, symbols, dc.PreviousWeekStart, dc.PreviousWeekEnd),
	}
}

func (r *Runner) fetchNews(ctx context.Context, dc week.DateContext) string {
	if r.opts.News == nil || !wantsNews(r.opts.Definition.Sections) {
		return ""
	}
	enriched := r.opts.News.Enrich(ctx, r.opts.Definition.Symbols, dc.WeekStart, dc.WeekEnd)
	if enriched == nil {
		return ""
	}
	return enriched.Summary
}

func (r *Runner) finish(ctx context.Context, result *RunResult) {
	result.FinishedAt = r.opts.Now()
	if r.opts.Store == nil {
		return
	}
	// The ledger entry is written even when the run was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.opts.Store.SaveRun(ctx, result.Record()); err != nil {
		log.Warn().Err(err).Str("run_id", result.ID).Msg("Failed to record run")
	}
}

func wantsNews(sections []config.SectionDefinition) bool {
	for _, s := range sections {
		if s.News {
			return true
		}
	}
	return false
}

func sectionTitle(title, section string) string {
	if section == "" {
		return title
	}
	return strings.TrimSpace(title) + "｜" + section
}
