package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/enrichment"
	"github.com/leeaandrob/weeklyreport/internal/models"
	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/leeaandrob/weeklyreport/internal/week"
)

// SectionResult is the outcome of one section: its generated text, the
// error that stopped it, and the delivery report once published.
type SectionResult struct {
	Name     string
	Title    string
	Text     string
	Err      error
	Delivery *publish.Report
}

// Generated reports whether the model produced text for the section.
func (s SectionResult) Generated() bool {
	return s.Text != ""
}

// Delivered reports whether every chunk of the section reached the sink.
func (s SectionResult) Delivered() bool {
	return s.Err == nil && s.Delivery != nil && len(s.Delivery.Results) > 0 && len(s.Delivery.Failed()) == 0
}

func (s SectionResult) failure() string {
	var msg string
	switch {
	case s.Err != nil:
		msg = s.Err.Error()
	case s.Delivery != nil && s.Delivery.Err() != nil:
		msg = fmt.Sprintf("%d/%d件の送信に失敗", len(s.Delivery.Failed()), len(s.Delivery.Results))
	default:
		msg = "未送信"
	}
	return enrichment.TruncateString(msg, 200)
}

// RunResult is the outcome of one report run.
type RunResult struct {
	ID         string
	Trigger    string
	Week       week.DateContext
	Policy     week.Policy
	Title      string
	StartedAt  time.Time
	FinishedAt time.Time
	Skipped    bool
	Market     Snapshot
	Sections   []SectionResult
	Notice     *publish.Report
}

// ChunksSent returns the number of messages the sink accepted, the failure
// notice included.
func (r *RunResult) ChunksSent() int {
	n := r.sectionChunksSent()
	if r.Notice != nil {
		n += r.Notice.Delivered()
	}
	return n
}

// ChunksFailed returns the number of messages the sink did not accept.
func (r *RunResult) ChunksFailed() int {
	n := 0
	for _, s := range r.Sections {
		if s.Delivery != nil {
			n += len(s.Delivery.Failed())
		}
	}
	if r.Notice != nil {
		n += len(r.Notice.Failed())
	}
	return n
}

// FailedSections returns the sections that did not fully reach the sink.
func (r *RunResult) FailedSections() []SectionResult {
	var failed []SectionResult
	for _, s := range r.Sections {
		if !s.Delivered() {
			failed = append(failed, s)
		}
	}
	return failed
}

// sectionChunksSent counts accepted report messages, leaving out the
// failure notice.
func (r *RunResult) sectionChunksSent() int {
	n := 0
	for _, s := range r.Sections {
		if s.Delivery != nil {
			n += s.Delivery.Delivered()
		}
	}
	return n
}

// Status classifies the run. A run is failed when no section reached the
// sink, even if the failure notice did.
func (r *RunResult) Status() models.RunStatus {
	switch {
	case r.Skipped:
		return models.RunStatusSkipped
	case r.sectionChunksSent() == 0:
		return models.RunStatusFailed
	case len(r.FailedSections()) > 0 || r.ChunksFailed() > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusDelivered
	}
}

// Err joins the section failures, or returns nil when everything was delivered.
func (r *RunResult) Err() error {
	var errs []error
	for _, s := range r.FailedSections() {
		switch {
		case s.Err != nil:
			errs = append(errs, fmt.Errorf("section %s: %w", s.Name, s.Err))
		case s.Delivery != nil:
			errs = append(errs, fmt.Errorf("section %s: %w", s.Name, s.Delivery.Err()))
		}
	}
	if r.Notice != nil {
		if err := r.Notice.Err(); err != nil {
			errs = append(errs, fmt.Errorf("failure notice: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Record converts the result into a ledger entry.
func (r *RunResult) Record() *models.RunRecord {
	rec := &models.RunRecord{
		RunID:          r.ID,
		WeekKey:        r.Week.Key(),
		Policy:         r.Policy.String(),
		Status:         r.Status(),
		Trigger:        r.Trigger,
		Sections:       make([]models.SectionRecord, 0, len(r.Sections)),
		ChunksSent:     r.ChunksSent(),
		ChunksFailed:   r.ChunksFailed(),
		SymbolsFetched: r.Market.Fetched(),
		SymbolsFailed:  r.Market.Failed(),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}

	for _, s := range r.Sections {
		sec := models.SectionRecord{Name: s.Name, Generated: s.Generated()}
		if s.Delivery != nil {
			sec.ChunksSent = s.Delivery.Delivered()
			sec.ChunksFailed = len(s.Delivery.Failed())
		}
		if !s.Delivered() {
			sec.Error = s.failure()
		}
		rec.Sections = append(rec.Sections, sec)
	}
	return rec
}
