package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeaandrob/weeklyreport/internal/models"
	"github.com/leeaandrob/weeklyreport/internal/report"
	"github.com/leeaandrob/weeklyreport/internal/scheduler"
	"github.com/leeaandrob/weeklyreport/internal/storage"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/rs/zerolog/log"
)

// ReportRunner is the part of report.Runner the API uses.
type ReportRunner interface {
	CurrentWeek() week.DateContext
	Format() week.Format
	Policy() week.Policy
	Run(ctx context.Context, trigger string) (*report.RunResult, error)
}

// RunLister reads the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
}

// JobController reports scheduled jobs and triggers them on demand.
type JobController interface {
	GetJobStatus() []scheduler.JobStatus
	RunJobNow(name string) error
}

// Handlers holds the API handlers.
type Handlers struct {
	runner ReportRunner
	runs   RunLister
	jobs   JobController
	// reportJob is the scheduler job that runs the report.
	reportJob string
}

// NewHandlers creates new API handlers.
func NewHandlers(runner ReportRunner, runs RunLister, jobs JobController, reportJob string) *Handlers {
	return &Handlers{runner: runner, runs: runs, jobs: jobs, reportJob: reportJob}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func getLimit(r *http.Request, defaultLimit int) int {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// WeekResponse describes the reporting week.
type WeekResponse struct {
	Policy            string `json:"policy"`
	Key               string `json:"key"`
	WeekStart         string `json:"week_start"`
	WeekEnd           string `json:"week_end"`
	PreviousWeekStart string `json:"previous_week_start"`
	PreviousWeekEnd   string `json:"previous_week_end"`
	Display           struct {
		WeekStart string `json:"week_start"`
		WeekEnd   string `json:"week_end"`
	} `json:"display"`
}

// HealthCheck returns the API health status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// GetWeek returns the week the next run would report on.
func (h *Handlers) GetWeek(w http.ResponseWriter, r *http.Request) {
	dc := h.runner.CurrentWeek()
	d := dc.Display(h.runner.Format())

	resp := WeekResponse{
		Policy:            h.runner.Policy().String(),
		Key:               dc.Key(),
		WeekStart:         d.WeekStartISO,
		WeekEnd:           d.WeekEndISO,
		PreviousWeekStart: d.PreviousWeekStartISO,
		PreviousWeekEnd:   d.PreviousWeekEndISO,
	}
	resp.Display.WeekStart = d.WeekStartLong
	resp.Display.WeekEnd = d.WeekEndShort

	respondJSON(w, http.StatusOK, resp)
}

// GetRuns returns recent runs from the ledger.
func (h *Handlers) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := getLimit(r, 20)

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns a single run by its run ID.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runs.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// TriggerRun starts a report run. With ?wait=true the response carries the
// ledger entry of the finished run; otherwise the report job is started on
// the scheduler and 202 is returned.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		result, err := h.runner.Run(r.Context(), "api")
		if err != nil {
			log.Warn().Err(err).Str("run_id", result.ID).Msg("Run finished with failures")
		}
		respondJSON(w, http.StatusOK, result.Record())
		return
	}

	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler not available")
		return
	}

	err := h.jobs.RunJobNow(h.reportJob)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "Job not found")
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job":    h.reportJob,
		"week":   h.runner.CurrentWeek().Key(),
	})
}

// GetJobs returns the status of all scheduled jobs.
func (h *Handlers) GetJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler not available")
		return
	}

	jobs := h.jobs.GetJobStatus()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
