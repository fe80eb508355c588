// Package scheduler runs report jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrJobNotFound is returned when a job name is not registered.
	ErrJobNotFound = errors.New("job not found")
	// ErrStopped is returned when a job is triggered after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

// Trigger labels carried in a job's context.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

type triggerKey struct{}

// TriggerFrom returns how the running job was started, TriggerSchedule when
// ctx carries no label.
func TriggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok {
		return t
	}
	return TriggerSchedule
}

// DefaultJobTimeout bounds a single job execution.
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled job.
type Job struct {
	Name     string
	Schedule string // standard 5-field cron expression
	Handler  func(ctx context.Context) error
	Timeout  time.Duration

	entryID cron.EntryID
	running bool
	lastRun time.Time
	lastErr error
}

// JobStatus is a snapshot of a job for reporting.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler manages scheduled jobs.
type Scheduler struct {
	cron *cron.Cron

	jobs    map[string]*Job
	jobsMux sync.RWMutex

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// NewScheduler creates a scheduler evaluating schedules in loc.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers a job. The schedule is validated immediately.
func (s *Scheduler) AddJob(job *Job) error {
	if job.Name == "" || job.Handler == nil {
		return errors.New("job needs a name and a handler")
	}
	if job.Timeout <= 0 {
		job.Timeout = DefaultJobTimeout
	}

	s.jobsMux.Lock()
	defer s.jobsMux.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.runJob(job, TriggerSchedule) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}
	job.entryID = id
	s.jobs[job.Name] = job

	log.Info().
		Str("job", job.Name).
		Str("schedule", job.Schedule).
		Msg("Job registered")
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.jobs)).Msg("Starting scheduler")
	s.cron.Start()

	for _, status := range s.GetJobStatus() {
		log.Info().Str("job", status.Name).Time("next_run", status.NextRun).Msg("Job scheduled")
	}
}

// Stop stops the scheduler and waits for running jobs, manual ones included,
// to return.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler")
	<-s.cron.Stop().Done()

	s.jobsMux.Lock()
	s.stopped = true
	s.jobsMux.Unlock()

	s.cancel()
	s.wg.Wait()
}

// runJob executes a job unless a previous execution is still running.
func (s *Scheduler) runJob(job *Job, trigger string) {
	s.jobsMux.Lock()
	if job.running {
		s.jobsMux.Unlock()
		log.Warn().Str("job", job.Name).Msg("Job still running, skipping")
		return
	}
	job.running = true
	job.lastRun = time.Now()
	s.wg.Add(1)
	s.jobsMux.Unlock()

	defer s.wg.Done()
	log.Info().Str("job", job.Name).Str("trigger", trigger).Msg("Running job")

	ctx, cancel := context.WithTimeout(context.WithValue(s.ctx, triggerKey{}, trigger), job.Timeout)
	defer cancel()

	err := s.safeRun(ctx, job)
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Job failed")
	} else {
		log.Info().Str("job", job.Name).Msg("Job completed")
	}

	s.jobsMux.Lock()
	job.running = false
	job.lastErr = err
	s.jobsMux.Unlock()
}

func (s *Scheduler) safeRun(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Handler(ctx)
}

// RunJobNow runs a specific job immediately by name, in the background. The
// run goes through the same overlap guard as scheduled runs and Stop waits
// for it.
func (s *Scheduler) RunJobNow(name string) error {
	s.jobsMux.Lock()
	defer s.jobsMux.Unlock()

	if s.stopped {
		return ErrStopped
	}
	job, ok := s.jobs[name]
	if !ok {
		return ErrJobNotFound
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job, TriggerManual)
	}()
	return nil
}

// GetJobStatus returns the status of all jobs.
func (s *Scheduler) GetJobStatus() []JobStatus {
	s.jobsMux.RLock()
	defer s.jobsMux.RUnlock()

	status := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		st := JobStatus{
			Name:     job.Name,
			Schedule: job.Schedule,
			Running:  job.running,
			LastRun:  job.lastRun,
			NextRun:  s.cron.Entry(job.entryID).Next,
		}
		if job.lastErr != nil {
			st.LastError = job.lastErr.Error()
		}
		status = append(status, st)
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}
