package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/surveypath/surveypath-go/pipelines"
)

// ScheduledJob is one recurring pipeline run, typically a monthly wave
// refresh after new fieldwork data lands.
type ScheduledJob struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Pipeline  string    `json:"pipeline"` // path to the pipeline YAML
	CronExpr  string    `json:"cron_expr"`
	Enabled   bool      `json:"enabled"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastError string    `json:"last_error,omitempty"`

	entryID cron.EntryID
}

// Scheduler manages cron-based pipeline execution
type Scheduler struct {
	cron     *cron.Cron
	registry *pipelines.PluginRegistry
	store    *ResultsStore // optional
	jobs     map[string]*ScheduledJob
	mu       sync.RWMutex
}

// NewScheduler creates a scheduler executing against the given plugin
// registry. The results store may be nil; runs are then not persisted.
func NewScheduler(registry *pipelines.PluginRegistry, store *ResultsStore) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		registry: registry,
		store:    store,
		jobs:     make(map[string]*ScheduledJob),
	}
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	GetLogger().Info("scheduler started", Component("scheduler"))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	GetLogger().Info("scheduler stopped", Component("scheduler"))
}

// AddJob registers a recurring pipeline run. The cron expression uses
// the standard five-field format.
func (s *Scheduler) AddJob(id, name, pipeline, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %s already exists", id)
	}

	job := &ScheduledJob{
		ID:       id,
		Name:     name,
		Pipeline: pipeline,
		CronExpr: cronExpr,
		Enabled:  true,
	}
	entryID, err := s.cron.AddFunc(cronExpr, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	job.entryID = entryID
	s.jobs[id] = job

	GetLogger().Info("scheduled job added",
		Component("scheduler"),
		String("job", name),
		String("cron", cronExpr))
	return nil
}

// RemoveJob unschedules and forgets a job.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}
	s.cron.Remove(job.entryID)
	delete(s.jobs, id)
	return nil
}

// GetJob returns a copy of one job's current state.
func (s *Scheduler) GetJob(id string) (ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return ScheduledJob{}, fmt.Errorf("job %s not found", id)
	}
	return *job, nil
}

// ListJobs returns a snapshot of all registered jobs.
func (s *Scheduler) ListJobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

// RunJobNow triggers a job immediately, outside its schedule.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}
	s.runJob(job)
	return nil
}

// runJob executes one job and records its outcome on the job record
// and, when a store is configured, in the results database.
func (s *Scheduler) runJob(job *ScheduledJob) {
	logger := GetLogger()
	logger.Info("scheduled run starting",
		Component("scheduler"),
		String("job", job.Name),
		String("pipeline", job.Pipeline))

	result, err := RunPipeline(job.Pipeline, s.registry)

	s.mu.Lock()
	job.LastRun = time.Now().UTC()
	if err != nil {
		job.LastError = err.Error()
		job.LastRunID = ""
	} else {
		job.LastError = result.Error
		job.LastRunID = result.RunID
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("scheduled run failed", err,
			Component("scheduler"),
			String("job", job.Name))
		return
	}

	if s.store != nil {
		if serr := s.store.SaveRun(context.Background(), result); serr != nil {
			logger.Error("failed to persist scheduled run", serr,
				Component("scheduler"),
				String("job", job.Name),
				String("run_id", result.RunID))
		}
	}

	logger.Info("scheduled run finished",
		Component("scheduler"),
		String("job", job.Name),
		String("run_id", result.RunID),
		Bool("success", result.Success))
}
