package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrJobAlreadyRunning is returned when a manual run overlaps a running job.
var ErrJobAlreadyRunning = errors.New("job already running")

// JobStatus represents the status of a job run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Task is the work a job performs
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context) error

// Run calls f(ctx)
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Job records one execution of a task, retries included
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Trigger     string     `json:"trigger"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunnerConfig holds retry and timeout settings for a Runner
type RunnerConfig struct {
	JobTimeout time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		JobTimeout: 5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}
}

// Runner executes one named task at a time and remembers the last run
type Runner struct {
	name   string
	task   Task
	config RunnerConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	last    *Job
}

// NewRunner creates a runner for task
func NewRunner(name string, task Task, config RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		name:   name,
		task:   task,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the task, retrying failed attempts after RetryDelay. It
// returns ErrJobAlreadyRunning instead of overlapping a run in progress.
func (r *Runner) Run(ctx context.Context, trigger string) (*Job, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}
	r.running = true
	job := &Job{
		ID:        uuid.New(),
		Name:      r.name,
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: r.now(),
	}
	r.last = job
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logger := r.logger.With(
		zap.String("job", r.name),
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", trigger),
	)

	var err error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err = fmt.Errorf("%s cancelled before retry: %w", r.name, ctx.Err())
				r.finish(job, attempt, err)
				return r.snapshot(job), err
			case <-time.After(r.config.RetryDelay):
			}
		}

		err = r.attempt(ctx)
		if err == nil {
			r.finish(job, attempt+1, nil)
			logger.Info("Job completed", zap.Int("attempts", attempt+1))
			return r.snapshot(job), nil
		}
		logger.Warn("Job attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	r.finish(job, r.config.MaxRetries+1, err)
	logger.Error("Job failed", zap.Error(err))
	return r.snapshot(job), err
}

// Last returns a copy of the most recent run, or nil before the first one
func (r *Runner) Last() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

func (r *Runner) attempt(ctx context.Context) (err error) {
	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", r.name, p)
		}
	}()
	return r.task.Run(ctx)
}

func (r *Runner) finish(job *Job, attempts int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	job.Attempts = attempts
	job.CompletedAt = &now
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		return
	}
	job.Status = JobStatusSuccess
}

func (r *Runner) snapshot(job *Job) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	return &cp
}
