package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned by Validate for an impossible schedule.
var ErrInvalidConfig = errors.New("invalid weekly schedule")

// WeeklyTriggerConfig holds configuration for the weekly trigger
type WeeklyTriggerConfig struct {
	Weekday time.Weekday
	Hour    int
	Minute  int

	// CheckInterval is how often the clock is compared with the schedule
	CheckInterval time.Duration

	// Location is the time zone the schedule is expressed in
	Location *time.Location
}

// DefaultWeeklyTriggerConfig returns Monday 08:00 local time
func DefaultWeeklyTriggerConfig() WeeklyTriggerConfig {
	return WeeklyTriggerConfig{
		Weekday:       time.Monday,
		Hour:          8,
		Minute:        0,
		CheckInterval: time.Minute,
		Location:      time.Local,
	}
}

// Validate checks the schedule fields
func (c WeeklyTriggerConfig) Validate() error {
	if c.Weekday < time.Sunday || c.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d", ErrInvalidConfig, c.Weekday)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return fmt.Errorf("%w: check interval must be within (0, 1m]", ErrInvalidConfig)
	}
	return nil
}

// WeeklyTrigger runs a job once a week at a fixed weekday and wall-clock
// time. It fires at most once per calendar date even if the check interval
// is shorter than a minute.
type WeeklyTrigger struct {
	config WeeklyTriggerConfig
	runner *Runner
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewWeeklyTrigger creates a weekly trigger for runner
func NewWeeklyTrigger(config WeeklyTriggerConfig, runner *Runner, logger *zap.Logger) (*WeeklyTrigger, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeeklyTrigger{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the check loop
func (w *WeeklyTrigger) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.runLoop(ctx)

	w.logger.Info("Weekly trigger started",
		zap.String("weekday", w.config.Weekday.String()),
		zap.Int("hour", w.config.Hour),
		zap.Int("minute", w.config.Minute),
		zap.String("timezone", w.config.Location.String()),
		zap.Time("next_run", w.NextRun()),
	)
	return nil
}

// Stop stops the check loop and waits for a running job or ctx
func (w *WeeklyTrigger) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Weekly trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun returns the next scheduled fire time after now
func (w *WeeklyTrigger) NextRun() time.Time {
	return nextWeekly(w.now().In(w.config.Location), w.config.Weekday, w.config.Hour, w.config.Minute)
}

// RunNow runs the job immediately, outside the schedule
func (w *WeeklyTrigger) RunNow(ctx context.Context) (*Job, error) {
	return w.runner.Run(ctx, "manual")
}

func (w *WeeklyTrigger) runLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires the job if the current minute matches the schedule
// and it has not fired today.
func (w *WeeklyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := w.now().In(w.config.Location)
	if now.Weekday() != w.config.Weekday || now.Hour() != w.config.Hour || now.Minute() != w.config.Minute {
		return false
	}

	today := now.Format(time.DateOnly)
	w.mu.Lock()
	if w.lastRunDate == today {
		w.mu.Unlock()
		return false
	}
	w.lastRunDate = today
	w.mu.Unlock()

	w.logger.Info("Triggering weekly job", zap.String("date", today))
	if _, err := w.runner.Run(ctx, "schedule"); err != nil {
		w.logger.Error("Scheduled weekly job failed", zap.Error(err))
	}
	return true
}

// nextWeekly returns the first weekday/hour/minute strictly after now
func nextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
