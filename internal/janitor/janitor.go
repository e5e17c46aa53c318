// Package janitor runs periodic maintenance: revocation sweeps, idle limiter
// eviction and snapshot backups.
package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chaisthra/vibetrack/internal/logger"
)

// Task is a unit of maintenance work.
type Task func(ctx context.Context) error

// Janitor schedules tasks on cron specs. A task that is still running when
// its next tick fires is skipped rather than stacked.
type Janitor struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu  sync.RWMutex
	ctx context.Context
}

func New(logger *logger.Logger) *Janitor {
	cl := cronLogger{logger: logger}
	return &Janitor{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add schedules task under spec, which accepts standard five-field cron
// expressions and descriptors such as "@daily" or "@every 5m".
func (j *Janitor) Add(name, spec string, task Task) error {
	_, err := j.cron.AddFunc(spec, func() {
		j.run(name, task)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	j.logger.Info("Janitor: task scheduled", "task", name, "spec", spec)
	return nil
}

// Every schedules task at a fixed interval.
func (j *Janitor) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("failed to schedule %s: interval must be positive", name)
	}
	return j.Add(name, "@every "+interval.String(), task)
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running tasks to finish.
func (j *Janitor) Run(ctx context.Context) error {
	j.mu.Lock()
	j.ctx = ctx
	j.mu.Unlock()

	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.logger.Info("Janitor: stopped")
	return nil
}

func (j *Janitor) run(name string, task Task) {
	j.mu.RLock()
	ctx := j.ctx
	j.mu.RUnlock()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := task(ctx); err != nil {
		j.logger.Error("Janitor: task failed",
			"task", name,
			"error", err.Error())
		return
	}
	j.logger.Debug("Janitor: task finished",
		"task", name,
		"duration", time.Since(start))
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("Janitor: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("Janitor: "+msg, append(keysAndValues, "error", err)...)
}
