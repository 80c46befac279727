// Package runner executes scheduled background tasks.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner schedules the tasks of a registry with cron.
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithLocation evaluates schedules in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) { r.cron = cron.New(cron.WithLocation(loc)) }
}

// NewRunner creates a runner for registry.
func NewRunner(registry *TaskRegistry, opts ...Option) *Runner {
	r := &Runner{
		cron:     cron.New(),
		registry: registry,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers every task and starts the scheduler. It does not block;
// runs use ctx as their parent.
func (r *Runner) Start(ctx context.Context) error {
	for _, name := range r.registry.Names() {
		task, _ := r.registry.Get(name)
		if _, err := r.cron.AddFunc(task.Schedule(), func() { r.Execute(ctx, task) }); err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
		r.log.Info().Str("task", name).Str("schedule", task.Schedule()).Msg("task registered")
	}
	r.cron.Start()
	return nil
}

// Execute runs a single task with its timeout and logs the outcome.
func (r *Runner) Execute(ctx context.Context, task Task) error {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	ev := r.log.Info()
	if err != nil {
		ev = r.log.Error().Err(err)
	}
	ev.Str("task", task.Name()).Dur("duration", time.Since(start)).Msg("task finished")
	return err
}

// Stop stops scheduling and waits for running tasks.
func (r *Runner) Stop() {
	done := r.cron.Stop()
	r.wg.Wait()
	<-done.Done()
}
