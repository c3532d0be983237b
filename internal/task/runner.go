// Package task runs periodic background jobs with panic recovery. Jobs are
// the wallet's heartbeat: chain sync, price refresh, auto-lock sweep.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic unit of work. Errors are logged and the schedule
// continues; a panic is recovered and treated the same way.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives a set of jobs, each on its own goroutine. Start and Stop are
// idempotent.
type Runner struct {
	log  *zap.Logger
	jobs []Job

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    sync.WaitGroup
	running bool
}

// NewRunner creates a runner for the given jobs.
func NewRunner(log *zap.Logger, jobs ...Job) *Runner {
	return &Runner{log: log, jobs: jobs}
}

// Start launches every job. Each job runs once immediately, then on its
// interval, until Stop or ctx cancellation.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, job := range r.jobs {
		job := job
		r.done.Add(1)
		go func() {
			defer r.done.Done()
			r.loop(ctx, job)
		}()
	}
}

// Stop cancels all jobs and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.done.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.invoke(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.invoke(ctx, job)
		}
	}
}

func (r *Runner) invoke(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("background job panicked",
				zap.String("job", job.Name),
				zap.Any("panic", rec))
		}
	}()

	if err := job.Run(ctx); err != nil && ctx.Err() == nil {
		r.log.Warn("background job failed",
			zap.String("job", job.Name),
			zap.Error(err))
	}
}
