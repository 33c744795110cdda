// Package worker runs periodic maintenance jobs.
package worker

import (
	"context"
	"sync"
	"time"

	appctx "sitetrack/internal/core/context"
	"sitetrack/pkg/logger"
)

// Job is a periodic task. Run returns the number of items it processed.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Observer receives one call per job run.
type Observer interface {
	ObserveRun(job string, items int64, elapsed time.Duration, err error)
}

// Scheduler runs each job on its own ticker until the context ends.
type Scheduler struct {
	jobs     []Job
	observer Observer
	log      *logger.Logger
}

// NewScheduler creates a scheduler. observer may be nil.
func NewScheduler(log *logger.Logger, observer Observer, jobs ...Job) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{jobs: jobs, observer: observer, log: log.WithComponent("scheduler")}
}

// Run starts every job, running each once immediately, and blocks until ctx
// is cancelled and all jobs have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Warnw("job disabled", "job", job.Name)
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.log.Infow("job started", "job", job.Name, "interval", job.Interval)
	s.RunOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce executes a job a single time and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	start := time.Now()
	n, err := job.Run(appctx.ForJob(ctx, job.Name))
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.ObserveRun(job.Name, n, elapsed, err)
	}

	switch {
	case err != nil && ctx.Err() != nil:
		// shutting down
	case err != nil:
		s.log.Errorw("job failed", "job", job.Name, "error", err)
	case n > 0:
		s.log.Infow("job finished", "job", job.Name, "items", n, "elapsed", elapsed)
	default:
		s.log.Debugw("job finished", "job", job.Name, "elapsed", elapsed)
	}
}
