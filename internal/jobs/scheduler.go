package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rualca/librarian-agent/internal/logger"
)

// Scheduler fires enabled jobs at their scheduled UTC slots.
type Scheduler struct {
	registry *Registry
	runner   *Runner
	log      *slog.Logger
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

// NewScheduler returns a scheduler over the registry's enabled jobs.
func NewScheduler(reg *Registry, runner *Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{registry: reg, runner: runner, log: logger.OrNop(log), now: time.Now, after: time.After}
}

// NextRun returns the next firing time and the jobs due then. It returns
// the zero time when no enabled job is scheduled.
func (s *Scheduler) NextRun(now time.Time) (time.Time, []Job) {
	var (
		next time.Time
		due  []Job
	)
	for _, j := range s.registry.Jobs() {
		if !j.Enabled {
			continue
		}
		t := j.Schedule.Next(now)
		if t.IsZero() {
			continue
		}
		switch {
		case next.IsZero() || t.Before(next):
			next, due = t, []Job{j}
		case t.Equal(next):
			due = append(due, j)
		}
	}
	return next, due
}

// Start runs the schedule until ctx is done. Jobs due at the same slot run
// concurrently; Start waits for running jobs before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for _, j := range s.registry.Jobs() {
		if j.Enabled {
			s.log.Info("job scheduled", "job", j.Name, "schedule", j.Schedule.String())
		}
	}

	for {
		next, due := s.NextRun(s.now())
		if next.IsZero() {
			s.log.Warn("no enabled jobs to schedule")
			<-ctx.Done()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(time.Until(next)):
		}
		for _, j := range due {
			wg.Add(1)
			go func(j Job) {
				defer wg.Done()
				if _, err := s.runner.Run(ctx, j); err != nil && !errors.Is(err, ErrJobRunning) {
					s.log.Error("scheduled job failed", "job", j.Name, "error", err)
				}
			}(j)
		}
	}
}
