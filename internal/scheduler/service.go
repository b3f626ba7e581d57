// Package scheduler runs maintenance jobs of the layout service on fixed
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/metrics"
)

// Job is one scheduled task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type entry struct {
	job  Job
	next time.Time
}

// Service runs due jobs one at a time.
type Service struct {
	mu   sync.Mutex
	jobs []*entry
	tick time.Duration
	now  func() time.Time
}

// NewService creates a scheduler that looks for due jobs every tick.
func NewService(tick time.Duration) *Service {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Service{tick: tick, now: time.Now}
}

// Add registers a job. Its first run is one schedule period from now.
func (s *Service) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s: no run function", job.Name)
	}
	next, err := Next(job.Schedule, s.now())
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, &entry{job: job, next: next})
	s.mu.Unlock()
	return nil
}

// Len returns the number of registered jobs.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start runs due jobs until ctx ends.
func (s *Service) Start(ctx context.Context) {
	if s.Len() == 0 {
		return
	}
	logger.Info("Starting scheduler service", "jobs", s.Len(), "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue runs every job whose next run has passed and returns how many ran.
func (s *Service) RunDue(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	var due []*entry
	for _, e := range s.jobs {
		if !now.Before(e.next) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		s.run(ctx, e)
	}
	return len(due)
}

func (s *Service) run(ctx context.Context, e *entry) {
	start := time.Now()
	err := e.job.Run(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		logger.ErrorContext(ctx, "Scheduled job failed", "name", e.job.Name, "error", err)
	}
	metrics.ScheduledJobRuns.WithLabelValues(e.job.Name, outcome).Inc()

	// Schedule was validated in Add.
	next, _ := Next(e.job.Schedule, s.now())
	s.mu.Lock()
	e.next = next
	s.mu.Unlock()
	logger.DebugContext(ctx, "Scheduled job executed", "name", e.job.Name,
		"duration", time.Since(start), "next_run", next.Format(time.RFC3339))
}
