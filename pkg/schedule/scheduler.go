// Package schedule runs recurring exports on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one export cycle.
type RunFunc func(ctx context.Context) error

// Scheduler triggers an export run at scheduled intervals using cron
// syntax. Runs never overlap: a tick that arrives while the previous
// run is still executing is skipped.
type Scheduler struct {
	spec   string
	run    RunFunc
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	busy    bool
}

// NewScheduler creates a scheduler that invokes run per the cron spec.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "0 0 * * 0"    - Weekly on Sunday at midnight
func NewScheduler(spec string, run RunFunc) *Scheduler {
	return &Scheduler{
		spec:   spec,
		run:    run,
		cron:   cron.New(),
		logger: slog.Default().With("component", "schedule"),
	}
}

// Start begins scheduled execution. An empty spec is a no-op. The
// scheduler stops itself when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		s.logger.Info("schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("export scheduler started", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runCycle executes one export cycle, skipping ticks that overlap a
// run still in progress.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn("previous export still running, skipping this tick")
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.logger.Info("starting scheduled export")

	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled export failed", "error", err)
		return
	}

	s.logger.Info("scheduled export completed")
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("export scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled export time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
