// Package schedule enqueues scraping runs on a cron spec. Enqueued runs are
// picked up by the coordinator's claim loop; scheduling and claiming stay
// separate so a schedule tick never executes work itself.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

// Enqueuer creates a queued run.
type Enqueuer interface {
	CreateRun(ctx context.Context) (*models.Run, error)
}

type Scheduler struct {
	cron *cron.Cron
	st   Enqueuer
	spec string
}

// New builds a scheduler for spec, e.g. "@every 6h" or "0 */6 * * *". An
// empty spec disables scheduling.
func New(st Enqueuer, spec string) *Scheduler {
	return &Scheduler{cron: cron.New(), st: st, spec: spec}
}

// Start registers the enqueue job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		slog.Info("run scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.enqueue(ctx) }); err != nil {
		return fmt.Errorf("register schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("run scheduler started", "spec", s.spec)
	return nil
}

// Stop halts future ticks. An in-flight enqueue still completes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) enqueue(ctx context.Context) {
	run, err := s.st.CreateRun(ctx)
	if err != nil {
		slog.Error("enqueue scheduled run", "error", err)
		return
	}
	slog.Info("scheduled run enqueued", "run_id", run.ID)
}
