package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs the export on a cron schedule (watch mode).
type Scheduler struct {
	cron *cron.Cron
}

func New(tz *time.Location) *Scheduler {
	if tz == nil {
		tz = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(tz)),
	}
}

// Start registers the job under the given cron spec and blocks until ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context, spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("add export job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (spec: %s)", spec)

	<-ctx.Done()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}
