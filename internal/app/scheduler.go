/**
 * @description
 * Cron scheduler for the periodic reconciliation sweep.
 */
package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the reconciliation sweep on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	schedule   string
}

// NewScheduler creates a scheduler that drives the given reconciler.
func NewScheduler(reconciler *Reconciler, schedule string) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		schedule:   schedule,
	}
}

// Start registers the reconciliation job and starts the cron loop.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		log.Printf("level=error component=scheduler msg=\"failed to schedule reconciliation job\" schedule=%q err=%v", s.schedule, err)
		return
	}
	log.Printf("level=info component=scheduler msg=\"scheduled reconciliation job\" schedule=%q", s.schedule)
	s.cron.Start()
}

// Stop stops the cron loop and returns a context that is done once any
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.reconciler.Run(ctx); err != nil {
		log.Printf("level=error component=scheduler msg=\"reconciliation sweep failed\" err=%v", err)
	}
}
