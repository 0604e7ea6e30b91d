// Package scheduler runs a job on a cron schedule, never two at once.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rileybot/pkg/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context)

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	job     Job
	running sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec with the standard five-field cron syntax (descriptors such
// as @hourly are accepted too).
func New(spec string, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler: nil job")
	}
	c := cron.New()
	s := &Scheduler{cron: c, spec: spec, job: job}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, &config.ConfigurationError{Field: "schedule.cron", Reason: err.Error(), Err: err}
	}
	return s, nil
}

// Start begins firing the job. Jobs receive ctx; cancelling it stops the
// scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	log.Info().Str("schedule", s.spec).Time("next", s.Next()).Msg("Scheduler started")

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits up to five seconds for a running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Timed out waiting for running job")
	}
}

// Next is the next time the job fires, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// TriggerNow runs the job immediately on the caller's goroutine. It reports
// false when a run was already in progress and nothing was done.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	return s.runWith(ctx)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.runWith(ctx)
}

func (s *Scheduler) runWith(ctx context.Context) bool {
	if !s.running.TryLock() {
		log.Warn().Msg("Previous cycle still running, skipping this one")
		return false
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return false
	}
	s.job(ctx)
	return true
}
