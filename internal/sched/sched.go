// Package sched runs the maintenance jobs: periodic location cache warming
// so a confirmed alert never waits on a cold provider chain, and the audit
// log retention sweep.
package sched

import (
	"context"
	"log"
	"time"

	"github.com/mwillard/beacon/internal/config"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/location"
)

// Scheduler owns the cron-driven maintenance timers.
type Scheduler struct {
	cfg      config.SchedulerConfig
	resolver *location.Resolver // optional
	audit    *events.Logger     // optional
}

// New creates a Scheduler. Nil resolver or audit disables the matching job.
func New(cfg config.SchedulerConfig, resolver *location.Resolver, audit *events.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, resolver: resolver, audit: audit}
}

// Run manages the cron-based warm and sweep timers. It blocks until ctx is
// cancelled. Returns immediately when no job is enabled.
func (s *Scheduler) Run(ctx context.Context) {
	var warmTimer, sweepTimer *time.Timer
	if s.resolver != nil && s.cfg.LocationWarm != "" {
		if d := nextCronDuration(s.cfg.LocationWarm); d > 0 {
			warmTimer = time.NewTimer(d)
		}
	}
	if s.audit != nil && s.cfg.RetentionSweep != "" {
		if d := nextCronDuration(s.cfg.RetentionSweep); d > 0 {
			sweepTimer = time.NewTimer(d)
		}
	}
	if warmTimer == nil && sweepTimer == nil {
		return
	}

	defer func() {
		if warmTimer != nil {
			warmTimer.Stop()
		}
		if sweepTimer != nil {
			sweepTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(warmTimer):
			s.fireWarm(ctx)
			if d := nextCronDuration(s.cfg.LocationWarm); d > 0 {
				warmTimer.Reset(d)
			}
		case <-timerChan(sweepTimer):
			s.fireSweep()
			if d := nextCronDuration(s.cfg.RetentionSweep); d > 0 {
				sweepTimer.Reset(d)
			}
		}
	}
}

// fireWarm refreshes the location cache so the next alert resolves from it.
func (s *Scheduler) fireWarm(ctx context.Context) {
	s.resolver.Warm(ctx)
}

// fireSweep prunes audit events older than the retention window.
func (s *Scheduler) fireSweep() {
	days := s.cfg.RetentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := s.audit.Prune(cutoff)
	if err != nil {
		log.Printf("sched: retention sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sched: retention sweep removed %d events", n)
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when a job is not enabled.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
