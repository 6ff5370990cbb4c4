// Package scheduler owns every periodic job in the process as a named slot.
// A slot name maps to at most one live timer, so re-arming a slot can never
// stack a second interval behind the first.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Slot names used by the dashboard session.
const (
	SlotDashboard = "dashboard_refresh"
	SlotChart     = "chart_refresh"
	SlotDemoTick  = "demo_tick"
)

// Scheduler runs named periodic jobs. Safe for concurrent use.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	slots   map[string]cron.EntryID
	started bool
	stopped bool
}

// New creates a Scheduler. Jobs do not fire until Start.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		cron:   cron.New(),
		slots:  make(map[string]cron.EntryID),
	}
}

// Start begins firing scheduled slots.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Every arms a named slot to run fn at the given interval. If the slot is
// already armed it is replaced atomically: the old timer is removed before the
// new one is added, never leaving two timers under one name.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval for slot %q must be positive, got %s", name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	if old, ok := s.slots[name]; ok {
		s.cron.Remove(old)
		s.logger.Debug("replacing timer slot", "slot", name)
	}

	s.slots[name] = s.cron.Schedule(constantDelay{interval}, cron.FuncJob(fn))

	s.logger.Info("timer slot armed", "slot", name, "interval", interval)
	return nil
}

// Cancel disarms a named slot. Cancelling an unknown slot is a no-op.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.slots[name]
	if !ok {
		return
	}
	s.cron.Remove(id)
	delete(s.slots, name)
	s.logger.Info("timer slot cancelled", "slot", name)
}

// Active reports whether a slot is currently armed.
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[name]
	return ok
}

// Stop disarms every slot and waits, bounded by ctx, for in-flight jobs to
// finish. The scheduler cannot be restarted after Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for name, id := range s.slots {
		s.cron.Remove(id)
		delete(s.slots, name)
	}
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// constantDelay fires at a fixed interval. The stock "@every" schedule rounds
// delays up to whole seconds, which is too coarse for the demo tick and for
// tests.
type constantDelay struct {
	interval time.Duration
}

func (c constantDelay) Next(t time.Time) time.Time {
	return t.Add(c.interval)
}
