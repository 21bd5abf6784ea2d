package reportio

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs reports unattended on cron schedules. A fresh Report is
// built for every tick: a run's resume state lives on disk, so a failed
// tick's backup is picked up by the next same-day tick automatically.
//
// Builds for scheduled reports usually install a non-blocking
// acknowledgment with WithAcknowledgeFunc, since no operator is present to
// press enter when a run fails.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates an idle scheduler. Schedules use the standard five
// field cron format.
func NewScheduler(logger Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules build to construct and run a report on every tick of
// schedule. A schedule that does not parse is returned as an error. Adding
// name again replaces its previous schedule.
func (s *Scheduler) Add(name, schedule string, build func() (*Report, error)) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runOnce(name, build)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = entryID
	logf(s.logger, LevelInfo, "scheduled report '%s' with '%s'", name, schedule)
	return nil
}

// runOnce builds and drives one report through a full run.
func (s *Scheduler) runOnce(name string, build func() (*Report, error)) {
	report, err := build()
	if err != nil {
		logf(s.logger, LevelError, "scheduled report '%s' failed to build: %v", name, err)
		return
	}
	defer func() {
		if err := report.Close(); err != nil {
			logf(s.logger, LevelError, "scheduled report '%s' failed to close: %v", name, err)
		}
	}()

	if _, err := report.Run(context.Background()); err != nil {
		logf(s.logger, LevelWarn, "scheduled run of '%s' failed: %v", name, err)
	}
}

// Remove drops the schedule registered under name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}
}

// Start begins firing schedules in their own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	logf(s.logger, LevelInfo, "report scheduler started")
}

// Stop stops firing new ticks. Runs already in flight are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logf(s.logger, LevelInfo, "report scheduler stopped")
}
