// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrJobNotFound is returned for an unknown job name.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning is returned when a job is triggered while it runs.
	ErrJobRunning = errors.New("job already running")
)

// JobFunc is the work of one job run.
type JobFunc func(ctx context.Context) error

type job struct {
	name        string
	description string
	schedule    string // empty: manual trigger only
	fn          JobFunc
	entryID     cron.EntryID
	running     sync.Mutex
	lastRun     time.Time
	lastErr     error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule,omitempty"`
	LastRun     time.Time `json:"last_run,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	NextRun     time.Time `json:"next_run,omitzero"`
}

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Jobs run with a context that Stop cancels.
func New(logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{logger})),
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. An empty schedule registers the job for manual
// triggering only.
func (s *Scheduler) Register(name, description, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, description: description, schedule: schedule, fn: fn}
	if schedule != "" {
		id, err := s.cron.AddFunc(schedule, func() { s.run(j, "schedule") })
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %q: %w", schedule, name, err)
		}
		j.entryID = id
	}
	s.jobs[name] = j
	s.logger.Debug("registered job", "job", name, "schedule", schedule)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger runs a job now and returns its error.
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(j, "manual")
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{Name: j.name, Description: j.description, Schedule: j.schedule}
		if j.running.TryLock() {
			info.LastRun = j.lastRun
			if j.lastErr != nil {
				info.LastError = j.lastErr.Error()
			}
			j.running.Unlock()
		}
		if j.schedule != "" {
			info.NextRun = s.cron.Entry(j.entryID).Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// run executes j unless it is already running. Overlapping runs are skipped.
func (s *Scheduler) run(j *job, trigger string) error {
	if !j.running.TryLock() {
		s.logger.Info("skipping job run, previous run still active", "job", j.name, "trigger", trigger)
		return ErrJobRunning
	}
	defer j.running.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	start := s.now()
	err := j.fn(s.ctx)
	j.lastRun = start
	j.lastErr = err

	if err != nil {
		s.logger.Error("job failed", "job", j.name, "trigger", trigger, "error", err)
		return err
	}
	s.logger.Info("job completed", "job", j.name, "trigger", trigger, "duration", s.now().Sub(start))
	return nil
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
