// Package scheduler runs actions at fixed UTC wall-clock times.
//
// Every job is a one-shot timer armed for the next matching time; after the action runs the
// timer is re-armed for the following occurrence, so a slow action never shifts later runs.
// Jobs are registered in jobs.go.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Action is the unit of scheduled work
type Action func(ctx context.Context) error

// TimeOfDay is an hour and minute in UTC
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// NextOccurrence returns the first instant strictly after now matching t (UTC)
func NextOccurrence(now time.Time, t TimeOfDay) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron   *gocron.Scheduler
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*gocron.Job
}

// Option configures a Scheduler
type Option func(*gocron.Scheduler)

// WithTime replaces the wall clock, for tests
func WithTime(tw gocron.TimeWrapper) Option {
	return func(s *gocron.Scheduler) {
		s.CustomTime(tw)
	}
}

// WithTimer replaces time.AfterFunc, for tests
func WithTimer(timer func(d time.Duration, f func()) *time.Timer) Option {
	return func(s *gocron.Scheduler) {
		s.CustomTimer(timer)
	}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(log zerolog.Logger, opts ...Option) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	for _, opt := range opts {
		opt(cron)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		log:    log.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*gocron.Job),
	}
}

// ScheduleAt runs action every day at hour:minute UTC
func (s *Scheduler) ScheduleAt(name string, hour, minute int, action Action) error {
	return s.ScheduleDaily(name, []TimeOfDay{{Hour: hour, Minute: minute}}, action)
}

// ScheduleDaily runs action every day at each of times (UTC)
func (s *Scheduler) ScheduleDaily(name string, times []TimeOfDay, action Action) error {
	if len(times) == 0 {
		return fmt.Errorf("schedule %s: no times given", name)
	}

	at := make([]string, 0, len(times))
	for _, t := range times {
		if !t.valid() {
			return fmt.Errorf("schedule %s: invalid time %s", name, t)
		}
		at = append(at, t.String())
	}
	sort.Strings(at)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("schedule %s: already registered", name)
	}

	job, err := s.cron.Every(1).Day().At(strings.Join(at, ";")).Tag(name).Do(s.wrap(name, action))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.jobs[name] = job

	s.log.Info().Str("job", name).Strs("at_utc", at).Msg("Job scheduled")
	return nil
}

func (s *Scheduler) wrap(name string, action Action) func() {
	return func() {
		start := time.Now()
		s.log.Info().Str("job", name).Msg("Job started")
		if err := action(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("Job failed")
			return
		}
		s.log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("Job finished")
	}
}

// NextRuns returns the next fire time per job
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make(map[string]time.Time, len(s.jobs))
	for name, job := range s.jobs {
		runs[name] = job.NextRun()
	}
	return runs
}

// NextRun returns the next fire time of one job
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return job.NextRun(), true
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.log.Info().Int("jobs", s.cron.Len()).Msg("Scheduler started")
}

// Stop stops the scheduler and cancels running actions
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.log.Info().Msg("Scheduler stopped")
}
