package scheduler

import (
	"context"
	"errors"
	"fmt"
)

// Job names
const (
	JobExchangeSnapshot = "exchange-snapshot"
	JobSummaryEmail     = "summary-email"
)

// HoursAt returns one TimeOfDay per hour, all at minute
func HoursAt(hours []int, minute int) []TimeOfDay {
	times := make([]TimeOfDay, 0, len(hours))
	for _, h := range hours {
		times = append(times, TimeOfDay{Hour: h, Minute: minute})
	}
	return times
}

// Register schedules a guarded task. A timer firing while a manual run of the same task is
// in flight is skipped, not queued.
func (s *Scheduler) Register(task *Task, times ...TimeOfDay) error {
	return s.ScheduleDaily(task.Name(), times, func(ctx context.Context) error {
		err := task.Run(ctx)
		if errors.Is(err, ErrTaskRunning) {
			s.log.Warn().Str("job", task.Name()).Msg("Previous run still in progress, skipping")
			return nil
		}
		return err
	})
}

// Jobs wires the application's daily work
type Jobs struct {
	Snapshot     *Task
	SnapshotTime TimeOfDay
	Email        *Task
	EmailHours   []int
}

// RegisterJobs schedules the exchange snapshot and, when present, the summary email
func (s *Scheduler) RegisterJobs(jobs Jobs) error {
	if jobs.Snapshot != nil {
		if err := s.Register(jobs.Snapshot, jobs.SnapshotTime); err != nil {
			return fmt.Errorf("register snapshot job: %w", err)
		}
	}
	if jobs.Email != nil && len(jobs.EmailHours) > 0 {
		if err := s.Register(jobs.Email, HoursAt(jobs.EmailHours, 0)...); err != nil {
			return fmt.Errorf("register email job: %w", err)
		}
	}
	return nil
}
