package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now(loc *time.Location) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.In(loc)
}

func (f *fakeTime) Unix(sec, nsec int64) time.Time { return time.Unix(sec, nsec) }
func (f *fakeTime) Sleep(d time.Duration)          {}

func (f *fakeTime) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type armedTimer struct {
	delay time.Duration
	fire  func()
}

// captureTimer records every arming instead of waiting on the real clock
func captureTimer(armed chan<- armedTimer) func(time.Duration, func()) *time.Timer {
	return func(d time.Duration, f func()) *time.Timer {
		armed <- armedTimer{delay: d, fire: f}
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	}
}

func nextArmed(t *testing.T, armed <-chan armedTimer) armedTimer {
	t.Helper()
	select {
	case a := <-armed:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timer was not armed")
		return armedTimer{}
	}
}

func TestNextOccurrence(t *testing.T) {
	at := TimeOfDay{Hour: 23, Minute: 59}

	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC), NextOccurrence(now, at))

	// exactly on the mark rolls to tomorrow
	now = time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC), NextOccurrence(now, at))

	// month rollover
	now = time.Date(2025, 3, 31, 23, 59, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 1, 23, 59, 0, 0, time.UTC), NextOccurrence(now, at))
}

func TestScheduleAt_FiresAndRearms(t *testing.T) {
	clock := &fakeTime{now: time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)}
	armed := make(chan armedTimer, 8)

	s := NewScheduler(zerolog.Nop(), WithTime(clock), WithTimer(captureTimer(armed)))
	ran := make(chan struct{}, 4)
	require.NoError(t, s.ScheduleAt("snapshot", 23, 59, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}))

	s.Start()
	defer s.Stop()

	first := nextArmed(t, armed)
	assert.Equal(t, 59*time.Minute, first.delay)

	next, ok := s.NextRun("snapshot")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC), next.UTC())

	clock.Set(time.Date(2025, 3, 10, 23, 59, 0, 500, time.UTC))
	go first.fire()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("action did not run")
	}

	second := nextArmed(t, armed)
	assert.InDelta(t, float64(24*time.Hour), float64(second.delay), float64(time.Second))

	next, ok = s.NextRun("snapshot")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC), next.UTC())
}

func TestScheduleDaily_MultipleTimes(t *testing.T) {
	clock := &fakeTime{now: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}
	armed := make(chan armedTimer, 8)

	s := NewScheduler(zerolog.Nop(), WithTime(clock), WithTimer(captureTimer(armed)))
	require.NoError(t, s.ScheduleDaily("email", []TimeOfDay{{Hour: 21}, {Hour: 13}}, func(context.Context) error {
		return nil
	}))

	s.Start()
	defer s.Stop()

	first := nextArmed(t, armed)
	assert.Equal(t, 7*time.Hour, first.delay)
	assert.Equal(t, time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC), s.NextRuns()["email"].UTC())
}

func TestScheduleDaily_Validation(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	assert.Error(t, s.ScheduleDaily("none", nil, func(context.Context) error { return nil }))
	assert.Error(t, s.ScheduleAt("bad-hour", 24, 0, func(context.Context) error { return nil }))
	assert.Error(t, s.ScheduleAt("bad-minute", 1, 60, func(context.Context) error { return nil }))

	require.NoError(t, s.ScheduleAt("job", 1, 0, func(context.Context) error { return nil }))
	assert.Error(t, s.ScheduleAt("job", 2, 0, func(context.Context) error { return nil }), "duplicate name")
}

func TestTask_RejectsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	task := NewTask("snapshot", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- task.Run(context.Background()) }()
	<-started

	assert.True(t, task.Running())
	assert.ErrorIs(t, task.Run(context.Background()), ErrTaskRunning)

	close(release)
	require.NoError(t, <-done)

	status := task.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 0, status.Failures)
}

func TestTask_RecordsFailures(t *testing.T) {
	boom := errors.New("upstream down")
	task := NewTask("email", func(context.Context) error { return boom })

	assert.ErrorIs(t, task.Run(context.Background()), boom)
	status := task.Status()
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, "upstream down", status.LastError)
}

func TestRegisterJobs(t *testing.T) {
	clock := &fakeTime{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	s := NewScheduler(zerolog.Nop(), WithTime(clock))

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterJobs(Jobs{
		Snapshot:     NewTask(JobExchangeSnapshot, noop),
		SnapshotTime: TimeOfDay{Hour: 7, Minute: 50},
		Email:        NewTask(JobSummaryEmail, noop),
		EmailHours:   []int{13, 21},
	}))

	s.Start()
	defer s.Stop()

	runs := s.NextRuns()
	assert.Equal(t, time.Date(2025, 3, 11, 7, 50, 0, 0, time.UTC), runs[JobExchangeSnapshot].UTC())
	assert.Equal(t, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), runs[JobSummaryEmail].UTC())
}

func TestRegister_SkipsWhileManualRunInFlight(t *testing.T) {
	clock := &fakeTime{now: time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)}
	armed := make(chan armedTimer, 8)
	logs := &syncBuffer{}
	s := NewScheduler(zerolog.New(logs), WithTime(clock), WithTimer(captureTimer(armed)))

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	task := NewTask(JobExchangeSnapshot, func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	})
	require.NoError(t, s.Register(task, TimeOfDay{Hour: 7, Minute: 50}))

	s.Start()
	defer s.Stop()
	first := nextArmed(t, armed)

	manual := make(chan error, 1)
	go func() { manual <- task.Run(context.Background()) }()
	<-started

	clock.Set(time.Date(2025, 3, 10, 7, 50, 0, 500, time.UTC))
	go first.fire()

	// the timer run is skipped and the job re-arms for tomorrow
	second := nextArmed(t, armed)
	assert.InDelta(t, float64(24*time.Hour), float64(second.delay), float64(time.Second))
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "skipping")
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, <-manual)
	assert.Equal(t, 1, task.Status().Runs)
}
