package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTaskRunning is returned when a task is triggered while a previous run is in flight
var ErrTaskRunning = errors.New("task already running")

// TaskStatus is a point-in-time view of a task
type TaskStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// Task wraps an action so timer-driven and manual runs never overlap
type Task struct {
	name    string
	action  Action
	running atomic.Bool

	mu       sync.RWMutex
	runs     int
	failures int
	lastRun  time.Time
	lastErr  error
}

// NewTask creates a guarded task
func NewTask(name string, action Action) *Task {
	return &Task{name: name, action: action}
}

// Name returns the task name
func (t *Task) Name() string {
	return t.name
}

// Run executes the action unless another run is in flight
func (t *Task) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrTaskRunning
	}
	defer t.running.Store(false)

	err := t.action(ctx)

	t.mu.Lock()
	t.runs++
	t.lastRun = time.Now()
	t.lastErr = err
	if err != nil {
		t.failures++
	}
	t.mu.Unlock()

	return err
}

// Running reports whether a run is in flight
func (t *Task) Running() bool {
	return t.running.Load()
}

// Status returns the task status
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := TaskStatus{
		Name:     t.name,
		Running:  t.running.Load(),
		Runs:     t.runs,
		Failures: t.failures,
		LastRun:  t.lastRun,
	}
	if t.lastErr != nil {
		status.LastError = t.lastErr.Error()
	}
	return status
}
