package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/video-summarizer/internal/summary"
)

// Task is one deduplicated unit of asynchronous work keyed by VideoIdentity
// and kind. It terminates into Completed, Failed or Cancelled exactly once;
// Done() is closed on the terminal transition.
type Task struct {
	id       string
	kind     Kind
	identity summary.VideoIdentity

	mu        sync.RWMutex
	status    Status
	result    *summary.Result
	err       error
	progress  string
	createdAt time.Time
	updatedAt time.Time

	done   chan struct{}
	cancel context.CancelFunc
}

func newTask(id string, kind Kind, identity summary.VideoIdentity, cancel context.CancelFunc) *Task {
	now := time.Now()
	return &Task{
		id:        id,
		kind:      kind,
		identity:  identity,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

func (t *Task) ID() string                      { return t.id }
func (t *Task) Kind() Kind                      { return t.kind }
func (t *Task) Identity() summary.VideoIdentity { return t.identity }

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Task) Result() *summary.Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Task) Progress() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// SetProgress records the cumulative in-flight narrative text.
func (t *Task) SetProgress(cumulative string) {
	t.mu.Lock()
	t.progress = cumulative
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

// Cancel fires the task's cancel token. In-flight upstream calls abort and
// the task terminates as Cancelled, never silently Completed.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		ID:        t.id,
		Kind:      t.kind,
		Identity:  t.identity,
		Status:    t.status,
		Progress:  t.progress,
		CreatedAt: t.createdAt,
		UpdatedAt: t.updatedAt,
	}
	if t.err != nil {
		snap.Error = t.err.Error()
	}
	return snap
}

func (t *Task) markRunning() {
	t.mu.Lock()
	t.status = StatusRunning
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

// finish applies the terminal state. Returns false when the task already
// terminated; the terminal transition happens exactly once.
func (t *Task) finish(status Status, result *summary.Result, err error) bool {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.status = status
	t.result = result
	t.err = err
	t.updatedAt = time.Now()
	t.mu.Unlock()

	close(t.done)
	return true
}
