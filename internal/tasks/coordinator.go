package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/pkg/log"
)

const defaultMaxRetained = 500

// Coordinator owns the live-task registry. For a given (VideoIdentity, kind)
// at most one live task exists; the check for an existing task and the
// creation of a new one happen in a single critical section.
type Coordinator struct {
	store Store

	mu        sync.Mutex
	live      map[string]*Task // keyed by identity key + "/" + kind
	retained  map[string]*Task // keyed by task ID, terminal tasks kept for listing
	processed map[string]time.Time

	maxRetained int
	wg          sync.WaitGroup
}

// NewCoordinator creates a coordinator and hydrates prior state from the
// store. Tasks persisted as pending or running did not survive the restart
// and are marked failed.
func NewCoordinator(store Store) *Coordinator {
	c := &Coordinator{
		store:       store,
		live:        make(map[string]*Task),
		retained:    make(map[string]*Task),
		processed:   make(map[string]time.Time),
		maxRetained: defaultMaxRetained,
	}
	c.hydrateFromStore(context.Background())
	return c
}

func liveKey(identity summary.VideoIdentity, kind Kind) string {
	return identity.Key() + "/" + string(kind)
}

// CreateTask atomically checks for a live duplicate and creates a new task.
// Returns nil when a live task for the same identity and kind already exists
// (the caller must attach to it via Live), or when a non-manual request hits
// an identity already marked processed.
func (c *Coordinator) CreateTask(kind Kind, identity summary.VideoIdentity, work WorkFunc, isManual bool) *Task {
	key := liveKey(identity, kind)

	c.mu.Lock()
	if _, exists := c.live[key]; exists {
		c.mu.Unlock()
		return nil
	}
	if !isManual {
		if _, done := c.processed[identity.Key()]; done {
			c.mu.Unlock()
			log.Debug("Suppressed automatic %s run for already-processed %s", kind, identity.Key())
			return nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := newTask(uuid.NewString(), kind, identity, cancel)
	c.live[key] = task
	c.retained[task.ID()] = task
	c.mu.Unlock()

	c.persist(task)

	c.wg.Add(1)
	go c.run(ctx, task, work)

	return task
}

// Live returns the live task for the identity and kind, if any.
func (c *Coordinator) Live(kind Kind, identity summary.VideoIdentity) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.live[liveKey(identity, kind)]
	return task, ok
}

// Get returns any retained task by ID.
func (c *Coordinator) Get(taskID string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.retained[taskID]
	return task, ok
}

// List returns snapshots of all retained tasks, newest first.
func (c *Coordinator) List() []Snapshot {
	c.mu.Lock()
	tasks := make([]*Task, 0, len(c.retained))
	for _, task := range c.retained {
		tasks = append(tasks, task)
	}
	c.mu.Unlock()

	ret := make([]Snapshot, 0, len(tasks))
	for _, task := range tasks {
		ret = append(ret, task.Snapshot())
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

// CancelTask fires the cancel token of a retained task. Returns false for an
// unknown ID.
func (c *Coordinator) CancelTask(taskID string) bool {
	task, ok := c.Get(taskID)
	if !ok {
		return false
	}
	task.Cancel()
	return true
}

// IsProcessed reports whether an identity has a processed mark, used to
// suppress redundant automatic runs.
func (c *Coordinator) IsProcessed(identity summary.VideoIdentity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.processed[identity.Key()]
	return ok
}

// ClearProcessed removes the processed mark so the identity can be
// reprocessed.
func (c *Coordinator) ClearProcessed(identity summary.VideoIdentity) {
	c.mu.Lock()
	delete(c.processed, identity.Key())
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteProcessedMark(context.Background(), identity); err != nil {
			log.Error("Failed to clear processed mark for %s: %v", identity.Key(), err)
		}
	}
}

// Stop waits for all in-flight task goroutines to settle.
func (c *Coordinator) Stop() {
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, task *Task, work WorkFunc) {
	defer c.wg.Done()

	task.markRunning()
	c.persist(task)

	result, err := work(ctx, task)

	var status Status
	switch {
	case err == nil && result != nil:
		status = StatusCompleted
	case errors.Is(err, context.Canceled) || summary.IsKind(err, summary.ErrTaskAborted):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	default:
		// Work returned neither a result nor an error.
		status = StatusFailed
		err = summary.NewError(summary.ErrTaskCancelled, "task finished without result or error")
	}

	// Release the live slot before signalling completion so a waiter that
	// immediately retries creates a fresh task.
	c.mu.Lock()
	if current, ok := c.live[liveKey(task.Identity(), task.Kind())]; ok && current == task {
		delete(c.live, liveKey(task.Identity(), task.Kind()))
	}
	if status == StatusCompleted {
		c.processed[task.Identity().Key()] = time.Now()
	}
	pruned := c.pruneRetainedLocked()
	c.mu.Unlock()

	task.finish(status, result, err)
	c.persist(task)

	if status == StatusCompleted && c.store != nil {
		if perr := c.store.UpsertProcessedMark(context.Background(), task.Identity(), time.Now()); perr != nil {
			log.Error("Failed to persist processed mark for %s: %v", task.Identity().Key(), perr)
		}
	}
	c.deleteFromStore(pruned)

	if err != nil {
		log.Warn("Task %s (%s) terminated %s: %v", task.ID(), task.Identity().Key(), status, err)
	} else {
		log.Info("Task %s (%s) completed", task.ID(), task.Identity().Key())
	}
}

// pruneRetainedLocked evicts the oldest terminal tasks above the retention
// cap. Caller holds the lock.
func (c *Coordinator) pruneRetainedLocked() []string {
	if c.maxRetained <= 0 || len(c.retained) <= c.maxRetained {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(c.retained))
	for id, task := range c.retained {
		snap := task.Snapshot()
		if !snap.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: snap.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(c.retained) - c.maxRetained
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(c.retained, terminal[i].id)
		pruned = append(pruned, terminal[i].id)
	}
	return pruned
}

func (c *Coordinator) persist(task *Task) {
	if c.store == nil {
		return
	}
	if err := c.store.UpsertTask(context.Background(), task.Snapshot()); err != nil {
		log.Error("Failed to persist task %s: %v", task.ID(), err)
	}
}

func (c *Coordinator) deleteFromStore(ids []string) {
	if c.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := c.store.DeleteTask(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned task %s from store: %v", id, err)
		}
	}
}

func (c *Coordinator) hydrateFromStore(ctx context.Context) {
	if c.store == nil {
		return
	}

	marks, err := c.store.LoadProcessedMarks(ctx)
	if err != nil {
		log.Error("Failed to load processed marks from store: %v", err)
	} else {
		c.processed = marks
	}

	snaps, err := c.store.LoadTasks(ctx)
	if err != nil {
		log.Error("Failed to load tasks from store: %v", err)
		return
	}

	for _, snap := range snaps {
		if snap.ID == "" {
			continue
		}
		if !snap.Status.Terminal() {
			// The process restarted under this task; it cannot resume.
			snap.Status = StatusFailed
			snap.Error = "interrupted by restart"
			snap.UpdatedAt = time.Now()
			if err := c.store.UpsertTask(ctx, snap); err != nil {
				log.Error("Failed to persist interrupted task %s: %v", snap.ID, err)
			}
		}
		task := newTask(snap.ID, snap.Kind, snap.Identity, func() {})
		task.createdAt = snap.CreatedAt
		task.updatedAt = snap.UpdatedAt
		task.progress = snap.Progress
		var terr error
		if snap.Error != "" {
			terr = errors.New(snap.Error)
		}
		task.finish(snap.Status, nil, terr)
		c.retained[task.ID()] = task
	}
}
