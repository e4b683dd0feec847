package tasks

import (
	"context"
	"time"

	"github.com/MimeLyc/video-summarizer/internal/summary"
)

// Kind is the logical kind of work a task performs.
type Kind string

const KindAISummary Kind = "ai_summary"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// WorkFunc is the unit of work a task runs. The context is cancelled when the
// task's cancel token fires; the task handle is available for progress
// updates.
type WorkFunc func(ctx context.Context, task *Task) (*summary.Result, error)

// Snapshot is the persistable, JSON-serializable view of a task.
type Snapshot struct {
	ID        string                `json:"id"`
	Kind      Kind                  `json:"kind"`
	Identity  summary.VideoIdentity `json:"identity"`
	Status    Status                `json:"status"`
	Error     string                `json:"error,omitempty"`
	Progress  string                `json:"progress,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
