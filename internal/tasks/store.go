package tasks

import (
	"context"
	"time"

	"github.com/MimeLyc/video-summarizer/internal/summary"
)

// Store persists task snapshots and processed marks across restarts.
type Store interface {
	LoadTasks(ctx context.Context) ([]Snapshot, error)
	UpsertTask(ctx context.Context, snap Snapshot) error
	DeleteTask(ctx context.Context, taskID string) error

	LoadProcessedMarks(ctx context.Context) (map[string]time.Time, error)
	UpsertProcessedMark(ctx context.Context, identity summary.VideoIdentity, at time.Time) error
	DeleteProcessedMark(ctx context.Context, identity summary.VideoIdentity) error
}
