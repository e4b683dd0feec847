package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "summarizer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteStore("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db path is required")
}

func TestMigrationVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 2, migrationVersion("002_processed_marks.sql"))
	assert.Equal(t, 0, migrationVersion("README.md"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summarizer.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not reapply migrations.
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestTaskRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	snap := tasks.Snapshot{
		ID:        "task-1",
		Kind:      tasks.KindAISummary,
		Identity:  summary.VideoIdentity{ExternalID: "BV1", MediaID: 7, PartIndex: 2},
		Status:    tasks.StatusRunning,
		Progress:  "streaming...",
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, store.UpsertTask(ctx, snap))

	loaded, err := store.LoadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, snap.ID, loaded[0].ID)
	assert.Equal(t, tasks.StatusRunning, loaded[0].Status)
	assert.Equal(t, snap.Identity, loaded[0].Identity)
	assert.Equal(t, "streaming...", loaded[0].Progress)

	// Upsert updates in place.
	snap.Status = tasks.StatusFailed
	snap.Error = "upstream exploded"
	require.NoError(t, store.UpsertTask(ctx, snap))

	loaded, err = store.LoadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, tasks.StatusFailed, loaded[0].Status)
	assert.Equal(t, "upstream exploded", loaded[0].Error)

	require.NoError(t, store.DeleteTask(ctx, snap.ID))
	loaded, err = store.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestProcessedMarkRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	identity := summary.VideoIdentity{ExternalID: "BV2", MediaID: 3, PartIndex: 1}

	require.NoError(t, store.UpsertProcessedMark(ctx, identity, time.Now()))

	marks, err := store.LoadProcessedMarks(ctx)
	require.NoError(t, err)
	assert.Contains(t, marks, identity.Key())

	require.NoError(t, store.DeleteProcessedMark(ctx, identity))
	marks, err = store.LoadProcessedMarks(ctx)
	require.NoError(t, err)
	assert.NotContains(t, marks, identity.Key())
}

func TestSummaryCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	identity := summary.VideoIdentity{ExternalID: "BV3", MediaID: 9, PartIndex: 1}

	// Miss returns nil, nil.
	cached, err := store.GetSummary(identity)
	require.NoError(t, err)
	assert.Nil(t, cached)

	result := &summary.Result{
		NarrativeMarkdown: "# 概述\n\n内容总结。",
		Segments: []summary.Segment{
			{TimestampSeconds: 10, Title: "开场", Summary: "主题介绍"},
		},
		Ads: []summary.AdSegment{
			{StartSeconds: 60, EndSeconds: 90, Product: "VPN", Description: "口播"},
		},
	}
	require.NoError(t, store.SetSummary(identity, result))

	cached, err = store.GetSummary(identity)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, result.NarrativeMarkdown, cached.NarrativeMarkdown)
	assert.Equal(t, result.Segments, cached.Segments)
	assert.Equal(t, result.Ads, cached.Ads)

	// Overwrite replaces the cached entry.
	result.NarrativeMarkdown = "# 更新"
	require.NoError(t, store.SetSummary(identity, result))
	cached, err = store.GetSummary(identity)
	require.NoError(t, err)
	assert.Equal(t, "# 更新", cached.NarrativeMarkdown)

	require.NoError(t, store.DeleteSummary(identity))
	cached, err = store.GetSummary(identity)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestSetSummaryNilResult(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.SetSummary(summary.VideoIdentity{ExternalID: "x"}, nil)
	require.Error(t, err)
}

func TestSummaryCacheEmptySlices(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	identity := summary.VideoIdentity{ExternalID: "BV4", MediaID: 1, PartIndex: 1}

	require.NoError(t, store.SetSummary(identity, &summary.Result{NarrativeMarkdown: "# only narrative"}))

	cached, err := store.GetSummary(identity)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.NotNil(t, cached.Segments)
	assert.Empty(t, cached.Segments)
	assert.NotNil(t, cached.Ads)
	assert.Empty(t, cached.Ads)
}
