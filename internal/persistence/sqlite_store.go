package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore backs the task registry and the summary cache with one sqlite
// database. Implements tasks.Store and summary.Cache.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename
// (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// --- tasks.Store ---

func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]tasks.Snapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, external_id, media_id, part_index, status, error, progress, created_at, updated_at
		 FROM tasks
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]tasks.Snapshot, 0)
	for rows.Next() {
		var snap tasks.Snapshot
		var kind, status string
		if err := rows.Scan(
			&snap.ID,
			&kind,
			&snap.Identity.ExternalID,
			&snap.Identity.MediaID,
			&snap.Identity.PartIndex,
			&status,
			&snap.Error,
			&snap.Progress,
			&snap.CreatedAt,
			&snap.UpdatedAt,
		); err != nil {
			return nil, err
		}
		snap.Kind = tasks.Kind(kind)
		snap.Status = tasks.Status(status)
		ret = append(ret, snap)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, snap tasks.Snapshot) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (id, kind, external_id, media_id, part_index, status, error, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			progress = excluded.progress,
			updated_at = excluded.updated_at`,
		snap.ID,
		string(snap.Kind),
		snap.Identity.ExternalID,
		snap.Identity.MediaID,
		snap.Identity.PartIndex,
		string(snap.Status),
		snap.Error,
		snap.Progress,
		snap.CreatedAt,
		snap.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	return err
}

func (s *SQLiteStore) LoadProcessedMarks(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT external_id, media_id, part_index, processed_at FROM processed_marks`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make(map[string]time.Time)
	for rows.Next() {
		var identity summary.VideoIdentity
		var at time.Time
		if err := rows.Scan(&identity.ExternalID, &identity.MediaID, &identity.PartIndex, &at); err != nil {
			return nil, err
		}
		ret[identity.Key()] = at
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertProcessedMark(ctx context.Context, identity summary.VideoIdentity, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processed_marks (external_id, media_id, part_index, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(external_id, media_id, part_index) DO UPDATE SET
			processed_at = excluded.processed_at`,
		identity.ExternalID,
		identity.MediaID,
		identity.PartIndex,
		at,
	)
	return err
}

func (s *SQLiteStore) DeleteProcessedMark(ctx context.Context, identity summary.VideoIdentity) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM processed_marks WHERE external_id = ? AND media_id = ? AND part_index = ?`,
		identity.ExternalID,
		identity.MediaID,
		identity.PartIndex,
	)
	return err
}

// --- summary.Cache ---

func (s *SQLiteStore) GetSummary(identity summary.VideoIdentity) (*summary.Result, error) {
	row := s.db.QueryRow(
		`SELECT narrative, segments, ads FROM summaries
		 WHERE external_id = ? AND media_id = ? AND part_index = ?`,
		identity.ExternalID,
		identity.MediaID,
		identity.PartIndex,
	)

	var narrative, segmentsJSON, adsJSON string
	if err := row.Scan(&narrative, &segmentsJSON, &adsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	result := &summary.Result{NarrativeMarkdown: narrative}
	if err := json.Unmarshal([]byte(segmentsJSON), &result.Segments); err != nil {
		return nil, fmt.Errorf("decode cached segments: %w", err)
	}
	if err := json.Unmarshal([]byte(adsJSON), &result.Ads); err != nil {
		return nil, fmt.Errorf("decode cached ads: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) SetSummary(identity summary.VideoIdentity, result *summary.Result) error {
	if result == nil {
		return fmt.Errorf("summary result is required")
	}

	segmentsJSON, err := json.Marshal(orEmptySegments(result.Segments))
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	adsJSON, err := json.Marshal(orEmptyAds(result.Ads))
	if err != nil {
		return fmt.Errorf("encode ads: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO summaries (external_id, media_id, part_index, narrative, segments, ads, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id, media_id, part_index) DO UPDATE SET
			narrative = excluded.narrative,
			segments = excluded.segments,
			ads = excluded.ads,
			updated_at = excluded.updated_at`,
		identity.ExternalID,
		identity.MediaID,
		identity.PartIndex,
		result.NarrativeMarkdown,
		string(segmentsJSON),
		string(adsJSON),
		now,
		now,
	)
	return err
}

func (s *SQLiteStore) DeleteSummary(identity summary.VideoIdentity) error {
	_, err := s.db.Exec(
		`DELETE FROM summaries WHERE external_id = ? AND media_id = ? AND part_index = ?`,
		identity.ExternalID,
		identity.MediaID,
		identity.PartIndex,
	)
	return err
}

func orEmptySegments(segments []summary.Segment) []summary.Segment {
	if segments == nil {
		return []summary.Segment{}
	}
	return segments
}

func orEmptyAds(ads []summary.AdSegment) []summary.AdSegment {
	if ads == nil {
		return []summary.AdSegment{}
	}
	return ads
}
