package service

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
	"github.com/MimeLyc/video-summarizer/internal/transcript"
	"github.com/MimeLyc/video-summarizer/pkg/file"
	"github.com/MimeLyc/video-summarizer/pkg/icron"
	"github.com/MimeLyc/video-summarizer/pkg/log"
)

// transcriptNamePattern matches "<externalID>-<mediaID>-p<part>" basenames.
var transcriptNamePattern = regexp.MustCompile(`^(.+)-(\d+)-p(\d+)$`)

// Scheduler drives automatic summarization: a cron-scheduled sweep over the
// watch directories, picking up transcripts modified since the previous
// trigger. Runs overlap-free via singleflight.
type Scheduler struct {
	svc         *Service
	coordinator *tasks.Coordinator
	cron        *cron.Cron
	cronExpr    string
	watchDirs   []string

	// mu guards lastTriggerTime; successive sweeps run on different cron
	// goroutines.
	mu              sync.Mutex
	lastTriggerTime time.Time
	group           singleflight.Group
}

func NewScheduler(svc *Service, coordinator *tasks.Coordinator, c *cron.Cron, cronExpr string, watchDirs []string) *Scheduler {
	return &Scheduler{
		svc:         svc,
		coordinator: coordinator,
		cron:        c,
		cronExpr:    cronExpr,
		watchDirs:   watchDirs,
	}
}

// Schedule registers the sweep on the cron instance. The caller starts and
// stops the cron.
func (s *Scheduler) Schedule(ctx context.Context) error {
	if len(s.watchDirs) == 0 {
		log.Info("No watch directories configured, automatic summarization disabled")
		return nil
	}

	runFunc := func() {
		_, _, _ = s.group.Do("sweep", func() (any, error) {
			s.sweep(ctx)
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.cronExpr, runFunc)
	return err
}

func (s *Scheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	startTime, err := s.startTimeLocked()
	if err != nil {
		s.mu.Unlock()
		log.Error("Failed to resolve sweep start time: %v", err)
		return
	}
	s.lastTriggerTime = time.Now()
	s.mu.Unlock()

	for _, dir := range s.watchDirs {
		log.Info("Sweeping %s for transcripts modified after %v", dir, startTime)

		recent, err := file.FindRecentAfter(dir, startTime)
		if err != nil {
			log.Error("Failed to scan %s: %v", dir, err)
			continue
		}

		for _, path := range file.FilterByExt(recent, ".srt") {
			s.processFile(ctx, path)
		}
	}
}

func (s *Scheduler) processFile(ctx context.Context, path string) {
	identity := IdentityFromPath(path)

	if s.coordinator.IsProcessed(identity) {
		log.Debug("Skipping already-processed transcript %s", path)
		return
	}

	parsed, err := transcript.NewReader(path).Read()
	if err != nil {
		log.Error("Failed to read transcript %s: %v", path, err)
		return
	}
	if len(parsed.Lines) == 0 {
		log.Warn("Transcript %s has no lines, skipping", path)
		return
	}

	if _, err := s.svc.Summarize(ctx, identity, parsed.Lines, Options{Manual: false}); err != nil {
		log.Error("Automatic summarization of %s failed: %v", path, err)
		return
	}
	log.Info("Automatic summarization of %s finished", path)
}

// IdentityFromPath derives a VideoIdentity from a transcript filename.
// "intro-guide-12345-p2.srt" maps to {externalId: "intro-guide",
// mediaId: 12345, partIndex: 2}; names without the suffix become a bare
// external ID.
func IdentityFromPath(path string) summary.VideoIdentity {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	m := transcriptNamePattern.FindStringSubmatch(base)
	if m == nil {
		return summary.VideoIdentity{ExternalID: base}
	}

	mediaID, _ := strconv.ParseInt(m[2], 10, 64)
	partIndex, _ := strconv.Atoi(m[3])
	return summary.VideoIdentity{
		ExternalID: m[1],
		MediaID:    mediaID,
		PartIndex:  partIndex,
	}
}

// startTimeLocked resolves the modified-after cutoff for a sweep. Caller
// holds mu.
func (s *Scheduler) startTimeLocked() (time.Time, error) {
	if s.lastTriggerTime.IsZero() {
		info, err := icron.GetTriggerInfo(s.cronExpr, time.Now())
		if err != nil {
			return time.Time{}, err
		}
		if info.Last.IsZero() {
			return time.Now().Add(-24 * time.Hour), nil
		}
		return info.Last, nil
	}
	return s.lastTriggerTime, nil
}
