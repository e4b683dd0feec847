package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/video-summarizer/internal/config"
	"github.com/MimeLyc/video-summarizer/internal/llm"
	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
	"github.com/MimeLyc/video-summarizer/internal/transcript"
	"github.com/MimeLyc/video-summarizer/pkg/log"
)

// Selection is the configuration slice one summarization run needs.
type Selection struct {
	LLM     llm.Config
	Summary config.SummaryConfig
}

// ConfigProvider supplies the currently selected configuration. The second
// return value is false when no configuration has been selected at all.
type ConfigProvider interface {
	Current() (Selection, bool)
}

// Provider is the default ConfigProvider, backed by the process config and
// updated in place when runtime settings change.
type Provider struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Current() (Selection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg == nil {
		return Selection{}, false
	}
	return Selection{
		LLM: llm.Config{
			APIKey:      p.cfg.LLM.APIKey,
			APIURL:      p.cfg.LLM.APIURL,
			Model:       p.cfg.LLM.Model,
			MaxTokens:   p.cfg.LLM.MaxTokens,
			Temperature: p.cfg.LLM.Temperature,
			Timeout:     p.cfg.LLM.Timeout,
			SiteURL:     p.cfg.LLM.SiteURL,
			AppName:     p.cfg.LLM.AppName,
		},
		Summary: p.cfg.Summary,
	}, true
}

// Apply overlays validated runtime settings onto the live config.
func (p *Provider) Apply(settings config.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	config.WithRuntimeSettings(settings)(p.cfg)
	return nil
}

// Options controls one Summarize invocation.
type Options struct {
	// ForceRegenerate bypasses the cache and invalidates prior state for
	// the identity before creating a new task.
	ForceRegenerate bool
	// Manual marks a user-initiated run; automatic runs are suppressed for
	// identities already marked processed.
	Manual bool
}

// Service is the summarization façade: it validates preconditions, consults
// the cache and the task coordinator, and normalizes every failure into the
// typed error taxonomy. The call is synchronous from the caller's point of
// view; internally it blocks on the task's completion channel.
type Service struct {
	provider    ConfigProvider
	cache       summary.Cache
	coordinator *tasks.Coordinator
}

func New(provider ConfigProvider, cache summary.Cache, coordinator *tasks.Coordinator) *Service {
	return &Service{
		provider:    provider,
		cache:       cache,
		coordinator: coordinator,
	}
}

// Summarize produces (or returns the cached) summary for one video identity.
func (s *Service) Summarize(ctx context.Context, identity summary.VideoIdentity, lines []transcript.Line, opts Options) (*summary.Result, error) {
	selection, err := s.validatedSelection()
	if err != nil {
		return nil, err
	}

	if identity.IsZero() {
		return nil, summary.NewError(summary.ErrValidation, "video identity is required")
	}
	if len(lines) == 0 {
		return nil, summary.NewError(summary.ErrValidation, "transcript is empty")
	}

	if !opts.ForceRegenerate {
		if cached, cerr := s.cache.GetSummary(identity); cerr != nil {
			log.Warn("Cache read failed for %s: %v", identity.Key(), cerr)
		} else if cached != nil {
			log.Debug("Cache hit for %s", identity.Key())
			return cached, nil
		}
	} else {
		// Invalidate prior state so a fresh generation cannot race a stale
		// cache slot or a stale processed mark.
		if derr := s.cache.DeleteSummary(identity); derr != nil {
			log.Warn("Cache invalidation failed for %s: %v", identity.Key(), derr)
		}
		s.coordinator.ClearProcessed(identity)
	}

	work, err := s.buildWork(selection, identity, lines)
	if err != nil {
		return nil, err
	}

	task := s.coordinator.CreateTask(tasks.KindAISummary, identity, work, opts.Manual)
	if task == nil {
		// A live duplicate exists; attach to it instead of issuing new
		// upstream calls.
		existing, ok := s.coordinator.Live(tasks.KindAISummary, identity)
		if !ok {
			if cached, cerr := s.cache.GetSummary(identity); cerr == nil && cached != nil {
				return cached, nil
			}
			return nil, summary.NewError(summary.ErrTaskCancelled, "task disappeared without result or error")
		}
		task = existing
	}

	return s.await(ctx, task)
}

// validatedSelection checks every precondition, each with a distinct error
// kind and message.
func (s *Service) validatedSelection() (Selection, error) {
	selection, ok := s.provider.Current()
	if !ok {
		return Selection{}, summary.NewError(summary.ErrConfigMissing, "no model configuration selected")
	}
	if strings.TrimSpace(selection.LLM.APIKey) == "" {
		return Selection{}, summary.NewError(summary.ErrConfigInvalid, "API key is empty")
	}
	lowered := strings.ToLower(selection.LLM.APIURL)
	if !strings.HasPrefix(lowered, "http://") && !strings.HasPrefix(lowered, "https://") {
		return Selection{}, summary.NewError(summary.ErrConfigInvalid, "API URL must start with http:// or https://").
			WithContext("url", selection.LLM.APIURL)
	}
	if strings.TrimSpace(selection.LLM.Model) == "" {
		return Selection{}, summary.NewError(summary.ErrConfigInvalid, "model name is empty")
	}
	return selection, nil
}

// buildWork derives the two request bodies once and wraps the orchestrator
// run. The work writes the cache exactly once, on success, before the task
// transitions to Completed; failed tasks never touch the cache.
func (s *Service) buildWork(selection Selection, identity summary.VideoIdentity, lines []transcript.Line) (tasks.WorkFunc, error) {
	plain := transcript.PlainText(lines)
	timed := transcript.TimedText(lines)
	transcriptLanguage := transcript.DetectLanguage(lines)

	client, err := llm.NewClient(&selection.LLM)
	if err != nil {
		return nil, summary.WrapError(summary.ErrConfigInvalid, "invalid model configuration", err)
	}

	orchestrator := summary.NewOrchestrator(client, summary.OrchestratorConfig{
		TargetLanguage:    selection.Summary.TargetLanguage.String(),
		NarrativeTimeout:  time.Duration(selection.Summary.NarrativeTimeoutSeconds) * time.Second,
		AdDurationSeconds: selection.Summary.AdDurationSeconds,
		NarrativePrompt:   selection.Summary.NarrativePrompt,
		SegmentPrompt:     selection.Summary.SegmentPrompt,
	})

	return func(ctx context.Context, task *tasks.Task) (*summary.Result, error) {
		result, err := orchestrator.Run(ctx, summary.Request{
			PlainTranscript:    plain,
			TimedTranscript:    timed,
			TranscriptLanguage: transcriptLanguage,
			OnProgress:         task.SetProgress,
		})
		if err != nil {
			return nil, err
		}

		if cerr := s.cache.SetSummary(identity, result); cerr != nil {
			// The generation itself succeeded; a failed cache write only
			// costs a regeneration later.
			log.Warn("Cache write failed for %s: %v", identity.Key(), cerr)
		}
		return result, nil
	}, nil
}

// await blocks until the task reaches a terminal state, then maps that state
// onto the caller-facing result or error.
func (s *Service) await(ctx context.Context, task *tasks.Task) (*summary.Result, error) {
	select {
	case <-ctx.Done():
		return nil, summary.WrapError(summary.ErrTaskAborted, "wait for summary interrupted", ctx.Err())
	case <-task.Done():
	}

	switch task.Status() {
	case tasks.StatusCompleted:
		result := task.Result()
		if result == nil {
			return nil, summary.NewError(summary.ErrTaskCancelled, "task disappeared without result or error")
		}
		return result, nil
	case tasks.StatusCancelled:
		return nil, summary.NewError(summary.ErrTaskAborted, "summarization was cancelled")
	case tasks.StatusFailed:
		if err := task.Err(); err != nil {
			return nil, err
		}
		return nil, summary.NewError(summary.ErrTaskCancelled, "task disappeared without result or error")
	default:
		return nil, summary.NewError(summary.ErrUnknown, "task finished in unexpected state "+string(task.Status()))
	}
}
