package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/video-summarizer/internal/llm"
	"github.com/MimeLyc/video-summarizer/pkg/log"
)

// DefaultNarrativeTimeout bounds the streamed narrative call.
const DefaultNarrativeTimeout = 90 * time.Second

// ChatClient is the slice of the LLM client the orchestrator needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
	StreamChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions, onProgress llm.ProgressFunc) (string, error)
}

// Request is one orchestrated summarization run.
//
// PlainTranscript is the newline-joined transcript without timestamps, fed to
// the narrative call; TimedTranscript carries one "[MM:SS] content" line per
// subtitle line, fed to the segment call.
type Request struct {
	PlainTranscript    string
	TimedTranscript    string
	TranscriptLanguage string

	// OnProgress receives the cumulative narrative text while it streams.
	OnProgress func(cumulative string)
}

// OrchestratorConfig tunes one orchestrator instance.
type OrchestratorConfig struct {
	TargetLanguage    string
	NarrativeTimeout  time.Duration
	AdDurationSeconds int
	NarrativePrompt   string
	SegmentPrompt     string
}

// Orchestrator issues the two upstream calls concurrently and combines them
// with first-structural-error-wins semantics: both requests share a cancel
// scope, so the first hard failure aborts the sibling call.
type Orchestrator struct {
	client ChatClient
	cfg    OrchestratorConfig
}

func NewOrchestrator(client ChatClient, cfg OrchestratorConfig) *Orchestrator {
	if cfg.NarrativeTimeout <= 0 {
		cfg.NarrativeTimeout = DefaultNarrativeTimeout
	}
	if cfg.AdDurationSeconds <= 0 {
		cfg.AdDurationSeconds = DefaultAdDurationSeconds
	}
	return &Orchestrator{client: client, cfg: cfg}
}

// Run executes the narrative and segment calls and merges the results.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	promptInput := PromptInput{
		TargetLanguage:     o.cfg.TargetLanguage,
		TranscriptLanguage: req.TranscriptLanguage,
		NarrativeOverride:  o.cfg.NarrativePrompt,
		SegmentOverride:    o.cfg.SegmentPrompt,
	}

	var (
		narrative string
		segments  []Segment
		ads       []AdSegment
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := o.runNarrative(gctx, promptInput, req)
		if err != nil {
			return err
		}
		narrative = text
		return nil
	})

	g.Go(func() error {
		segs, found, err := o.runSegments(gctx, promptInput, req)
		if err != nil {
			return err
		}
		segments, ads = segs, found
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		NarrativeMarkdown: narrative,
		Segments:          segments,
		Ads:               ads,
	}, nil
}

func (o *Orchestrator) runNarrative(ctx context.Context, in PromptInput, req Request) (string, error) {
	nctx, cancel := context.WithTimeout(ctx, o.cfg.NarrativeTimeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "user", Content: BuildNarrativePrompt(in, req.PlainTranscript)},
	}

	raw, err := o.client.StreamChatCompletion(nctx, messages, nil, req.OnProgress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", WrapError(ErrNarrativeTimeout,
				fmt.Sprintf("narrative summary timed out after %s", o.cfg.NarrativeTimeout), err)
		}
		return "", classifyUpstreamError(err, "narrative")
	}

	cleaned := CleanNarrative(raw)
	if cleaned == "" {
		return "", NewError(ErrIncompleteSummary, "narrative text missing after cleanup")
	}
	return cleaned, nil
}

func (o *Orchestrator) runSegments(ctx context.Context, in PromptInput, req Request) ([]Segment, []AdSegment, error) {
	messages := []llm.Message{
		{Role: "user", Content: BuildSegmentPrompt(in, req.TimedTranscript)},
	}

	resp, err := o.client.ChatCompletion(ctx, messages, nil)
	if err != nil {
		return nil, nil, classifyUpstreamError(err, "segment")
	}

	if len(resp.Choices) == 0 {
		log.Warn("Segment response carried no choices, continuing without segments")
		return []Segment{}, []AdSegment{}, nil
	}

	segments, ads := ParseSegmentsAndAds(resp.Choices[0].Message.Content, o.cfg.AdDurationSeconds)
	if len(segments) == 0 && len(ads) == 0 {
		// Soft condition: the model may legitimately produce no
		// distinguishable segments.
		log.Warn("No segments recovered from segment response")
	}
	return segments, ads, nil
}

// classifyUpstreamError maps transport-level failures into the typed
// taxonomy, keeping the most specific message available.
func classifyUpstreamError(err error, call string) error {
	var httpErr *llm.HTTPError
	if errors.As(err, &httpErr) {
		return WrapError(ErrUpstreamHTTP, httpErr.Error(), err).
			WithContext("call", call).
			WithContext("status", httpErr.Status)
	}
	if errors.Is(err, context.Canceled) {
		return WrapError(ErrTaskAborted, fmt.Sprintf("%s call aborted", call), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrTaskAborted, fmt.Sprintf("%s call aborted by deadline", call), err)
	}
	return WrapError(ErrUnknown, fmt.Sprintf("%s call failed: %v", call, err), err)
}
