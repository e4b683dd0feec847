package summary

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-summarizer/internal/llm"
)

// stubChat scripts the two upstream calls.
type stubChat struct {
	narrativeText  string
	narrativeErr   error
	narrativeDelay time.Duration

	segmentText  string
	segmentErr   error
	segmentDelay time.Duration

	narrativeCalls atomic.Int64
	segmentCalls   atomic.Int64
}

func (s *stubChat) ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	s.segmentCalls.Add(1)
	if s.segmentDelay > 0 {
		select {
		case <-time.After(s.segmentDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.segmentErr != nil {
		return nil, s.segmentErr
	}
	return &llm.ChatResponse{
		Choices: []llm.Choice{
			{Message: llm.Message{Role: "assistant", Content: s.segmentText}},
		},
	}, nil
}

func (s *stubChat) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions, onProgress llm.ProgressFunc) (string, error) {
	s.narrativeCalls.Add(1)
	if s.narrativeDelay > 0 {
		select {
		case <-time.After(s.narrativeDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.narrativeErr != nil {
		return "", s.narrativeErr
	}
	if onProgress != nil {
		onProgress(s.narrativeText)
	}
	return s.narrativeText, nil
}

func TestOrchestratorRun(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeText: "```markdown\n# 视频概述\n\n这是一段总结。\n```",
		segmentText: `{"segments":[
			{"timestamp":"00:10","title":"开场","summary":"主题介绍"},
			{"timestamp":"01:00","title":"广告","summary":"赞助商口播"}
		]}`,
	}

	o := NewOrchestrator(stub, OrchestratorConfig{TargetLanguage: "Chinese"})

	var progress []string
	result, err := o.Run(context.Background(), Request{
		PlainTranscript: "line one\nline two",
		TimedTranscript: "[00:00] line one\n[00:05] line two",
		OnProgress: func(cumulative string) {
			progress = append(progress, cumulative)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "# 视频概述\n\n这是一段总结。", result.NarrativeMarkdown)

	require.Len(t, result.Segments, 1)
	assert.Equal(t, "开场", result.Segments[0].Title)

	require.Len(t, result.Ads, 1)
	assert.Equal(t, 60, result.Ads[0].StartSeconds)
	assert.Equal(t, 90, result.Ads[0].EndSeconds)

	assert.NotEmpty(t, progress)
	assert.EqualValues(t, 1, stub.narrativeCalls.Load())
	assert.EqualValues(t, 1, stub.segmentCalls.Load())
}

func TestOrchestratorNarrativeTimeout(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeDelay: time.Second,
		segmentText:    `{"segments":[]}`,
	}

	o := NewOrchestrator(stub, OrchestratorConfig{NarrativeTimeout: 50 * time.Millisecond})

	_, err := o.Run(context.Background(), Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrNarrativeTimeout), "got %v", err)
}

func TestOrchestratorUpstreamHTTPError(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeText: "# fine",
		segmentErr:    &llm.HTTPError{Status: http.StatusBadGateway, Snippet: "bad gateway"},
	}

	o := NewOrchestrator(stub, OrchestratorConfig{})

	_, err := o.Run(context.Background(), Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUpstreamHTTP), "got %v", err)

	var summaryErr *Error
	require.ErrorAs(t, err, &summaryErr)
	assert.Equal(t, http.StatusBadGateway, summaryErr.Context["status"])
	assert.Equal(t, "segment", summaryErr.Context["call"])
}

func TestOrchestratorFirstErrorCancelsSibling(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		segmentErr:     &llm.HTTPError{Status: http.StatusInternalServerError, Snippet: "boom"},
		narrativeDelay: 10 * time.Second,
	}

	o := NewOrchestrator(stub, OrchestratorConfig{})

	start := time.Now()
	_, err := o.Run(context.Background(), Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUpstreamHTTP), "got %v", err)
	// The segment failure must cancel the stalled narrative call.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOrchestratorEmptyNarrative(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeText: "```markdown\n```",
		segmentText:   `{"segments":[]}`,
	}

	o := NewOrchestrator(stub, OrchestratorConfig{})

	_, err := o.Run(context.Background(), Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrIncompleteSummary), "got %v", err)
}

func TestOrchestratorUnparsableSegmentsIsSoft(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeText: "# ok",
		segmentText:   "the model rambled instead of returning JSON",
	}

	o := NewOrchestrator(stub, OrchestratorConfig{})

	result, err := o.Run(context.Background(), Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.NoError(t, err)
	assert.Equal(t, "# ok", result.NarrativeMarkdown)
	assert.Empty(t, result.Segments)
	assert.Empty(t, result.Ads)
}

func TestOrchestratorCallerCancellation(t *testing.T) {
	t.Parallel()

	stub := &stubChat{
		narrativeDelay: 10 * time.Second,
		segmentDelay:   10 * time.Second,
	}

	o := NewOrchestrator(stub, OrchestratorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := o.Run(ctx, Request{PlainTranscript: "a", TimedTranscript: "[00:00] a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrTaskAborted), "got %v", err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClassifyUpstreamError(t *testing.T) {
	t.Parallel()

	err := classifyUpstreamError(&llm.HTTPError{Status: 503, Snippet: "overloaded"}, "narrative")
	assert.True(t, IsKind(err, ErrUpstreamHTTP))

	err = classifyUpstreamError(context.Canceled, "narrative")
	assert.True(t, IsKind(err, ErrTaskAborted))

	err = classifyUpstreamError(errors.New("connection refused"), "segment")
	assert.True(t, IsKind(err, ErrUnknown))
}
