package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	streamDataPrefix   = "data:"
	streamDoneSentinel = "[DONE]"

	// Generous line buffer; a single delta frame can carry a long content run.
	streamMaxLineBytes = 1 << 20
)

// ProgressFunc receives the cumulative accumulated text after every delta,
// letting a consumer render the growing text without tracking partial state.
type ProgressFunc func(cumulative string)

// StreamChatCompletion issues a streamed chat completion request and
// aggregates the SSE frames into one string.
//
// The response body is a sequence of "data: <json>" lines terminated by a
// literal "data: [DONE]" sentinel. Malformed frames are skipped; one bad
// frame does not abort the stream. The body is always closed, on both normal
// completion and error.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions, onProgress ProgressFunc) (string, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    "system",
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
		Stream:      true,
	}

	resp, err := c.do(ctx, c.streamClient, request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
		return "", &HTTPError{Status: resp.StatusCode, Snippet: snippet(body)}
	}

	var acc strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), streamMaxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, streamDataPrefix))
		if payload == streamDoneSentinel {
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Bad frame, keep reading.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		for _, choice := range chunk.Choices {
			acc.WriteString(choice.Delta.Content)
		}
		if onProgress != nil {
			onProgress(acc.String())
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return acc.String(), ctx.Err()
		}
		return acc.String(), fmt.Errorf("failed to read stream: %w", err)
	}
	if ctx.Err() != nil {
		return acc.String(), ctx.Err()
	}

	return acc.String(), nil
}
