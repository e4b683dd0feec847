package summary

import (
	"fmt"
	"strings"
)

// PromptInput carries the knobs the prompt builders need.
type PromptInput struct {
	TargetLanguage     string
	TranscriptLanguage string

	// Optional full overrides; when set they replace the built-in prompt
	// text and the transcript is appended after a blank line.
	NarrativeOverride string
	SegmentOverride   string
}

// BuildNarrativePrompt builds the prompt for the streamed narrative call:
// a markdown synopsis in the target language, starting with a short overview.
func BuildNarrativePrompt(in PromptInput, transcript string) string {
	if in.NarrativeOverride != "" {
		return in.NarrativeOverride + "\n\n" + transcript
	}

	var prompt strings.Builder

	prompt.WriteString("You are a professional video content editor. Summarize the following video transcript.\n\n")

	prompt.WriteString("=== REQUIREMENTS ===\n")
	prompt.WriteString(fmt.Sprintf("1. Write the summary in %s.\n", targetLanguageOrDefault(in)))
	prompt.WriteString("2. Use markdown formatting.\n")
	prompt.WriteString("3. Start with a short synopsis of the whole video, then cover the main points.\n")
	prompt.WriteString("4. Do not invent content that is not in the transcript.\n")
	if in.TranscriptLanguage != "" {
		prompt.WriteString(fmt.Sprintf("5. The transcript is in %s.\n", in.TranscriptLanguage))
	}

	prompt.WriteString("\n=== TRANSCRIPT ===\n")
	prompt.WriteString(transcript)

	return prompt.String()
}

// BuildSegmentPrompt builds the prompt for the non-streamed segment call:
// one JSON object with a segments array, timestamped titles and short
// summaries, advertisement spans marked with the literal title "广告".
func BuildSegmentPrompt(in PromptInput, transcript string) string {
	if in.SegmentOverride != "" {
		return in.SegmentOverride + "\n\n" + transcript
	}

	var prompt strings.Builder

	prompt.WriteString("You are a professional video content editor. Split the following timestamped video transcript into highlight segments.\n\n")

	prompt.WriteString("=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY a single JSON object, no explanations:\n")
	prompt.WriteString("{\"segments\":[{\"timestamp\":\"MM:SS\",\"title\":\"short title\",\"summary\":\"30-50 character summary\"}]}\n\n")

	prompt.WriteString("=== REQUIREMENTS ===\n")
	prompt.WriteString(fmt.Sprintf("1. Write titles and summaries in %s.\n", targetLanguageOrDefault(in)))
	prompt.WriteString("2. Each timestamp must match a line of the transcript.\n")
	prompt.WriteString("3. Keep each summary between 30 and 50 characters.\n")
	prompt.WriteString("4. If a segment is promotional content, set its title to exactly \"广告\".\n")

	prompt.WriteString("\n=== TRANSCRIPT ===\n")
	prompt.WriteString(transcript)

	return prompt.String()
}

func targetLanguageOrDefault(in PromptInput) string {
	if in.TargetLanguage != "" {
		return in.TargetLanguage
	}
	return "the transcript's language"
}
