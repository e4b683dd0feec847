package transcript

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// PlainText joins line contents with newlines, no timestamps. This is the
// body of the narrative request.
func PlainText(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Content)
	}
	return strings.Join(parts, "\n")
}

// TimedText renders one "[MM:SS] content" line per transcript line. This is
// the body of the segment request.
func TimedText(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		total := line.StartSeconds
		if total < 0 {
			total = 0
		}
		parts = append(parts, fmt.Sprintf("[%02d:%02d] %s", total/60, total%60, line.Content))
	}
	return strings.Join(parts, "\n")
}

// DetectLanguage guesses the natural language of the transcript text.
// Returns the English language name, or empty when detection is unreliable.
func DetectLanguage(lines []Line) string {
	text := PlainText(lines)
	if strings.TrimSpace(text) == "" {
		return ""
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.String()
}
