package transcript

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// srtTimePattern matches "HH:MM:SS,mmm --> HH:MM:SS,mmm" separators.
var srtTimePattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// Reader reads a subtitle file into a Transcript.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Read parses an SRT file. Multi-line cues are joined with a single space;
// only the start time is retained since summarization works on line offsets.
func (r *Reader) Read() (*Transcript, error) {
	if !strings.HasSuffix(strings.ToLower(r.path), ".srt") {
		return nil, fmt.Errorf("only SRT format transcript files are supported: %s", r.path)
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("transcript file does not exist: %s", r.path)
	}

	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	var lines []Line

	scanner := bufio.NewScanner(file)
	state := "index" // "index", "time", "text"
	current := Line{}
	var textParts []string

	flush := func() {
		if len(textParts) > 0 {
			current.Content = strings.Join(textParts, " ")
			lines = append(lines, current)
		}
		current = Line{}
		textParts = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			if _, err := strconv.Atoi(line); err != nil {
				continue // skip non-index lines
			}
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			start, err := parseSRTStart(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			current.StartSeconds = start
			state = "text"

		case "text":
			if line == "" {
				flush()
				state = "index"
			} else {
				textParts = append(textParts, line)
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	return &Transcript{
		Lines:    lines,
		Language: DetectLanguage(lines),
	}, nil
}

func parseSRTStart(line string) (int, error) {
	m := srtTimePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, fmt.Errorf("invalid SRT time line: %q", line)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	return hours*3600 + minutes*60 + seconds, nil
}
