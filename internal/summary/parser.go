package summary

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultAdDurationSeconds is the assumed length of a promotional span when
// the model only supplied a start timestamp. Behavioral compatibility
// constant; tunable through configuration, not inferred from content.
const DefaultAdDurationSeconds = 30

// adTitles are the literal segment titles that mark a promotional span.
var adTitles = map[string]struct{}{
	"广告":            {},
	"advertisement": {},
}

var (
	jsonFencePattern     = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)```")
	anyFencePattern      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	missingCommaPattern  = regexp.MustCompile(`\}\s*\{`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)

	fencedHeadingPattern = regexp.MustCompile("(?s)```(?:markdown)?\\s*\\n?(#[^`]*?)\\n?```")
)

// CleanNarrative strips the code-fence wrapping an LLM tends to add around a
// markdown answer. Order matters: whole-response wrap first, then iterative
// unwrap of nested markdown-tagged fences, then a spot fix for fenced
// fragments that contain heading markers.
func CleanNarrative(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if inner, ok := stripOuterFence(text, ""); ok {
		text = inner
	}
	for {
		inner, ok := stripOuterFence(text, "markdown")
		if !ok {
			break
		}
		text = inner
	}

	text = fencedHeadingPattern.ReplaceAllString(text, "$1")

	return strings.TrimSpace(text)
}

// stripOuterFence removes one fenced code block wrapping the entire text.
// When tag is non-empty, only a fence carrying that language tag is removed.
func stripOuterFence(text, tag string) (string, bool) {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") {
		return text, false
	}
	if len(text) < 6 {
		return text, false
	}

	nl := strings.Index(text, "\n")
	if nl < 0 {
		return text, false
	}

	opening := strings.TrimSpace(strings.TrimPrefix(text[:nl], "```"))
	if tag != "" && !strings.EqualFold(opening, tag) {
		return text, false
	}

	inner := strings.TrimSuffix(text[nl+1:], "```")

	// The leading fence must be the one closed by the trailing fence. A bare
	// ``` line inside means the leading fence already closed there, so the
	// text holds separate fenced blocks, not one wrapper. Tagged ``` lines
	// open nested fences and bare ones close them.
	depth := 1
	for _, line := range strings.Split(inner, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		if trimmed == "```" {
			depth--
			if depth == 0 {
				return text, false
			}
		} else {
			depth++
		}
	}

	return strings.TrimSpace(inner), true
}

// rawTime accepts a timestamp that may arrive as a JSON string ("03:15"),
// an integer second count, or a float.
type rawTime string

func (t *rawTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = rawTime(s)
		return nil
	}
	*t = rawTime(string(data))
	return nil
}

// Seconds converts the raw timestamp into total seconds. Malformed input
// yields 0.
func (t rawTime) Seconds() int {
	s := strings.TrimSpace(string(t))
	if s == "" || s == "null" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0
		}
		return int(f)
	}
	return ParseTimeToSeconds(s)
}

type rawSegment struct {
	Timestamp   rawTime `json:"timestamp"`
	Time        rawTime `json:"time"`
	Start       rawTime `json:"start"`
	End         rawTime `json:"end"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	Product     string  `json:"product"`
	Description string  `json:"description"`
}

func (s rawSegment) startSeconds() int {
	if s.Timestamp != "" {
		return s.Timestamp.Seconds()
	}
	if s.Time != "" {
		return s.Time.Seconds()
	}
	return s.Start.Seconds()
}

// looksLikeAdSpan reports whether the entry carries the legacy ad-span fields
// instead of a regular segment's timestamp/title/summary.
func (s rawSegment) looksLikeAdSpan() bool {
	if s.Title != "" || s.Summary != "" {
		return false
	}
	return s.End != "" || s.Product != "" || s.Description != ""
}

type rawAd struct {
	Start       rawTime `json:"start"`
	End         rawTime `json:"end"`
	Product     string  `json:"product"`
	Description string  `json:"description"`
}

type segmentPayload struct {
	Segments []rawSegment `json:"segments"`
	Ads      []rawAd      `json:"ads"`
	HasAds   bool         `json:"hasAds"`
}

// ParseSegments extracts the segments array from free-form model output.
// Total: malformed input degrades to an empty slice, never an error.
func ParseSegments(raw string) []Segment {
	payload, ok := decodeSegmentPayload(raw)
	if !ok {
		return []Segment{}
	}

	segments := make([]Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, Segment{
			TimestampSeconds: seg.startSeconds(),
			Title:            seg.Title,
			Summary:          seg.Summary,
		})
	}

	sortSegments(segments)
	return segments
}

// ParseSegmentsAndAds extracts segments and normalizes ad spans from
// free-form model output. The ad shape is a tagged union at the parse
// boundary: an explicit "ads" array wins, then the legacy hasAds+segments
// span shape, then segments whose title marks them as advertisement. Any
// ad-titled segment is removed from the segment list and converted with
// endSeconds = startSeconds + adDurationSeconds when no explicit end exists.
func ParseSegmentsAndAds(raw string, adDurationSeconds int) ([]Segment, []AdSegment) {
	if adDurationSeconds <= 0 {
		adDurationSeconds = DefaultAdDurationSeconds
	}

	payload, ok := decodeSegmentPayload(raw)
	if !ok {
		return []Segment{}, []AdSegment{}
	}

	richAds := make([]AdSegment, 0, len(payload.Ads))
	for _, ad := range payload.Ads {
		richAds = append(richAds, normalizeAd(ad.Start.Seconds(), ad.End.Seconds(), ad.Product, ad.Description, adDurationSeconds))
	}

	// Legacy shape: hasAds with the span objects riding in "segments".
	if len(richAds) == 0 && payload.HasAds {
		for _, seg := range payload.Segments {
			if !seg.looksLikeAdSpan() {
				continue
			}
			richAds = append(richAds, normalizeAd(seg.Start.Seconds(), seg.End.Seconds(), seg.Product, seg.Description, adDurationSeconds))
		}
		if len(richAds) > 0 {
			return []Segment{}, richAds
		}
	}

	segments := make([]Segment, 0, len(payload.Segments))
	reclassified := make([]AdSegment, 0)
	for _, seg := range payload.Segments {
		if isAdTitle(seg.Title) {
			start := seg.startSeconds()
			reclassified = append(reclassified, AdSegment{
				StartSeconds: start,
				EndSeconds:   start + adDurationSeconds,
				Description:  seg.Summary,
			})
			continue
		}
		segments = append(segments, Segment{
			TimestampSeconds: seg.startSeconds(),
			Title:            seg.Title,
			Summary:          seg.Summary,
		})
	}

	sortSegments(segments)

	if len(richAds) > 0 {
		return segments, richAds
	}
	return segments, reclassified
}

func normalizeAd(start, end int, product, description string, adDurationSeconds int) AdSegment {
	// Upstream does not guarantee end > start.
	if end <= start {
		end = start + adDurationSeconds
	}
	return AdSegment{
		StartSeconds: start,
		EndSeconds:   end,
		Product:      product,
		Description:  description,
	}
}

func isAdTitle(title string) bool {
	_, ok := adTitles[strings.ToLower(strings.TrimSpace(title))]
	return ok
}

func sortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].TimestampSeconds < segments[j].TimestampSeconds
	})
}

// decodeSegmentPayload runs the repair pipeline: candidate extraction, two
// textual repairs, parse of the repaired candidate, then the unrepaired
// candidate as a fallback (the heuristics can corrupt already-valid JSON).
func decodeSegmentPayload(raw string) (segmentPayload, bool) {
	candidate := extractJSONCandidate(raw)
	if candidate == "" {
		return segmentPayload{}, false
	}

	repaired := repairJSON(candidate)
	if payload, ok := unmarshalPayload(repaired); ok {
		return payload, true
	}
	return unmarshalPayload(candidate)
}

// extractJSONCandidate pulls the JSON-bearing substring out of model output
// that may be fenced or wrapped in prose.
func extractJSONCandidate(raw string) string {
	candidate := strings.TrimSpace(raw)

	if m := jsonFencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	} else if m := anyFencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	}

	objStart := strings.Index(candidate, "{")
	arrStart := strings.Index(candidate, "[")

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(candidate, "]"); end > arrStart {
			return strings.TrimSpace(candidate[arrStart : end+1])
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > objStart {
			return strings.TrimSpace(candidate[objStart : end+1])
		}
	}

	return ""
}

// repairJSON applies the two purely textual repairs: a missing comma between
// adjacent objects, and trailing commas before a closing bracket.
func repairJSON(candidate string) string {
	repaired := missingCommaPattern.ReplaceAllString(candidate, "},{")
	repaired = trailingCommaPattern.ReplaceAllString(repaired, "$1")
	return repaired
}

func unmarshalPayload(candidate string) (segmentPayload, bool) {
	var payload segmentPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
		if payload.Segments != nil || payload.Ads != nil || payload.HasAds {
			return payload, true
		}
		// Parsed fine but carries neither a segments array nor ads;
		// recoverable, not an exception.
		return segmentPayload{}, false
	}

	// A bare top-level array of segments.
	var list []rawSegment
	if err := json.Unmarshal([]byte(candidate), &list); err == nil {
		return segmentPayload{Segments: list}, true
	}

	return segmentPayload{}, false
}
