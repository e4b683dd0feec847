package summary

import "fmt"

// VideoIdentity identifies one playable unit: a specific part of a specific
// media item. Multi-part videos have one identity per part.
type VideoIdentity struct {
	ExternalID string `json:"external_id"`
	MediaID    int64  `json:"media_id"`
	PartIndex  int    `json:"part_index"`
}

// Key returns the canonical dedupe key for the identity.
func (v VideoIdentity) Key() string {
	return fmt.Sprintf("%s:%d:%d", v.ExternalID, v.MediaID, v.PartIndex)
}

func (v VideoIdentity) IsZero() bool {
	return v.ExternalID == "" && v.MediaID == 0 && v.PartIndex == 0
}

// Segment is a short timestamped highlight extracted from the transcript.
// Segments are ordered ascending by timestamp; duplicates are permitted since
// they come straight from the model.
type Segment struct {
	TimestampSeconds int    `json:"timestamp_seconds"`
	Title            string `json:"title"`
	Summary          string `json:"summary"`
}

// AdSegment is a promotional span reclassified out of the segment list, or
// supplied directly by the richer ad response shape.
type AdSegment struct {
	StartSeconds int    `json:"start_seconds"`
	EndSeconds   int    `json:"end_seconds"`
	Product      string `json:"product,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Result is the unit cached per VideoIdentity and returned to callers.
type Result struct {
	NarrativeMarkdown string      `json:"narrative_markdown"`
	Segments          []Segment   `json:"segments"`
	Ads               []AdSegment `json:"ads"`
}

// Cache stores completed results keyed by VideoIdentity. It is read before a
// task is created and written exactly once, by the work that completes
// successfully.
type Cache interface {
	GetSummary(identity VideoIdentity) (*Result, error)
	SetSummary(identity VideoIdentity, result *Result) error
	DeleteSummary(identity VideoIdentity) error
}
