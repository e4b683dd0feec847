package transcript

// Line is a single transcript line with its start offset.
type Line struct {
	Content      string `json:"content"`
	StartSeconds int    `json:"start_seconds"`
}

// Transcript is an ordered set of lines read from one subtitle file.
type Transcript struct {
	Lines    []Line
	Language string // detected natural language, empty when unknown
}
