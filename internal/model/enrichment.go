package model

// SearchResult is a single hit returned by the search API
type SearchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Enrichment is the supplementary context gathered for one speaker.
type Enrichment struct {
	Company       string         `json:"company"`
	SpeakerName   string         `json:"speaker_name"`
	JobTitle      string         `json:"job_title"`
	SearchResults []SearchResult `json:"search_results"`
	Error         string         `json:"error,omitempty"` // Set on the degraded payload
}

// Degraded reports whether this payload stands in for a failed lookup.
func (e Enrichment) Degraded() bool {
	return e.Error != ""
}
