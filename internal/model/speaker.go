package model

import "strings"

// Speaker is a conference speaker record. Fields accumulate as the record
// moves through the stages: raw page fields, enrichment, classification,
// then the generated email.
type Speaker struct {
	// Raw fields from the scraped page
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	JobTitle  string    `json:"job_title"`
	Bio       string    `json:"bio"`
	Sessions  []Session `json:"sessions"`
	ImageURL  string    `json:"image_url"`
	SpeakerID string    `json:"speaker_id,omitempty"` // Source directory slug

	// Enrichment
	SpeakerName     string         `json:"speaker_name,omitempty"`
	SearchResults   []SearchResult `json:"search_results,omitempty"`
	EnrichmentError string         `json:"error,omitempty"`

	// Classification
	Category                 Category `json:"category,omitempty"`
	ClassificationReasoning  string   `json:"classification_reasoning,omitempty"`
	ClassificationConfidence float64  `json:"classification_confidence"`

	// Generation
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

// Session is a conference talk the speaker presents.
type Session struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Identity is the (name, company) pair that uniquely denotes one logical
// speaker. There is no surrogate key.
type Identity struct {
	Name    string
	Company string
}

// Key returns the canonical string form used in checkpoint files. Plain
// names give "name|company"; a backslash or "|" inside either part is
// escaped so distinct pairs never share a key.
func (id Identity) Key() string {
	return keyEscaper.Replace(id.Name) + "|" + keyEscaper.Replace(id.Company)
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// Identity returns the speaker's identity.
func (s Speaker) Identity() Identity {
	return Identity{Name: s.Name, Company: s.Company}
}

// Key is shorthand for s.Identity().Key().
func (s Speaker) Key() string {
	return s.Identity().Key()
}

// Clone returns a copy that shares no slices with s.
func (s Speaker) Clone() Speaker {
	out := s
	if s.Sessions != nil {
		out.Sessions = append([]Session(nil), s.Sessions...)
	}
	if s.SearchResults != nil {
		out.SearchResults = append([]SearchResult(nil), s.SearchResults...)
	}
	return out
}

// ApplyEnrichment merges enrichment data onto the speaker.
func (s *Speaker) ApplyEnrichment(e Enrichment) {
	s.SpeakerName = e.SpeakerName
	s.SearchResults = e.SearchResults
	s.EnrichmentError = e.Error
}

// ApplyClassification merges a classification onto the speaker.
func (s *Speaker) ApplyClassification(c Classification) {
	s.Category = c.Category
	s.ClassificationReasoning = c.Reasoning
	s.ClassificationConfidence = c.Confidence
}

// ApplyEmail merges a generated email onto the speaker.
func (s *Speaker) ApplyEmail(d EmailDraft) {
	s.EmailSubject = d.Subject
	s.EmailBody = d.Body
}

// EmailDraft is a generated outreach email. Both fields are empty when the
// speaker is not eligible or generation failed.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// IsEmpty reports whether no email was produced.
func (d EmailDraft) IsEmpty() bool {
	return d.Subject == "" && d.Body == ""
}
