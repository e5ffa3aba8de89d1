package checkpoint

import (
	"time"

	"github.com/ppiankov/speakerpipe/internal/model"
)

// ClassifyState is the stage 1 checkpoint. Results is authoritative; the
// processed identities are always re-derived from it on load.
type ClassifyState struct {
	Results   []model.Speaker `json:"results"`
	Processed []string        `json:"processed"`
	RunID     string          `json:"run_id,omitempty"`
	Timestamp float64         `json:"timestamp"` // Unix seconds
}

// ProcessedSet returns the identity keys present in Results.
func (s ClassifyState) ProcessedSet() map[string]bool {
	set := make(map[string]bool, len(s.Results))
	for _, r := range s.Results {
		set[r.Key()] = true
	}
	return set
}

// GenerateState is the stage 2 checkpoint. Emails is a side map from
// identity key to the generated draft; every attempted identity has an
// entry, with empty fields when generation failed. The keys of Emails are
// the authoritative processed set and Processed is informational.
type GenerateState struct {
	Emails    map[string]model.EmailDraft `json:"emails"`
	Processed []string                    `json:"processed"`
	RunID     string                      `json:"run_id,omitempty"`
	Timestamp float64                     `json:"timestamp"`
}

// ProcessedSet returns the identity keys present in the side map.
func (s GenerateState) ProcessedSet() map[string]bool {
	set := make(map[string]bool, len(s.Emails))
	for k := range s.Emails {
		set[k] = true
	}
	return set
}

// Stamp converts t to the timestamp representation used in checkpoints.
func Stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
