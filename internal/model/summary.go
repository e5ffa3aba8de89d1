package model

import (
	"sort"
	"time"
)

// Tally counts records per category. It is informational only and never
// consulted to decide what has been processed.
type Tally map[Category]int

// NewTally returns a tally with every known category at zero.
func NewTally() Tally {
	t := make(Tally, len(Categories))
	for _, c := range Categories {
		t[c] = 0
	}
	return t
}

// Add counts one record.
func (t Tally) Add(c Category) {
	t[c]++
}

// Sorted returns the non-zero categories by CategoryRank, ties by name.
func (t Tally) Sorted() []Category {
	var out []Category
	for c, n := range t {
		if n > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := CategoryRank(out[i]), CategoryRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

// StageSummary is the final report of one stage run.
type StageSummary struct {
	Stage     string        `json:"stage"`
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`     // Records in the stage's universe
	Processed int           `json:"processed"` // Records handled during this run
	Elapsed   time.Duration `json:"elapsed"`
	Tally     Tally         `json:"tally,omitempty"`
}

// Throughput returns records per second for this run.
func (s StageSummary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Elapsed.Seconds()
}
