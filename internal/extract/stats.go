package extract

import "github.com/ppiankov/speakerpipe/internal/model"

// Stats summarizes a parsed speaker list
type Stats struct {
	Total                int `json:"total_speakers"`
	WithBio              int `json:"speakers_with_bio"`
	WithSessions         int `json:"speakers_with_sessions"`
	WithImage            int `json:"speakers_with_image"`
	EmptyJobTitles       int `json:"empty_job_titles"`
	TotalSessions        int `json:"total_sessions"`
	MultiSessionSpeakers int `json:"multi_session_speakers"`
	Companies            int `json:"companies"`
}

// ComputeStats counts coverage of the optional fields
func ComputeStats(speakers []model.Speaker) Stats {
	s := Stats{Total: len(speakers)}
	companies := make(map[string]bool)

	for _, sp := range speakers {
		if sp.Bio != "" {
			s.WithBio++
		}
		if len(sp.Sessions) > 0 {
			s.WithSessions++
		}
		if len(sp.Sessions) > 1 {
			s.MultiSessionSpeakers++
		}
		if sp.ImageURL != "" {
			s.WithImage++
		}
		if sp.JobTitle == "" {
			s.EmptyJobTitles++
		}
		s.TotalSessions += len(sp.Sessions)
		if sp.Company != "" {
			companies[sp.Company] = true
		}
	}

	s.Companies = len(companies)
	return s
}
