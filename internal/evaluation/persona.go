package evaluation

import (
	"fmt"
	"slices"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/interactions"
	"github.com/spigell/job-recommender/internal/profile"
)

// Persona is a representative profile with its ground truth: the postings a
// curator judged relevant, or the ones the user clicked.
type Persona struct {
	Profile  *profile.UserProfile `json:"profile"`
	Relevant []string             `json:"relevant"`
}

func (p Persona) ID() string {
	if p.Profile == nil {
		return ""
	}
	return p.Profile.ID
}

// LoadPersonas reads curated personas from a JSON array or JSON-lines file of
// {"profile": {...}, "relevant": [...]} records.
func LoadPersonas(path string) ([]Persona, error) {
	records, err := corpus.ReadRecordsFile(path)
	if err != nil {
		return nil, err
	}

	out := make([]Persona, 0, len(records))
	for idx, record := range records {
		raw, ok := record["profile"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("persona %d: missing profile object", idx)
		}
		p, _, err := profile.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("persona %d: %w", idx, err)
		}
		out = append(out, Persona{Profile: p, Relevant: corpus.SplitList(record["relevant"])})
	}
	return out, nil
}

// PersonasFromLog derives ground truth from the interaction log. Profiles
// without any qualifying interaction are skipped.
func PersonasFromLog(profiles []*profile.UserProfile, log []interactions.Interaction, includeViews bool) []Persona {
	out := make([]Persona, 0, len(profiles))
	for _, p := range profiles {
		relevant := interactions.Relevant(log, p.ID, includeViews)
		if len(relevant) == 0 {
			continue
		}
		slices.Sort(relevant)
		out = append(out, Persona{Profile: p, Relevant: relevant})
	}
	return out
}
