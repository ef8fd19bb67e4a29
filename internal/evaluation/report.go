package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spigell/job-recommender/internal/recommend"
)

type VariantResult struct {
	Mode        recommend.Mode `json:"mode"`
	Recommended []string       `json:"recommended"`
	Metrics     Metrics        `json:"metrics"`
}

type PersonaReport struct {
	PersonaID string                    `json:"persona_id"`
	Relevant  int                       `json:"relevant"`
	Variants  map[Variant]VariantResult `json:"variants"`
}

// Report compares the variants per persona and on average. Deltas are B - A.
type Report struct {
	K        int                 `json:"k"`
	Version  string              `json:"version"`
	Seed     uint64              `json:"seed"`
	Personas []PersonaReport     `json:"personas"`
	Averages map[Variant]Metrics `json:"averages"`
	Deltas   Metrics             `json:"deltas"`
}

func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders the per-metric comparison table followed by the
// per-persona scores.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "artifact %s, K=%d, %d personas\n\n", r.Version, r.K, len(r.Personas))
	fmt.Fprintf(tw, "metric\tA (%s)\tB (%s)\tdelta\n", VariantA.Description(), VariantB.Description())
	a, b := r.Averages[VariantA], r.Averages[VariantB]
	rows := []struct {
		name        string
		a, b, delta float64
	}{
		{fmt.Sprintf("precision@%d", r.K), a.PrecisionAtK, b.PrecisionAtK, r.Deltas.PrecisionAtK},
		{fmt.Sprintf("recall@%d", r.K), a.RecallAtK, b.RecallAtK, r.Deltas.RecallAtK},
		{"diversity", a.Diversity, b.Diversity, r.Deltas.Diversity},
		{"novelty", a.Novelty, b.Novelty, r.Deltas.Novelty},
		{"serendipity", a.Serendipity, b.Serendipity, r.Deltas.Serendipity},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%+.4f\n", row.name, row.a, row.b, row.delta)
	}

	fmt.Fprintf(tw, "\npersona\trelevant\tP@K A\tP@K B\tR@K A\tR@K B\tmode B\n")
	for _, p := range r.Personas {
		pa, pb := p.Variants[VariantA], p.Variants[VariantB]
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%s\n", p.PersonaID, p.Relevant,
			pa.Metrics.PrecisionAtK, pb.Metrics.PrecisionAtK,
			pa.Metrics.RecallAtK, pb.Metrics.RecallAtK, pb.Mode)
	}
	return tw.Flush()
}
