package evaluation

import (
	"cmp"
	"math"
	"slices"

	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
)

const (
	// UnknownPopularity is assumed for postings missing from the popularity map.
	UnknownPopularity = 0.99
	// MinPopularity replaces a zero popularity so its novelty stays finite.
	MinPopularity = 1e-5
)

type Metrics struct {
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	Diversity    float64 `json:"diversity"`
	Novelty      float64 `json:"novelty"`
	Serendipity  float64 `json:"serendipity"`
}

func (m Metrics) add(o Metrics) Metrics {
	return Metrics{
		PrecisionAtK: m.PrecisionAtK + o.PrecisionAtK,
		RecallAtK:    m.RecallAtK + o.RecallAtK,
		Diversity:    m.Diversity + o.Diversity,
		Novelty:      m.Novelty + o.Novelty,
		Serendipity:  m.Serendipity + o.Serendipity,
	}
}

func (m Metrics) scale(f float64) Metrics {
	return Metrics{
		PrecisionAtK: m.PrecisionAtK * f,
		RecallAtK:    m.RecallAtK * f,
		Diversity:    m.Diversity * f,
		Novelty:      m.Novelty * f,
		Serendipity:  m.Serendipity * f,
	}
}

// Sub returns m - o, metric by metric.
func (m Metrics) Sub(o Metrics) Metrics {
	return m.add(o.scale(-1))
}

// PrecisionAtK is the share of the first k recommendations that are relevant.
// The denominator is k even when fewer items were recommended.
func PrecisionAtK(recommended []string, relevant map[string]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hits(recommended, relevant, k)) / float64(k)
}

// RecallAtK is the share of relevant postings found in the first k
// recommendations. It is 0 when nothing is relevant.
func RecallAtK(recommended []string, relevant map[string]struct{}, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(hits(recommended, relevant, k)) / float64(len(relevant))
}

func hits(recommended []string, relevant map[string]struct{}, k int) int {
	n := 0
	for _, id := range recommended[:min(k, len(recommended))] {
		if _, ok := relevant[id]; ok {
			n++
		}
	}
	return n
}

// Diversity is 1 minus the mean pairwise cosine similarity of the vectors.
// Lists shorter than two are perfectly diverse.
func Diversity(vectors [][]float32) float64 {
	if len(vectors) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := range vectors {
		for j := i + 1; j < len(vectors); j++ {
			sum += dense.Cosine(vectors[i], vectors[j])
			pairs++
		}
	}
	return 1 - sum/float64(pairs)
}

// Novelty is the mean self-information -log2(popularity) of the list.
func Novelty(recommended []string, popularity map[string]float64) float64 {
	if len(recommended) == 0 {
		return 0
	}
	var total float64
	for _, id := range recommended {
		p, ok := popularity[id]
		if !ok {
			p = UnknownPopularity
		}
		if p <= 0 {
			p = MinPopularity
		}
		total += -math.Log2(p)
	}
	return total / float64(len(recommended))
}

// Serendipity averages relevant(i) * unexpected(i) over the list, where an
// item is unexpected when the popularity baseline would not have shown it.
func Serendipity(recommended []string, relevant, baseline map[string]struct{}) float64 {
	if len(recommended) == 0 {
		return 0
	}
	n := 0
	for _, id := range recommended {
		_, rel := relevant[id]
		_, expected := baseline[id]
		if rel && !expected {
			n++
		}
	}
	return float64(n) / float64(len(recommended))
}

// PopularityBaseline returns the k most popular postings, ties by ID. It is
// the naive recommender serendipity is measured against.
func PopularityBaseline(popularity map[string]float64, k int) map[string]struct{} {
	ids := make([]string, 0, len(popularity))
	for id := range popularity {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(popularity[b], popularity[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return toSet(ids[:min(k, len(ids))])
}

// SkillPopularity approximates popularity without an interaction log: the
// number of profiles sharing at least one skill with a posting, divided by
// the maximum over all postings.
func SkillPopularity(jobs []features.JobFeatures, profiles []features.ProfileFeatures) map[string]float64 {
	counts := make(map[string]int, len(jobs))
	maxCount := 0
	for _, j := range jobs {
		n := 0
		for _, p := range profiles {
			if len(features.Overlap(p.Skills, j.Attributes.Skills)) > 0 {
				n++
			}
		}
		if n > 0 {
			counts[j.ID] = n
			maxCount = max(maxCount, n)
		}
	}

	out := make(map[string]float64, len(counts))
	for id, n := range counts {
		out[id] = float64(n) / float64(maxCount)
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
