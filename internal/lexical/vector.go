package lexical

import "math"

// Vector is a sparse vector in an index's term space. Terms are sorted
// ascending and unique.
type Vector struct {
	Terms   []int32
	Weights []float32
}

func (v Vector) IsZero() bool { return len(v.Terms) == 0 }

func (v Vector) Norm() float64 {
	var sum float64
	for _, w := range v.Weights {
		sum += float64(w) * float64(w)
	}
	return math.Sqrt(sum)
}

// Dot is the inner product of two sparse vectors.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Terms) && j < len(o.Terms) {
		switch {
		case v.Terms[i] == o.Terms[j]:
			sum += float64(v.Weights[i]) * float64(o.Weights[j])
			i++
			j++
		case v.Terms[i] < o.Terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Score is the cosine similarity of two L2-normalized vectors, clamped to
// [0,1]. A zero vector scores 0 against everything.
func Score(a, b Vector) float64 {
	s := a.Dot(b)
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func (v *Vector) normalize() {
	n := v.Norm()
	if n == 0 {
		return
	}
	for i := range v.Weights {
		v.Weights[i] = float32(float64(v.Weights[i]) / n)
	}
}
