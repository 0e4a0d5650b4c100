// Package vector provides similarity math and top-K selection over
// embedding vectors, plus an ANN index for corpus-scale semantic search.
package vector

import (
	"math"
	"sort"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

// Cosine returns the cosine similarity of a and b in [-1,1].
// It fails fast on dimension mismatch and returns 0 if either vector has
// zero magnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ferrors.DimensionMismatch(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Candidate pairs an identifier with its vector for top-K selection.
type Candidate struct {
	ID     string
	Vector []float32
}

// Scored is a candidate with its similarity to the query.
type Scored struct {
	ID    string
	Score float64
}

// TopK returns the k candidates most similar to query, sorted by score
// descending. Equal scores break ties by candidate ID ascending so the
// output is reproducible for the same inputs. A candidate whose dimension
// differs from the query's is a contract violation and fails the call.
func TopK(query []float32, candidates []Candidate, k int) ([]Scored, error) {
	if k <= 0 || len(candidates) == 0 {
		return []Scored{}, nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		sim, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, err
		}
		scored = append(scored, Scored{ID: c.ID, Score: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ClampUnit maps a cosine similarity from [-1,1] into [0,1] for ranking.
func ClampUnit(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Normalize normalizes v to unit length. Zero vectors are returned as-is.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
