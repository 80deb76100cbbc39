package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/thematic/internal/model"
)

// Embeddings are stored as JSON-encoded float32 arrays. Similarity is computed
// in-process, so no vector extension is required.

func encodeVector(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(data), nil
}

func decodeVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return v, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors differ in length or either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// ranker accumulates candidates at or above threshold and returns the best topK.
type ranker struct {
	query     []float32
	threshold float64
	matches   []model.Match
}

func newRanker(query []float32, threshold float64) *ranker {
	return &ranker{query: query, threshold: threshold}
}

func (r *ranker) offer(id string, vec []float32) {
	sim := CosineSimilarity(r.query, vec)
	if sim >= r.threshold {
		r.matches = append(r.matches, model.Match{ID: id, Similarity: sim})
	}
}

func (r *ranker) top(k int) []model.Match {
	sort.SliceStable(r.matches, func(i, j int) bool {
		if r.matches[i].Similarity == r.matches[j].Similarity {
			return r.matches[i].ID < r.matches[j].ID
		}
		return r.matches[i].Similarity > r.matches[j].Similarity
	})
	if k > 0 && len(r.matches) > k {
		return r.matches[:k]
	}
	return r.matches
}
