package similarity

import (
	"math"
	"sort"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

// SimilarItem is an item with its similarity score to a target embedding.
type SimilarItem struct {
	ID         string  `json:"id"`
	Filepath   string  `json:"filepath"`
	Similarity float32 `json:"similarity"`
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0.0 for zero-norm vectors or mismatched lengths.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	na := float32(math.Sqrt(float64(normA)))
	nb := float32(math.Sqrt(float64(normB)))

	if na == 0 || nb == 0 {
		return 0.0
	}

	return dot / (na * nb)
}

// CosineDistance is 1 - cosine similarity, clamped to [0, 2].
func CosineDistance(a, b []float32) float64 {
	d := 1.0 - float64(CosineSimilarity(a, b))
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// FindSimilar finds the top-N most similar items to a target embedding.
// Excludes the item with excludeID. Only returns items with similarity >= minSimilarity.
// Results are sorted by descending similarity.
func FindSimilar(target []float32, candidates []db.ItemEmbedding, excludeID string, topN int, minSimilarity float32) []SimilarItem {
	var results []SimilarItem
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		sim := CosineSimilarity(target, c.Embedding)
		if sim >= minSimilarity {
			results = append(results, SimilarItem{
				ID:         c.ID,
				Filepath:   c.Filepath,
				Similarity: sim,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results
}
