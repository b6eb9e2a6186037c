package similarity

import (
	"math"
	"testing"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got)-tt.want) > 0.0001 {
				t.Errorf("expected ~%f, got %f", tt.want, got)
			}
		})
	}
}

func TestCosineDistance_Range(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-6 {
		t.Errorf("identical vectors: expected ~0, got %f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); math.Abs(d-2) > 1e-6 {
		t.Errorf("opposite vectors: expected ~2, got %f", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero vector: expected 1, got %f", d)
	}
}

func TestFindSimilar_Basic(t *testing.T) {
	target := []float32{1, 0, 0}
	candidates := []db.ItemEmbedding{
		{ID: "a", Filepath: "/a.jpg", Embedding: []float32{1, 0, 0}},
		{ID: "b", Filepath: "/b.jpg", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "c", Filepath: "/c.jpg", Embedding: []float32{0, 1, 0}},
		{ID: "d", Filepath: "/d.jpg", Embedding: []float32{-1, 0, 0}},
	}
	results := FindSimilar(target, candidates, "", 2, 0.0)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[0].Filepath != "/a.jpg" {
		t.Errorf("expected 'a' first, got %+v", results[0])
	}
	if results[1].ID != "b" {
		t.Errorf("expected 'b' second, got '%s'", results[1].ID)
	}
}

func TestFindSimilar_ExcludesSelf(t *testing.T) {
	target := []float32{1, 0, 0}
	candidates := []db.ItemEmbedding{
		{ID: "self", Embedding: []float32{1, 0, 0}},
		{ID: "other", Embedding: []float32{0.5, 0.5, 0}},
	}
	results := FindSimilar(target, candidates, "self", 5, 0.0)
	if len(results) != 1 {
		t.Fatalf("expected 1 result (self excluded), got %d", len(results))
	}
	if results[0].ID != "other" {
		t.Errorf("expected 'other', got '%s'", results[0].ID)
	}
}

func TestFindSimilar_MinThreshold(t *testing.T) {
	target := []float32{1, 0, 0}
	candidates := []db.ItemEmbedding{
		{ID: "similar", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "orthogonal", Embedding: []float32{0, 1, 0}},
	}
	results := FindSimilar(target, candidates, "", 5, 0.5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result above threshold, got %d", len(results))
	}
	if results[0].ID != "similar" {
		t.Errorf("expected 'similar', got '%s'", results[0].ID)
	}
}

func TestNeighborMap_FlaggedIDs(t *testing.T) {
	nm := NeighborMap{
		{RepID: "A", Neighbors: []Neighbor{{ID: "B", Distance: 0.1}, {ID: "C", Distance: 0.2}}},
		{RepID: "D", Neighbors: []Neighbor{{ID: "C", Distance: 0.1}}},
	}
	got := nm.FlaggedIDs()
	want := []string{"A", "B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if n := nm.NumNeighbors(); n != 3 {
		t.Errorf("expected 3 neighbors, got %d", n)
	}
}
