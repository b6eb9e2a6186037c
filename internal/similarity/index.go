package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

// MetricCosine is the only supported distance metric.
const MetricCosine = "cosine"

var (
	// ErrNoIndex is returned by Load when no similarity run exists for the key.
	ErrNoIndex = errors.New("similarity index not computed")
	// ErrInvalidSelector is returned when neither a threshold nor a fraction is given.
	ErrInvalidSelector = errors.New("either a threshold or a fraction is required")
)

// Embedder turns an image file into a vector.
type Embedder interface {
	Embed(path string) ([]float32, error)
}

// Selector chooses how duplicates are flagged. Threshold is an absolute
// cosine distance; Fraction is the share of the collection to flag. When
// both are set Threshold wins.
type Selector struct {
	Threshold *float64
	Fraction  *float64
}

// Index is a brute-force cosine index over the embedded items of a dataset.
type Index struct {
	Key string

	ids   []string
	pos   map[string]int
	vecs  [][]float32
	order [][]Neighbor // per item: every other item, nearest first

	neighbors NeighborMap
	threshold float64
}

// NewIndex builds an index over the given embeddings. Item order is kept and
// decides which item of a duplicate cluster becomes the representative.
func NewIndex(key string, items []db.ItemEmbedding) *Index {
	x := &Index{Key: key, pos: make(map[string]int, len(items))}
	for _, it := range items {
		x.pos[it.ID] = len(x.ids)
		x.ids = append(x.ids, it.ID)
		x.vecs = append(x.vecs, it.Embedding)
	}
	return x
}

// Compute embeds every item that has no embedding yet and records a
// similarity run under key. Items whose image cannot be embedded are logged
// and left out of the index.
func Compute(ctx context.Context, ds *db.Dataset, key string, embedder Embedder, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	missing, err := ds.ItemsMissingEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("listing items without embeddings: %w", err)
	}

	vecs := make([][]float32, len(missing))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, it := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := embedder.Embed(it.Filepath)
			if err != nil {
				log.Warn("embedding failed", zap.String("filepath", it.Filepath), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// SQLite has a single writer, so results are stored sequentially
	for i, it := range missing {
		if vecs[i] == nil {
			continue
		}
		if err := ds.SetEmbedding(it.ID, vecs[i]); err != nil {
			return nil, err
		}
	}

	embedded, err := ds.ItemsWithEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	if err := ds.SaveSimilarityRun(db.SimilarityRun{Key: key, Metric: MetricCosine, NumItems: len(embedded)}); err != nil {
		return nil, err
	}

	log.Info("computed similarity",
		zap.String("key", key),
		zap.Int("embedded", len(missing)-failed),
		zap.Int("failed", failed),
		zap.Int("indexed", len(embedded)),
	)
	return NewIndex(key, embedded), nil
}

// Load returns the index recorded under key, or ErrNoIndex.
func Load(ds *db.Dataset, key string) (*Index, error) {
	if _, err := ds.LoadSimilarityRun(key); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: key %q on dataset %s", ErrNoIndex, key, ds.Name)
		}
		return nil, err
	}
	embedded, err := ds.ItemsWithEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	return NewIndex(key, embedded), nil
}

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.ids) }

// NeighborsMap returns the result of the last FindDuplicates call, or nil if
// duplicates were never searched for.
func (x *Index) NeighborsMap() NeighborMap { return x.neighbors }

// Threshold returns the distance threshold used by the last FindDuplicates call.
func (x *Index) Threshold() float64 { return x.threshold }

// FindDuplicates flags near-duplicates and refreshes NeighborsMap.
func (x *Index) FindDuplicates(sel Selector) error {
	var thresh float64
	switch {
	case sel.Threshold != nil:
		thresh = *sel.Threshold
		if thresh < 0 {
			return fmt.Errorf("threshold must be non-negative, got %g", thresh)
		}
	case sel.Fraction != nil:
		frac := *sel.Fraction
		if frac < 0 || frac > 1 {
			return fmt.Errorf("fraction must be within [0, 1], got %g", frac)
		}
		if math.Round(frac*float64(len(x.ids))) == 0 {
			x.neighbors = NeighborMap{}
			x.threshold = 0
			return nil
		}
		thresh = x.thresholdForFraction(frac)
	default:
		return ErrInvalidSelector
	}

	nm, _ := x.greedy(thresh)
	x.neighbors = nm
	x.threshold = thresh
	return nil
}

// greedy builds the neighbor map for thresh. An item is flagged when some
// other item lies within thresh, so the flagged set depends on thresh alone
// and shrinks as thresh shrinks. Flagged items are then walked in index
// order: one not yet claimed becomes a representative and claims every
// unclaimed item within thresh, nearest first. A representative whose close
// items were all claimed earlier lists its nearest item instead, which puts
// that item in two groups. Returns the map and the number of flagged items.
func (x *Index) greedy(thresh float64) (NeighborMap, int) {
	x.buildOrder()

	flagged := 0
	isFlagged := make([]bool, len(x.ids))
	for i, row := range x.order {
		if len(row) > 0 && row[0].Distance <= thresh {
			isFlagged[i] = true
			flagged++
		}
	}

	nm := NeighborMap{}
	keep := make(map[int]bool)
	dup := make(map[int]bool)
	for i := range x.ids {
		if !isFlagged[i] || dup[i] {
			continue
		}
		keep[i] = true
		var entry []Neighbor
		for _, n := range x.order[i] {
			if n.Distance > thresh {
				break
			}
			j := x.pos[n.ID]
			if keep[j] || dup[j] {
				continue
			}
			dup[j] = true
			entry = append(entry, n)
		}
		if len(entry) == 0 {
			entry = []Neighbor{x.order[i][0]}
		}
		nm = append(nm, NeighborEntry{RepID: x.ids[i], Neighbors: entry})
	}
	return nm, flagged
}

// thresholdForFraction bisects the distance threshold so that the number of
// flagged items is as close as possible to fraction * Len(). The flagged
// count never decreases as the threshold grows.
func (x *Index) thresholdForFraction(fraction float64) float64 {
	target := int(math.Round(fraction * float64(len(x.ids))))
	lo, hi := 0.0, 2.0
	for iter := 0; iter < 40; iter++ {
		mid := (lo + hi) / 2
		if _, n := x.greedy(mid); n < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

func (x *Index) buildOrder() {
	if x.order != nil {
		return
	}
	x.order = make([][]Neighbor, len(x.ids))
	for i := range x.ids {
		row := make([]Neighbor, 0, len(x.ids)-1)
		for j := range x.ids {
			if i == j {
				continue
			}
			row = append(row, Neighbor{ID: x.ids[j], Distance: CosineDistance(x.vecs[i], x.vecs[j])})
		}
		sort.SliceStable(row, func(a, b int) bool { return row[a].Distance < row[b].Distance })
		x.order[i] = row
	}
}
