package vector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	ferrors "github.com/feedwise/feedwise/internal/errors"
)

// IndexConfig configures the ANN index.
type IndexConfig struct {
	// Dimensions is the vector dimension all entries must share.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// Index is an approximate nearest-neighbor index over item vectors for
// corpus-scale search, where a per-query linear scan would be too slow.
// The query pipeline caps its pools at the semantic budget and ranks
// them with brute-force TopK, which is exact and has deterministic
// tie-breaks; this index trades that determinism for sublinear search
// when a caller must rank an uncapped corpus.
//
// The index is derived state: it is rebuilt from the vector cache and
// never persisted itself.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config IndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// NewIndex creates an empty ANN index.
func NewIndex(cfg IndexConfig) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, ferrors.ValidationError(
			fmt.Sprintf("index dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts vectors with their IDs. Existing IDs are replaced via lazy
// deletion: the old node is orphaned in the graph rather than removed.
func (ix *Index) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return ferrors.ValidationError(
			fmt.Sprintf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors)), nil)
	}

	for _, v := range vectors {
		if len(v) != ix.config.Dimensions {
			return ferrors.DimensionMismatch(ix.config.Dimensions, len(v))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, id := range ids {
		if existingKey, exists := ix.idMap[id]; exists {
			delete(ix.keyMap, existingKey)
			delete(ix.idMap, id)
		}

		key := ix.nextKey
		ix.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		vec = Normalize(vec)

		ix.graph.Add(hnsw.MakeNode(key, vec))
		ix.idMap[id] = key
		ix.keyMap[key] = id
	}

	return nil
}

// Search returns up to k nearest items with similarity scores in [0,1],
// sorted by score descending with ID ascending on ties.
func (ix *Index) Search(query []float32, k int) ([]Scored, error) {
	if len(query) != ix.config.Dimensions {
		return nil, ferrors.DimensionMismatch(ix.config.Dimensions, len(query))
	}
	if k <= 0 {
		return []Scored{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.idMap) == 0 {
		return []Scored{}, nil
	}

	q := Normalize(append([]float32(nil), query...))

	// Over-fetch to compensate for lazily deleted nodes still in the graph.
	neighbors := ix.graph.Search(q, k+len(ix.keyMap)/8+1)

	results := make([]Scored, 0, k)
	for _, node := range neighbors {
		id, ok := ix.keyMap[node.Key]
		if !ok {
			continue // orphaned by a replace
		}
		sim, err := Cosine(q, node.Value)
		if err != nil {
			return nil, err
		}
		results = append(results, Scored{ID: id, Score: ClampUnit(sim)})
		if len(results) == k {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Contains reports whether id is indexed.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.idMap[id]
	return ok
}

// Count returns the number of live entries.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idMap)
}
