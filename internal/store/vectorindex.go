package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// vectorIndex is an in-memory approximate-nearest-neighbor graph over the
// store's vectors, rebuilt from SQLite on open. It has no independent
// durability of its own: the SQLite table is the store's durable state,
// matching §4.4's "recovery is by re-indexing" concurrency note.
type vectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func newVectorIndex() *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts or replaces a vector. Existing entries are orphaned rather
// than deleted from the graph, avoiding a known issue in coder/hnsw when the
// last remaining node is removed.
func (v *vectorIndex) add(id string, vec []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existingKey, ok := v.idMap[id]; ok {
		delete(v.keyMap, existingKey)
		delete(v.idMap, id)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idMap[id] = key
	v.keyMap[key] = id
}

// remove orphans the mapping for id; the node itself stays in the graph.
func (v *vectorIndex) remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.idMap[id]; ok {
		delete(v.keyMap, key)
		delete(v.idMap, id)
	}
}

// search returns up to k nearest neighbors by ascending cosine distance.
func (v *vectorIndex) search(query []float32, k int) []SearchResult {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := v.graph.Search(normalized, k)
	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		results = append(results, SearchResult{
			Record: Record{ID: id},
			Score:  float64(distanceToScore(distance)),
		})
	}
	return results
}

func (v *vectorIndex) count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// distanceToScore converts a coder/hnsw cosine distance (1 - cosine
// similarity, range 0-2) into the score 1 - distance, i.e. the cosine
// similarity itself (range -1 to 1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistance computes the same distance convention as vectorIndex.search
// for the brute-force filtered path (§4.4 "vector_search(filter)"), where
// the HNSW graph itself has no notion of a predicate over stored rows.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2.0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32(1.0 - cos)
}

var errStoreClosed = fmt.Errorf("store is closed")
