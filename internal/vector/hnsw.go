package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// HNSWOptions are the structural parameters of the approximate variant.
type HNSWOptions struct {
	// M is the target number of neighbors created per node and level.
	M int
	// EfConstruction is the candidate-list breadth used while inserting.
	EfConstruction int
	// MaxConnections caps the neighbor list per node and level; level 0
	// allows twice as many.
	MaxConnections int
	// EfSearch is the candidate-list breadth used while querying. Search
	// always uses at least k.
	EfSearch int
}

func (o *HNSWOptions) applyDefaults() {
	if o.M <= 0 {
		o.M = 16
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = 200
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = 16
	}
	if o.EfSearch <= 0 {
		o.EfSearch = o.EfConstruction / 4
	}
}

type hnswNode struct {
	id        string
	vec       []float32
	neighbors [][]int // per level, indices into nodes
	deleted   bool
}

// HNSWIndex is the approximate variant: a hierarchical navigable small-world
// graph. Queries trade exactness for sub-linear cost; a search may omit true
// top-k members, but never returns more than k results nor ids that were not
// added. Removed nodes are tombstoned: they keep routing the graph but are
// never returned.
type HNSWIndex struct {
	dimensions int
	metric     Metric
	opts       HNSWOptions
	levelMult  float64

	mu       sync.RWMutex
	nodes    []*hnswNode
	byID     map[string]int
	entry    int
	maxLevel int
	live     int
	created  bool
	rng      *rand.Rand
}

// NewHNSWIndex creates an approximate index with the given dimensionality,
// metric, and structural parameters.
func NewHNSWIndex(dimensions int, metric Metric, opts HNSWOptions) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrIndexCreation, dimensions)
	}
	opts.applyDefaults()
	return &HNSWIndex{
		dimensions: dimensions,
		metric:     metric,
		opts:       opts,
		levelMult:  1.0 / math.Log(float64(opts.M)),
		byID:       make(map[string]int),
		entry:      -1,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(TypeHNSW)
}

// Create is idempotent; the graph grows incrementally from Add, so a repeated
// call after the structure exists is a no-op.
func (h *HNSWIndex) Create(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = true
	return nil
}

// randLevel draws a node level from the standard exponentially decaying
// distribution.
func (h *HNSWIndex) randLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

func (h *HNSWIndex) maxNeighbors(level int) int {
	if level == 0 {
		return h.opts.MaxConnections * 2
	}
	return h.opts.MaxConnections
}

// Add inserts one vector. An existing id is replaced: the old node is
// tombstoned and a fresh node is linked in.
func (h *HNSWIndex) Add(ctx context.Context, id string, vec []float32) error {
	if len(vec) != h.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), h.dimensions)
	}
	cp := make([]float32, h.dimensions)
	copy(cp, vec)

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.byID[id]; ok {
		h.nodes[old].deleted = true
		h.live--
		delete(h.byID, id)
	}

	level := h.randLevel()
	node := &hnswNode{id: id, vec: cp, neighbors: make([][]int, level+1)}
	idx := len(h.nodes)
	h.nodes = append(h.nodes, node)
	h.byID[id] = idx
	h.live++

	if h.entry < 0 {
		h.entry = idx
		h.maxLevel = level
		return nil
	}

	ep := h.entry
	// Greedy descent through the levels above the new node's level.
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(cp, ep, l)
	}

	// Link in at each level from min(level, maxLevel) down to 0.
	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		candidates := h.searchLayer(cp, ep, h.opts.EfConstruction, l)
		neighbors := h.selectNeighbors(candidates, h.opts.M)
		node.neighbors[l] = neighbors
		for _, n := range neighbors {
			h.nodes[n].neighbors[l] = append(h.nodes[n].neighbors[l], idx)
			h.shrinkNeighbors(n, l)
		}
		if len(candidates) > 0 {
			ep = candidates[0].idx
		}
	}

	if level > h.maxLevel {
		h.entry = idx
		h.maxLevel = level
	}
	return nil
}

// greedyClosest walks level l from ep toward the locally closest node to vec.
func (h *HNSWIndex) greedyClosest(vec []float32, ep int, l int) int {
	best := ep
	bestScore := h.metric.Score(vec, h.nodes[best].vec)
	for {
		improved := false
		if l < len(h.nodes[best].neighbors) {
			for _, n := range h.nodes[best].neighbors[l] {
				if s := h.metric.Score(vec, h.nodes[n].vec); s > bestScore {
					best, bestScore = n, s
					improved = true
				}
			}
		}
		if !improved {
			return best
		}
	}
}

type scoredNode struct {
	idx   int
	score float64
}

// candidateHeap pops the most similar node first.
type candidateHeap []scoredNode

func (c candidateHeap) Len() int           { return len(c) }
func (c candidateHeap) Less(i, j int) bool { return c[i].score > c[j].score }
func (c candidateHeap) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c *candidateHeap) Push(x any)        { *c = append(*c, x.(scoredNode)) }
func (c *candidateHeap) Pop() any {
	old := *c
	n := len(old)
	x := old[n-1]
	*c = old[:n-1]
	return x
}

// resultHeap pops the least similar node first, so the worst result can be
// evicted when the list exceeds ef.
type resultHeap []scoredNode

func (r resultHeap) Len() int           { return len(r) }
func (r resultHeap) Less(i, j int) bool { return r[i].score < r[j].score }
func (r resultHeap) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r *resultHeap) Push(x any)        { *r = append(*r, x.(scoredNode)) }
func (r *resultHeap) Pop() any {
	old := *r
	n := len(old)
	x := old[n-1]
	*r = old[:n-1]
	return x
}

// searchLayer runs the best-first beam search on one level and returns up to
// ef candidates, most similar first. Tombstoned nodes participate so the
// graph stays navigable; callers filter them out of final results.
func (h *HNSWIndex) searchLayer(vec []float32, ep int, ef int, l int) []scoredNode {
	visited := map[int]bool{ep: true}
	epScore := h.metric.Score(vec, h.nodes[ep].vec)

	candidates := candidateHeap{{idx: ep, score: epScore}}
	results := resultHeap{{idx: ep, score: epScore}}
	heap.Init(&candidates)
	heap.Init(&results)

	for candidates.Len() > 0 {
		cur := heap.Pop(&candidates).(scoredNode)
		if results.Len() >= ef && cur.score < results[0].score {
			break
		}
		if l >= len(h.nodes[cur.idx].neighbors) {
			continue
		}
		for _, n := range h.nodes[cur.idx].neighbors[l] {
			if visited[n] {
				continue
			}
			visited[n] = true
			s := h.metric.Score(vec, h.nodes[n].vec)
			if results.Len() < ef || s > results[0].score {
				heap.Push(&candidates, scoredNode{idx: n, score: s})
				heap.Push(&results, scoredNode{idx: n, score: s})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]scoredNode, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&results).(scoredNode)
	}
	return out
}

// selectNeighbors keeps the m most similar candidates.
func (h *HNSWIndex) selectNeighbors(candidates []scoredNode, m int) []int {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.idx
	}
	return out
}

// shrinkNeighbors trims node n's level-l neighbor list back to the cap,
// keeping the most similar links.
func (h *HNSWIndex) shrinkNeighbors(n int, l int) {
	limit := h.maxNeighbors(l)
	links := h.nodes[n].neighbors[l]
	if len(links) <= limit {
		return
	}
	scored := make([]scoredNode, len(links))
	for i, nb := range links {
		scored[i] = scoredNode{idx: nb, score: h.metric.Score(h.nodes[n].vec, h.nodes[nb].vec)}
	}
	// Partial selection is not worth it at these sizes.
	for i := 0; i < limit; i++ {
		best := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].score > scored[best].score {
				best = j
			}
		}
		scored[i], scored[best] = scored[best], scored[i]
	}
	kept := make([]int, limit)
	for i := 0; i < limit; i++ {
		kept[i] = scored[i].idx
	}
	h.nodes[n].neighbors[l] = kept
}

// Remove tombstones one vector; removing an unknown id is a no-op.
func (h *HNSWIndex) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx, ok := h.byID[id]
	if !ok {
		return nil
	}
	h.nodes[idx].deleted = true
	h.live--
	delete(h.byID, id)
	return nil
}

// Search returns up to k approximate nearest neighbors, most similar first.
// allowed, when non-nil, restricts accepted results during the traversal; the
// beam still routes through excluded nodes so the accepted set is not starved
// by post-hoc truncation.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, allowed map[string]bool) ([]*Result, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.entry < 0 || h.live == 0 {
		return nil, nil
	}

	ef := h.opts.EfSearch
	if ef < k {
		ef = k
	}
	if allowed != nil {
		// Widen the beam so accepted candidates survive filtering.
		ef *= 4
	}

	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(query, ep, l)
	}
	candidates := h.searchLayer(query, ep, ef, 0)

	out := make([]*Result, 0, k)
	for _, c := range candidates {
		node := h.nodes[c.idx]
		if node.deleted {
			continue
		}
		if allowed != nil && !allowed[node.id] {
			continue
		}
		out = append(out, &Result{ID: node.id, Score: c.score})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// DropIndex releases the structural graph independent of document deletion.
func (h *HNSWIndex) DropIndex(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = nil
	h.byID = make(map[string]int)
	h.entry = -1
	h.maxLevel = 0
	h.live = 0
	h.created = false
	return nil
}

// Dimensions returns the configured dimensionality.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Metric returns the configured distance metric.
func (h *HNSWIndex) Metric() Metric {
	return h.metric
}

// Size returns the number of live (non-tombstoned) vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error {
	return nil
}
