// Package index holds a run's retrieval units with their embeddings and
// answers nearest-neighbour queries over them.
package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/model"
)

// DefaultBatchSize is the largest number of texts sent in one embedding call.
const DefaultBatchSize = 100

// entityDescriptor is appended to entity names to pull review-style passages.
const entityDescriptor = "review features specifications"

// Embedder maps texts to vectors, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an Index.
type Options struct {
	BatchSize int
}

// Filter restricts query results. A nil Filter matches every unit.
type Filter struct {
	SourceType model.SourceType
	Match      func(model.ContentUnit) bool
}

func (f *Filter) allows(u model.ContentUnit) bool {
	if f == nil {
		return true
	}
	if f.SourceType != "" && u.SourceType != f.SourceType {
		return false
	}
	if f.Match != nil && !f.Match(u) {
		return false
	}
	return true
}

type entry struct {
	unit   model.ContentUnit
	vector []float32
}

// Index is an in-memory vector store scoped to one run. It is safe for
// concurrent use.
type Index struct {
	embedder  Embedder
	batchSize int

	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

// New creates an empty Index backed by embedder.
func New(embedder Embedder, opts Options) *Index {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Index{
		embedder:  embedder,
		batchSize: opts.BatchSize,
		entries:   make(map[string]entry),
	}
}

// Build embeds units in batches and replaces the index contents with them.
// Within one call a repeated id replaces the earlier unit but keeps its
// position. An empty units slice clears the index.
func (x *Index) Build(ctx context.Context, units []model.ContentUnit) error {
	if len(units) == 0 {
		x.Reset()
		return nil
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}

	vectors := make([][]float32, 0, len(units))
	for start := 0; start < len(texts); start += x.batchSize {
		end := min(start+x.batchSize, len(texts))
		batch, err := x.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return eris.Wrapf(err, "index: embed batch %d-%d", start, end)
		}
		if len(batch) != end-start {
			return eris.Errorf("index: embedder returned %d vectors for %d texts", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	order := make([]string, 0, len(units))
	entries := make(map[string]entry, len(units))
	for i, u := range units {
		if _, ok := entries[u.UnitID]; !ok {
			order = append(order, u.UnitID)
		}
		entries[u.UnitID] = entry{unit: u, vector: vectors[i]}
	}

	x.mu.Lock()
	x.order = order
	x.entries = entries
	x.mu.Unlock()

	zap.L().Info("index: built",
		zap.Int("units", len(units)),
		zap.Int("total", len(entries)),
	)
	return nil
}

type scored struct {
	unit  model.ContentUnit
	score float64
}

// Query returns up to k units most similar to text, best first. An empty
// index or a non-positive k yields no results without calling the embedder.
func (x *Index) Query(ctx context.Context, text string, k int, filter *Filter) ([]model.ContentUnit, error) {
	if k <= 0 || x.Len() == 0 {
		return nil, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, eris.Wrap(err, "index: embed query")
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("index: embedder returned %d vectors for query", len(vecs))
	}
	q := vecs[0]

	x.mu.RLock()
	candidates := make([]scored, 0, len(x.order))
	for _, id := range x.order {
		e := x.entries[id]
		if !filter.allows(e.unit) {
			continue
		}
		candidates = append(candidates, scored{unit: e.unit, score: cosine(q, e.vector)})
	}
	x.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	out := make([]model.ContentUnit, k)
	for i := range out {
		out[i] = candidates[i].unit
	}
	return out, nil
}

// QueryForEntity retrieves passages describing the named entity.
func (x *Index) QueryForEntity(ctx context.Context, name string, k int) ([]model.ContentUnit, error) {
	return x.Query(ctx, strings.TrimSpace(name)+" "+entityDescriptor, k, nil)
}

// Len returns the number of indexed units.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Reset drops every unit and vector.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.order = nil
	x.entries = make(map[string]entry)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
