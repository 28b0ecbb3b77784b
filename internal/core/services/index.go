package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexService = (*Indexer)(nil)

// memoLimit bounds the per-generation query-vector memo.
const memoLimit = 1024

// generation is one immutable, fully built index snapshot.
type generation struct {
	id      uint64
	model   string
	dims    int
	builtAt time.Time

	ids     []string
	vectors [][]float32
	docs    map[string]domain.Facility
	texts   map[string]string

	memoMu sync.Mutex
	memo   map[string][]float32
}

// EmbeddingIndex serves nearest-neighbour queries over the published
// generation. Build is the sole writer; readers load the current generation
// once per call and never observe a partial build.
type EmbeddingIndex struct {
	embedder driven.EmbeddingService
	policy   domain.CallPolicy

	current atomic.Pointer[generation]
	lastID  atomic.Uint64
	buildMu sync.Mutex
}

// NewEmbeddingIndex creates an empty index. Nearest fails with
// domain.ErrIndexEmpty until the first Build.
func NewEmbeddingIndex(embedder driven.EmbeddingService, policy domain.CallPolicy) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder, policy: policy}
}

// Build embeds the whole corpus into a new generation and publishes it.
// The previous generation keeps serving until the swap.
func (x *EmbeddingIndex) Build(ctx context.Context, corpus []domain.Facility) (domain.IndexStats, error) {
	if x.embedder == nil {
		return domain.IndexStats{}, domain.ErrEmbeddingUnavailable
	}
	x.buildMu.Lock()
	defer x.buildMu.Unlock()

	logger.Section("Index Build")

	gen := &generation{
		model:   x.embedder.ModelName(),
		dims:    x.embedder.Dimensions(),
		builtAt: time.Now().UTC(),
		ids:     make([]string, 0, len(corpus)),
		docs:    make(map[string]domain.Facility, len(corpus)),
		texts:   make(map[string]string, len(corpus)),
		memo:    make(map[string][]float32),
	}

	texts := make([]string, 0, len(corpus))
	for _, f := range corpus {
		if err := f.Validate(); err != nil {
			return domain.IndexStats{}, err
		}
		if _, dup := gen.docs[f.ID]; dup {
			return domain.IndexStats{}, fmt.Errorf("%w: duplicate facility id %s", domain.ErrValidation, f.ID)
		}
		text := f.Text()
		gen.ids = append(gen.ids, f.ID)
		gen.docs[f.ID] = f
		gen.texts[f.ID] = text
		texts = append(texts, text)
	}

	if len(texts) > 0 {
		vectors, err := callWithRetry(ctx, x.policy, "embed corpus", func(ctx context.Context) ([][]float32, error) {
			return x.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return domain.IndexStats{}, fmt.Errorf("%w: embed corpus: %v", domain.ErrRetrieval, err)
		}
		if len(vectors) != len(texts) {
			return domain.IndexStats{}, fmt.Errorf("%w: embedder returned %d vectors for %d documents",
				domain.ErrRetrieval, len(vectors), len(texts))
		}
		for i, v := range vectors {
			if gen.dims == 0 {
				gen.dims = len(v)
			}
			if len(v) != gen.dims {
				return domain.IndexStats{}, fmt.Errorf("%w: vector for %s has %d dimensions, want %d",
					domain.ErrRetrieval, gen.ids[i], len(v), gen.dims)
			}
			vectors[i] = normalise(v)
		}
		gen.vectors = vectors
	}

	gen.id = x.lastID.Add(1)
	x.current.Store(gen)

	logger.Info("Published generation %d: %d documents, %d dims", gen.id, len(gen.ids), gen.dims)
	return gen.stats(), nil
}

// Stats describes the published generation.
func (x *EmbeddingIndex) Stats() domain.IndexStats {
	gen := x.current.Load()
	if gen == nil {
		return domain.IndexStats{}
	}
	return gen.stats()
}

// Embed returns the vector for text. Within a generation the same text
// always yields a bit-identical vector.
func (x *EmbeddingIndex) Embed(ctx context.Context, text string) ([]float32, error) {
	return x.embed(ctx, x.current.Load(), text)
}

// Nearest returns at most k neighbours from the published generation,
// highest similarity first, ties broken by ascending id.
func (x *EmbeddingIndex) Nearest(vector []float32, k int) ([]domain.Neighbour, error) {
	gen := x.current.Load()
	if gen == nil {
		return nil, domain.ErrIndexEmpty
	}
	return gen.nearest(vector, k)
}

// Retrieval is the outcome of a retrieve call against one generation.
type Retrieval struct {
	Documents  []domain.RetrievedDocument
	Generation uint64
	EmbedTime  time.Duration
	SearchTime time.Duration
}

// Retrieve embeds text and resolves its k nearest documents against a single
// generation snapshot. Documents with non-positive similarity are dropped.
func (x *EmbeddingIndex) Retrieve(ctx context.Context, text string, k int) (*Retrieval, error) {
	gen := x.current.Load()
	if gen == nil {
		return nil, domain.ErrIndexEmpty
	}

	start := time.Now()
	vector, err := x.embed(ctx, gen, text)
	if err != nil {
		return nil, err
	}
	embedded := time.Now()

	hits, err := gen.nearest(vector, k)
	if err != nil {
		return nil, err
	}

	out := &Retrieval{
		Generation: gen.id,
		EmbedTime:  embedded.Sub(start),
		Documents:  make([]domain.RetrievedDocument, 0, len(hits)),
	}
	for _, h := range hits {
		if h.Similarity <= 0 {
			continue
		}
		out.Documents = append(out.Documents, domain.RetrievedDocument{
			Facility:   gen.docs[h.ID],
			Text:       gen.texts[h.ID],
			Similarity: h.Similarity,
		})
	}
	out.SearchTime = time.Since(embedded)
	return out, nil
}

func (x *EmbeddingIndex) embed(ctx context.Context, gen *generation, text string) ([]float32, error) {
	if gen != nil {
		if v, ok := gen.memoised(text); ok {
			return v, nil
		}
	}
	if x.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	v, err := callWithRetry(ctx, x.policy, "embed query", func(ctx context.Context) ([]float32, error) {
		return x.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrRetrieval, err)
	}
	if gen != nil {
		return gen.remember(text, v), nil
	}
	return v, nil
}

func (g *generation) memoised(text string) ([]float32, bool) {
	g.memoMu.Lock()
	defer g.memoMu.Unlock()
	v, ok := g.memo[text]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// remember stores v unless a concurrent caller got there first, and returns
// the vector every caller of this generation will see for text.
func (g *generation) remember(text string, v []float32) []float32 {
	g.memoMu.Lock()
	defer g.memoMu.Unlock()
	if existing, ok := g.memo[text]; ok {
		return append([]float32(nil), existing...)
	}
	if len(g.memo) < memoLimit {
		g.memo[text] = append([]float32(nil), v...)
	}
	return v
}

func (g *generation) nearest(vector []float32, k int) ([]domain.Neighbour, error) {
	if k <= 0 || len(g.ids) == 0 {
		return []domain.Neighbour{}, nil
	}
	if len(vector) != g.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, generation %d has %d",
			domain.ErrRetrieval, len(vector), g.id, g.dims)
	}
	q := normalise(append([]float32(nil), vector...))

	hits := make([]domain.Neighbour, len(g.ids))
	for i, id := range g.ids {
		hits[i] = domain.Neighbour{ID: id, Similarity: dot(q, g.vectors[i])}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (g *generation) stats() domain.IndexStats {
	return domain.IndexStats{
		Generation: g.id,
		Size:       len(g.ids),
		Dimensions: g.dims,
		Model:      g.model,
		BuiltAt:    g.builtAt,
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalise scales v to unit length in place. Zero vectors are left as is.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Indexer rebuilds the embedding index from the facility store.
type Indexer struct {
	index    *EmbeddingIndex
	store    driven.FacilityStore
	recorder *TelemetryRecorder
}

// NewIndexer creates an indexer. The recorder is optional.
func NewIndexer(index *EmbeddingIndex, store driven.FacilityStore, recorder *TelemetryRecorder) *Indexer {
	return &Indexer{index: index, store: store, recorder: recorder}
}

// Rebuild reads a store snapshot and publishes a new generation.
func (s *Indexer) Rebuild(ctx context.Context) (domain.IndexStats, error) {
	start := time.Now()
	record := domain.RunRecord{
		Type:      domain.RunTypeIndexBuild,
		RunName:   "index_build",
		StartTime: start.UTC(),
		Params:    map[string]string{"embedding_model": s.index.embedderModel()},
		Metrics:   map[string]float64{},
	}

	corpus, err := s.store.List(ctx, nil)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("read facilities: %w", err)
	}

	stats, err := s.index.Build(ctx, corpus)
	record.Metrics["build_ms"] = millis(time.Since(start))
	record.Metrics["documents"] = float64(len(corpus))
	if err != nil {
		record.Status = domain.RunStatusFailed
		record.Params["error"] = err.Error()
		s.recorder.Record(record)
		return domain.IndexStats{}, err
	}

	record.Status = domain.RunStatusFinished
	record.Params["generation"] = fmt.Sprint(stats.Generation)
	record.Metrics["dimensions"] = float64(stats.Dimensions)
	s.recorder.Record(record)
	return stats, nil
}

// Stats describes the published generation.
func (s *Indexer) Stats() domain.IndexStats {
	return s.index.Stats()
}

func (x *EmbeddingIndex) embedderModel() string {
	if x.embedder == nil {
		return ""
	}
	return x.embedder.ModelName()
}
