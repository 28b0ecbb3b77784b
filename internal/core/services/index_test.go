package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

func builtIndex(t *testing.T, corpus []domain.Facility) *EmbeddingIndex {
	t.Helper()
	idx := NewEmbeddingIndex(newLetterEmbedder(), testPolicy)
	_, err := idx.Build(context.Background(), corpus)
	require.NoError(t, err)
	return idx
}

func TestEmbeddingIndex_NearestBeforeBuild(t *testing.T) {
	idx := NewEmbeddingIndex(newLetterEmbedder(), testPolicy)

	_, err := idx.Nearest(make([]float32, 26), 3)
	assert.ErrorIs(t, err, domain.ErrIndexEmpty)
	assert.ErrorIs(t, err, domain.ErrRetrieval)

	_, err = idx.Retrieve(context.Background(), "surgery", 3)
	assert.ErrorIs(t, err, domain.ErrIndexEmpty)
	assert.Zero(t, idx.Stats().Generation)
}

func TestEmbeddingIndex_Build(t *testing.T) {
	idx := NewEmbeddingIndex(newLetterEmbedder(), testPolicy)

	stats, err := idx.Build(context.Background(), ghanaFacilities())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Generation)
	assert.Equal(t, 5, stats.Size)
	assert.Equal(t, 26, stats.Dimensions)
	assert.Equal(t, "mock-embed", stats.Model)

	stats, err = idx.Build(context.Background(), ghanaFacilities()[:2])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Generation)
	assert.Equal(t, 2, idx.Stats().Size)
}

func TestEmbeddingIndex_BuildEmptyCorpus(t *testing.T) {
	idx := builtIndex(t, nil)

	hits, err := idx.Nearest(make([]float32, 26), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEmbeddingIndex_BuildRejectsDuplicates(t *testing.T) {
	idx := NewEmbeddingIndex(newLetterEmbedder(), testPolicy)
	corpus := append(ghanaFacilities(), domain.Facility{ID: "GH-0001"})

	_, err := idx.Build(context.Background(), corpus)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "GH-0001")
	assert.Zero(t, idx.Stats().Generation, "failed build publishes nothing")
}

func TestEmbeddingIndex_BuildRetriesOnce(t *testing.T) {
	embedder := newLetterEmbedder()
	embedder.failures = 1
	idx := NewEmbeddingIndex(embedder, testPolicy)

	_, err := idx.Build(context.Background(), ghanaFacilities())
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount())
}

func TestEmbeddingIndex_BuildGivesUpAfterOneRetry(t *testing.T) {
	embedder := newLetterEmbedder()
	embedder.failures = -1
	idx := NewEmbeddingIndex(embedder, testPolicy)

	_, err := idx.Build(context.Background(), ghanaFacilities())
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.Equal(t, 2, embedder.callCount())
}

func TestEmbeddingIndex_NearestProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"surgery", "icu", "maternity", "mri", "clinic", "volta", "ashanti", "beds", "lab"}

	for trial := 0; trial < 30; trial++ {
		n := rng.Intn(25)
		corpus := make([]domain.Facility, n)
		for i := range corpus {
			var notes []string
			for j := 0; j < 1+rng.Intn(4); j++ {
				notes = append(notes, words[rng.Intn(len(words))])
			}
			corpus[i] = domain.Facility{ID: fmt.Sprintf("F-%03d", rng.Intn(1000)*100+i), Notes: strings.Join(notes, " ")}
		}
		idx := builtIndex(t, corpus)
		query := letterVector(words[rng.Intn(len(words))])

		for _, k := range []int{0, 1, 3, n, n + 5} {
			hits, err := idx.Nearest(query, k)
			require.NoError(t, err)

			assert.LessOrEqual(t, len(hits), k)
			seen := map[string]bool{}
			for i, h := range hits {
				assert.False(t, seen[h.ID], "duplicate id %s", h.ID)
				seen[h.ID] = true
				if i > 0 {
					prev := hits[i-1]
					assert.True(t, prev.Similarity > h.Similarity ||
						(prev.Similarity == h.Similarity && prev.ID < h.ID),
						"hits out of order at %d", i)
				}
			}
		}
	}
}

func TestEmbeddingIndex_NearestTiesByAscendingID(t *testing.T) {
	embedder := &mockEmbedder{dims: 2, fn: func(string) []float32 { return []float32{1, 0} }}
	idx := NewEmbeddingIndex(embedder, testPolicy)
	_, err := idx.Build(context.Background(), []domain.Facility{{ID: "C"}, {ID: "A"}, {ID: "B"}})
	require.NoError(t, err)

	hits, err := idx.Nearest([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ID)
	assert.Equal(t, "B", hits[1].ID)
}

func TestEmbeddingIndex_NearestDimensionMismatch(t *testing.T) {
	idx := builtIndex(t, ghanaFacilities())

	_, err := idx.Nearest([]float32{1, 2, 3}, 3)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestEmbeddingIndex_EmbedIsStableWithinGeneration(t *testing.T) {
	calls := 0
	embedder := &mockEmbedder{dims: 2, fn: func(string) []float32 {
		calls++
		return []float32{float32(calls), 1}
	}}
	idx := NewEmbeddingIndex(embedder, testPolicy)
	_, err := idx.Build(context.Background(), ghanaFacilities())
	require.NoError(t, err)

	first, err := idx.Embed(context.Background(), "which hospitals have an ICU?")
	require.NoError(t, err)
	second, err := idx.Embed(context.Background(), "which hospitals have an ICU?")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first[0] = 99
	third, err := idx.Embed(context.Background(), "which hospitals have an ICU?")
	require.NoError(t, err)
	assert.Equal(t, second, third, "callers cannot mutate the memo")
}

func TestEmbeddingIndex_Retrieve(t *testing.T) {
	idx := builtIndex(t, ghanaFacilities())

	r, err := idx.Retrieve(context.Background(), "Korle Bu Teaching Hospital cardiology", 2)
	require.NoError(t, err)
	require.NotEmpty(t, r.Documents)
	assert.LessOrEqual(t, len(r.Documents), 2)
	assert.Equal(t, uint64(1), r.Generation)
	for _, d := range r.Documents {
		assert.Greater(t, d.Similarity, 0.0)
		assert.Equal(t, d.Facility.Text(), d.Text)
	}
}

func TestEmbeddingIndex_ConcurrentReadersSeeOneGeneration(t *testing.T) {
	genA := make([]domain.Facility, 10)
	genB := make([]domain.Facility, 10)
	for i := range genA {
		genA[i] = domain.Facility{ID: fmt.Sprintf("A-%02d", i), Notes: "surgery icu"}
		genB[i] = domain.Facility{ID: fmt.Sprintf("B-%02d", i), Notes: "surgery icu"}
	}
	idx := builtIndex(t, genA)
	query := letterVector("surgery")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				hits, err := idx.Nearest(query, 10)
				if !assert.NoError(t, err) || !assert.Len(t, hits, 10) {
					return
				}
				prefix := hits[0].ID[:2]
				for _, h := range hits {
					assert.True(t, strings.HasPrefix(h.ID, prefix), "mixed generations in one result")
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		corpus := genA
		if i%2 == 0 {
			corpus = genB
		}
		_, err := idx.Build(context.Background(), corpus)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestIndexer_Rebuild(t *testing.T) {
	store := memory.NewFacilityStore(ghanaFacilities()...)
	runs := memory.NewRunStore()
	recorder := NewTelemetryRecorder(runs, 8)
	indexer := NewIndexer(NewEmbeddingIndex(newLetterEmbedder(), testPolicy), store, recorder)

	stats, err := indexer.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Size)
	assert.Equal(t, stats, indexer.Stats())

	require.NoError(t, recorder.Close())
	records, err := runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.RunTypeIndexBuild, records[0].Type)
	assert.Equal(t, domain.RunStatusFinished, records[0].Status)
	assert.Equal(t, 5.0, records[0].Metrics["documents"])
}

func TestIndexer_RebuildFailureIsRecorded(t *testing.T) {
	embedder := newLetterEmbedder()
	embedder.failures = -1
	runs := memory.NewRunStore()
	recorder := NewTelemetryRecorder(runs, 8)
	indexer := NewIndexer(NewEmbeddingIndex(embedder, testPolicy), memory.NewFacilityStore(ghanaFacilities()...), recorder)

	_, err := indexer.Rebuild(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRetrieval))

	require.NoError(t, recorder.Close())
	records, _ := runs.List(context.Background(), 10)
	require.Len(t, records, 1)
	assert.Equal(t, domain.RunStatusFailed, records[0].Status)
}
