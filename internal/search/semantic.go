package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/store"
)

// vectorStrategy is one way to produce semantic candidates. Strategies run
// in declaration order and the first success short-circuits.
type vectorStrategy struct {
	name string
	run  func(ctx context.Context, vector []float32, limit int) ([]*VectorHit, error)
}

// SemanticMatcher finds records similar to a query embedding. Only records
// with a stored embedding can match. The primary path queries the HNSW
// index; when it fails, an exact scan over stored embeddings answers at
// reduced candidate count.
type SemanticMatcher struct {
	vectors    store.VectorStore
	records    store.RecordStore
	config     EngineConfig
	strategies []vectorStrategy
}

func newSemanticMatcher(vectors store.VectorStore, records store.RecordStore, config EngineConfig) *SemanticMatcher {
	m := &SemanticMatcher{vectors: vectors, records: records, config: config}
	m.strategies = []vectorStrategy{
		{name: "hnsw", run: m.searchIndex},
		{name: "exact_scan", run: m.scanEmbeddings},
	}
	return m
}

// Match returns up to limit hits ordered by descending cosine similarity,
// dropping hits below threshold. An empty vector degrades to no candidates.
func (m *SemanticMatcher) Match(ctx context.Context, vector []float32, limit int, threshold float64) ([]*VectorHit, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	var lastErr error
	for _, strat := range m.strategies {
		hits, err := strat.run(ctx, vector, limit)
		if err != nil {
			lastErr = err
			slog.Warn("semantic strategy failed, trying next",
				slog.String("strategy", strat.name),
				slog.String("error", err.Error()))
			continue
		}
		return aboveThreshold(hits, threshold), nil
	}
	return nil, lastErr
}

// searchIndex answers from the HNSW index. An empty index is reported as an
// error so the exact scan gets a chance; the index can lag the record store
// when a rebuild is pending.
func (m *SemanticMatcher) searchIndex(ctx context.Context, vector []float32, limit int) ([]*VectorHit, error) {
	if m.vectors.Count() == 0 {
		return nil, fmt.Errorf("vector index is empty")
	}

	results, err := m.vectors.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]*VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, &VectorHit{RecordID: r.ID, Similarity: float64(r.Score)})
	}
	return hits, nil
}

// scanEmbeddings computes exact cosine similarity against every stored
// embedding. Result count is capped at ScanLimit regardless of the caller's
// limit. Embeddings with a different dimension are skipped, not errored;
// they belong to a previous embedder and a rebuild is already advised at
// ingest time.
func (m *SemanticMatcher) scanEmbeddings(ctx context.Context, vector []float32, limit int) ([]*VectorHit, error) {
	stored, err := m.records.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, gserrors.New(gserrors.ErrCodeStoreUnavailable,
			"record store unreachable during embedding scan", err)
	}

	if limit > m.config.ScanLimit {
		limit = m.config.ScanLimit
	}

	queryNorm := vectorNorm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	hits := make([]*VectorHit, 0, len(stored))
	skipped := 0
	for id, emb := range stored {
		if len(emb) != len(vector) {
			skipped++
			continue
		}
		hits = append(hits, &VectorHit{RecordID: id, Similarity: cosineAgainst(vector, queryNorm, emb)})
	}
	if skipped > 0 {
		slog.Warn("embeddings skipped during exact scan, dimension differs from query",
			slog.Int("skipped", skipped),
			slog.Int("query_dimensions", len(vector)))
	}

	// Map iteration order is random; tie-break on ID for a stable ordering.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].RecordID < hits[j].RecordID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func aboveThreshold(hits []*VectorHit, threshold float64) []*VectorHit {
	out := make([]*VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// cosineAgainst computes cosine similarity between the query (with its norm
// precomputed) and one stored embedding.
func cosineAgainst(query []float32, queryNorm float64, emb []float32) float64 {
	var dot, sumSquares float64
	for i, v := range emb {
		dot += float64(v) * float64(query[i])
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return 0
	}
	return dot / (queryNorm * math.Sqrt(sumSquares))
}

func vectorNorm(v []float32) float64 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	return math.Sqrt(sumSquares)
}
