package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grantscout/grantscout/internal/embed"
	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/telemetry"
)

// Engine implements hybrid search over grant records. It is read-only:
// indexes and records are written by ingest, never here.
type Engine struct {
	text     store.TextIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	records  store.RecordStore
	config   EngineConfig
	fusion   *RRFFusion
	lexical  *LexicalMatcher
	semantic *SemanticMatcher
	metrics  *telemetry.QueryMetrics // Optional query telemetry collector
	contacts bool                    // Contact-access grant for sample enrichment
	closed   bool
	mu       sync.RWMutex
}

// Ensure Engine implements the Searcher interface.
var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("engine is closed")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithMetrics sets an optional query metrics collector for telemetry.
// When set, query patterns, latency, degraded requests, and zero-result
// queries are tracked.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithContacts sets the contact-access grant. Without the grant, contact
// fields on sample results stay null.
func WithContacts(granted bool) EngineOption {
	return func(e *Engine) {
		e.contacts = granted
	}
}

// NewEngine creates a hybrid search engine with the given dependencies.
// Returns an error if any required dependency is nil.
func NewEngine(
	text store.TextIndex,
	vectors store.VectorStore,
	embedder embed.Embedder,
	records store.RecordStore,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if text == nil {
		return nil, fmt.Errorf("%w: text index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: record store is required", ErrNilDependency)
	}

	config = config.normalized()
	e := &Engine{
		text:     text,
		vectors:  vectors,
		embedder: embedder,
		records:  records,
		config:   config,
		fusion:   NewRRFFusion(config.RRFConstant),
	}
	e.lexical = newLexicalMatcher(text, config)
	e.semantic = newSemanticMatcher(vectors, records, config)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs the keyword and semantic matchers concurrently, fuses their
// candidates with RRF, hydrates full records, applies filters and project
// dedup, and assembles the response.
//
// Semantic failures degrade to keyword-only results. Keyword infrastructure
// failure, or an unreachable record store, fails the request.
func (e *Engine) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, gserrors.ValidationError("nil search request", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	e.mu.RUnlock()

	keywordQuery := strings.TrimSpace(req.KeywordQuery)
	semanticQuery := strings.TrimSpace(req.SemanticQuery)

	combinedQuery := strings.TrimSpace(keywordQuery + " " + semanticQuery)
	mode := queryMode(keywordQuery, semanticQuery)

	lexResult, vecHits, degraded, err := e.parallelMatch(ctx, keywordQuery, semanticQuery)
	if err != nil {
		return nil, err
	}

	fused := e.fusion.Fuse(lexResult.IDs, vecHits)
	if len(fused) == 0 {
		resp := emptyResponse()
		e.recordMetrics(combinedQuery, mode, 0, degraded, time.Since(start))
		return resp, nil
	}

	hydrated, err := e.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	filtered := ApplyFilters(hydrated, req.Filters)
	surviving := DedupLatest(filtered)
	byCategory, byOrgType := FacetCounts(surviving)

	limit := req.Limit
	if limit <= 0 || limit > e.config.DisplayCap {
		limit = e.config.DisplayCap
	}
	all := truncateRecords(surviving, limit)
	sample := toEnriched(topByFunding(surviving, e.config.SampleSize))
	if !e.enrichContacts(ctx, sample) {
		degraded = true
	}

	resp := &SearchResponse{
		TotalCount:    len(surviving),
		ShowingCount:  len(all),
		ByCategory:    byCategory,
		ByOrgType:     byOrgType,
		AllResults:    all,
		SampleResults: sample,
		Full:          surviving,
	}

	e.recordMetrics(combinedQuery, mode, resp.TotalCount, degraded, time.Since(start))
	slog.Debug("search_complete",
		slog.String("keyword_query", keywordQuery),
		slog.Int("lexical", len(lexResult.IDs)),
		slog.Int("semantic", len(vecHits)),
		slog.Int("fused", len(fused)),
		slog.Int("surviving", resp.TotalCount),
		slog.Bool("degraded", degraded),
		slog.Duration("duration", time.Since(start)))

	return resp, nil
}

// parallelMatch runs the keyword and semantic matchers concurrently.
// Semantic errors degrade to zero candidates unless they are fatal
// (record store unreachable); keyword errors always propagate.
func (e *Engine) parallelMatch(ctx context.Context, keywordQuery, semanticQuery string) (*LexicalResult, []*VectorHit, bool, error) {
	lexResult := &LexicalResult{IDs: []string{}}
	var vecHits []*VectorHit
	var degraded bool

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if keywordQuery == "" {
			return nil
		}
		res, err := e.lexical.Match(gctx, keywordQuery)
		if err != nil {
			return err
		}
		lexResult = res
		return nil
	})

	g.Go(func() error {
		if semanticQuery == "" {
			return nil
		}

		vector, err := e.embedder.Embed(gctx, semanticQuery)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			slog.Warn("query embedding failed, degrading to keyword-only",
				slog.String("error", err.Error()))
			degraded = true
			return nil
		}

		hits, err := e.semantic.Match(gctx, vector, e.config.SemanticLimit, e.config.SemanticThreshold)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if gserrors.IsFatal(err) {
				return err
			}
			slog.Warn("semantic matching failed, degrading to keyword-only",
				slog.String("error", err.Error()))
			degraded = true
			return nil
		}
		vecHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}

	return lexResult, vecHits, degraded || lexResult.Degraded, nil
}

// hydrate fetches full records for the fused candidates in concurrent
// batches, then rebuilds the fused order. Candidates missing from the
// record store (index ahead of records) are dropped and logged.
func (e *Engine) hydrate(ctx context.Context, fused []*FusedRecord) ([]*store.Record, error) {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.RecordID
	}

	batchSize := e.config.HydrateBatch
	numBatches := (len(ids) + batchSize - 1) / batchSize
	batches := make([][]*store.Record, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	for b := 0; b < numBatches; b++ {
		b := b
		g.Go(func() error {
			startIdx := b * batchSize
			endIdx := startIdx + batchSize
			if endIdx > len(ids) {
				endIdx = len(ids)
			}
			records, err := e.records.GetRecords(gctx, ids[startIdx:endIdx])
			if err != nil {
				return gserrors.New(gserrors.ErrCodeStoreUnavailable, "record hydration failed", err)
			}
			batches[b] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*store.Record, len(ids))
	for _, batch := range batches {
		for _, r := range batch {
			byID[r.ID] = r
		}
	}

	// Rebuild fusion order
	out := make([]*store.Record, 0, len(fused))
	missing := 0
	for _, f := range fused {
		r, ok := byID[f.RecordID]
		if !ok {
			missing++
			continue
		}
		out = append(out, r)
	}
	if missing > 0 {
		slog.Warn("fused candidates missing from record store",
			slog.Int("missing", missing),
			slog.Int("fused", len(fused)))
	}
	return out, nil
}

// enrichContacts fills contact fields on the sample with one batched
// lookup. Reports false when the lookup was attempted and failed.
func (e *Engine) enrichContacts(ctx context.Context, sample []*EnrichedRecord) bool {
	if !e.contacts || len(sample) == 0 {
		return true
	}

	contacts, err := e.records.GetContacts(ctx, sampleIDs(sample))
	if err != nil {
		// Enrichment is optional; the sample ships with null contacts.
		slog.Warn("contact enrichment failed",
			slog.Int("sample", len(sample)),
			slog.String("error", err.Error()))
		return false
	}
	attachContacts(sample, contacts)
	return true
}

// Refilter re-applies filters over a previously returned full result set.
// No matcher stage runs; see the package-level Refilter for semantics.
func (e *Engine) Refilter(ctx context.Context, full []*store.Record, f Filters) (*RefilterResult, error) {
	if err := ValidateFilters(f); err != nil {
		return nil, err
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	e.mu.RUnlock()

	res := Refilter(full, f, e.config.DisplayCap, e.config.SampleSize)
	e.enrichContacts(ctx, res.SampleResults)
	return res, nil
}

// queryMode classifies a request for telemetry by which matchers ran.
func queryMode(keywordQuery, semanticQuery string) telemetry.QueryType {
	switch {
	case keywordQuery != "" && semanticQuery != "":
		return telemetry.QueryTypeHybrid
	case semanticQuery != "":
		return telemetry.QueryTypeSemantic
	default:
		return telemetry.QueryTypeLexical
	}
}

// recordMetrics records query telemetry if a metrics collector is configured.
func (e *Engine) recordMetrics(query string, mode telemetry.QueryType, resultCount int, degraded bool, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   mode,
		ResultCount: resultCount,
		Degraded:    degraded,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// emptyResponse is a fully formed zero-match response. Empty results are
// valid, not errors; every count is zero and every collection is non-nil.
func emptyResponse() *SearchResponse {
	return &SearchResponse{
		ByCategory:    map[string]int{},
		ByOrgType:     map[string]int{},
		AllResults:    []*store.Record{},
		SampleResults: []*EnrichedRecord{},
		Full:          []*store.Record{},
	}
}

// Stats returns engine statistics.
func (e *Engine) Stats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	recordCount, err := e.records.Count(context.Background())
	if err != nil {
		recordCount = 0
	}
	return &EngineStats{
		RecordCount: recordCount,
		TextStats:   e.text.Stats(),
		VectorCount: e.vectors.Count(),
	}
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if err := e.text.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vectors.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.records.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
