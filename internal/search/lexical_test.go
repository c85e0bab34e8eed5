package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/store"
)

// =============================================================================
// Lexical Matcher Tests
// =============================================================================

// grantDocs is a small corpus spanning the wheat and organoid scenarios.
func grantDocs() []*store.TextDoc {
	return []*store.TextDoc{
		{ID: "G1", Body: "Wheat genomics consortium for stem rust resistance", Terms: "wheat\ngenomics\nrust"},
		{ID: "G2", Body: "Drought tolerance in wheat cultivars", Terms: "wheat\ndrought"},
		{ID: "G3", Body: "Functional genomics of maize development", Terms: "genomics\nmaize"},
		{ID: "G4", Body: "Neural organoid models of epilepsy", Terms: "organoid\nneural"},
		{ID: "G5", Body: "Vascularization of brain organoids", Terms: "organoid\nbrain"},
		{ID: "G6", Body: "Organoid biobank infrastructure", Terms: "organoid"},
		{ID: "G7", Body: "Neural crest cell migration", Terms: "neural"},
	}
}

func newTestLexicalMatcher(index *fakeTextIndex, mutate ...func(*EngineConfig)) *LexicalMatcher {
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return newLexicalMatcher(index, cfg)
}

func TestLexicalMatcher_SingleTerm(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "wheat")

	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G2"}, res.IDs)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, res.Positions)
	// "wheat" and its plural, each against both columns.
	assert.Equal(t, 4, res.Subqueries)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)
}

func TestLexicalMatcher_IntersectsAcrossPositions(t *testing.T) {
	// Given: G1 mentions both wheat and genomics, G2 only wheat, G3 only
	// genomics
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	// When: searching both words
	res, err := m.Match(context.Background(), "wheat genomics")

	// Then: only the record containing every position survives
	require.NoError(t, err)
	assert.Equal(t, []string{"G1"}, res.IDs)
	assert.Equal(t, 2, res.Positions)
}

func TestLexicalMatcher_SynonymGroupUnions(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "neural|brain organoid")

	require.NoError(t, err)
	// G4 is a neural organoid, G5 a brain organoid. G6 has no neural or
	// brain mention, G7 no organoid. Order follows the first position's
	// discovery order.
	assert.Equal(t, []string{"G4", "G5"}, res.IDs)
}

func TestLexicalMatcher_MorphologicalVariants(t *testing.T) {
	t.Run("singular query finds plural text", func(t *testing.T) {
		index := newFakeTextIndex(
			&store.TextDoc{ID: "A1", Body: "Single cell atlas of the mouse cortex"},
			&store.TextDoc{ID: "A2", Body: "Dynamics of cells under shear stress"},
		)
		m := newTestLexicalMatcher(index)

		res, err := m.Match(context.Background(), "cell")

		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, res.IDs)
	})

	t.Run("plural query finds singular text", func(t *testing.T) {
		index := newFakeTextIndex(
			&store.TextDoc{ID: "B1", Body: "Monoclonal antibody engineering"},
			&store.TextDoc{ID: "B2", Body: "Broadly neutralizing antibodies for influenza"},
		)
		m := newTestLexicalMatcher(index)

		res, err := m.Match(context.Background(), "antibodies")

		require.NoError(t, err)
		// The typed form is searched before its variants.
		assert.Equal(t, []string{"B2", "B1"}, res.IDs)
	})
}

func TestLexicalMatcher_AcronymsMatchAsTyped(t *testing.T) {
	index := newFakeTextIndex(
		&store.TextDoc{ID: "C1", Body: "Ribosomal dna barcoding of soil fungi"},
		&store.TextDoc{ID: "C2", Body: "Long read dnas assembly pipeline"},
	)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "DNA")

	require.NoError(t, err)
	// Case-insensitive exact word match, no plural expansion.
	assert.Equal(t, []string{"C1"}, res.IDs)
	assert.Equal(t, 2, res.Subqueries, "an acronym searches one variant against two columns")
}

func TestLexicalMatcher_TermsColumnContributes(t *testing.T) {
	index := newFakeTextIndex(
		&store.TextDoc{ID: "T1", Body: "High resolution imaging platform", Terms: "microscopy\nneuroimaging"},
		&store.TextDoc{ID: "T2", Body: "Cryo electron microscopy of membrane proteins"},
	)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "microscopy")

	require.NoError(t, err)
	// T2 matches in body, T1 only in curated terms; both count.
	assert.ElementsMatch(t, []string{"T1", "T2"}, res.IDs)
}

func TestLexicalMatcher_EmptyQuery(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	for _, query := range []string{"", "   ", "|", " | "} {
		res, err := m.Match(context.Background(), query)

		require.NoError(t, err, "query %q", query)
		assert.NotNil(t, res.IDs, "query %q", query)
		assert.Empty(t, res.IDs, "query %q", query)
	}
	assert.Equal(t, 0, index.callCount(), "no tokens means no index round trips")
}

func TestLexicalMatcher_NoMatchesIsNotAnError(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "unobtainium")

	require.NoError(t, err)
	assert.Empty(t, res.IDs)
	assert.False(t, res.Degraded)
}

func TestLexicalMatcher_EmptyPositionEmptiesIntersection(t *testing.T) {
	// A position that executed and matched nothing is a real AND miss,
	// not a degraded one.
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "wheat unobtainium")

	require.NoError(t, err)
	assert.Empty(t, res.IDs)
	assert.False(t, res.Degraded)
}

// =============================================================================
// Degradation Tests
// =============================================================================

func TestLexicalMatcher_FailedVariantExcluded(t *testing.T) {
	// Given: only the generated plural variant fails
	index := newFakeTextIndex(grantDocs()...)
	index.failTerm(store.ColumnBody, "wheats", errors.New("index shard offline"))
	index.failTerm(store.ColumnTerms, "wheats", errors.New("index shard offline"))
	m := newTestLexicalMatcher(index)

	// When: searching
	res, err := m.Match(context.Background(), "wheat")

	// Then: surviving sub-queries still answer, flagged degraded
	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G2"}, res.IDs)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Failed)
}

func TestLexicalMatcher_FullyFailedPositionDegradesOut(t *testing.T) {
	// Given: every sub-query of the wheat position fails
	index := newFakeTextIndex(grantDocs()...)
	for _, term := range []string{"wheat", "wheats"} {
		index.failTerm(store.ColumnBody, term, errors.New("io timeout"))
		index.failTerm(store.ColumnTerms, term, errors.New("io timeout"))
	}
	m := newTestLexicalMatcher(index)

	// When: searching two positions
	res, err := m.Match(context.Background(), "wheat genomics")

	// Then: the dead position drops out of the AND instead of forcing an
	// empty result
	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G3"}, res.IDs)
	assert.True(t, res.Degraded)
	assert.Equal(t, 4, res.Failed)
}

func TestLexicalMatcher_AllSubqueriesFailedIsFatal(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	index.failAll = true
	m := newTestLexicalMatcher(index)

	res, err := m.Match(context.Background(), "wheat genomics")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, gserrors.ErrCodeStoreUnavailable, gserrors.GetCode(err))
	assert.True(t, gserrors.IsFatal(err))
}

func TestLexicalMatcher_CancelledContext(t *testing.T) {
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, "wheat")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Pagination and Cap Tests
// =============================================================================

func TestLexicalMatcher_PagesThroughLargeMatchSets(t *testing.T) {
	docs := make([]*store.TextDoc, 7)
	for i := range docs {
		docs[i] = &store.TextDoc{
			ID:   fmt.Sprintf("Z%d", i+1),
			Body: fmt.Sprintf("Zebrafish developmental screen cohort %d", i+1),
		}
	}
	index := newFakeTextIndex(docs...)
	m := newTestLexicalMatcher(index, func(cfg *EngineConfig) {
		cfg.VariantPageSize = 3
	})

	res, err := m.Match(context.Background(), "zebrafish")

	require.NoError(t, err)
	assert.Len(t, res.IDs, 7)
	assert.False(t, res.Degraded)

	// A short page ends the walk: offsets 0, 3, 6.
	calls := index.searchesFor(store.ColumnBody, "zebrafish")
	require.Len(t, calls, 3)
	assert.Equal(t, 0, calls[0].offset)
	assert.Equal(t, 3, calls[1].offset)
	assert.Equal(t, 6, calls[2].offset)
}

func TestLexicalMatcher_VariantCapBoundsRetrieval(t *testing.T) {
	docs := make([]*store.TextDoc, 10)
	for i := range docs {
		docs[i] = &store.TextDoc{
			ID:   fmt.Sprintf("M%d", i+1),
			Body: fmt.Sprintf("Maize kernel phenotype line %d", i+1),
		}
	}
	index := newFakeTextIndex(docs...)
	m := newTestLexicalMatcher(index, func(cfg *EngineConfig) {
		cfg.VariantPageSize = 2
		cfg.VariantCap = 4
	})

	res, err := m.Match(context.Background(), "maize")

	require.NoError(t, err)
	assert.Len(t, res.IDs, 4, "retrieval stops at the per-variant cap")
	assert.True(t, res.Degraded, "a capped variant reports partial results")
}

func TestLexicalMatcher_SubqueryCapSkipsLaterPositions(t *testing.T) {
	// Given: a cap that admits only the first position's sub-queries
	index := newFakeTextIndex(grantDocs()...)
	m := newTestLexicalMatcher(index, func(cfg *EngineConfig) {
		cfg.MaxSubqueries = 4
	})

	// When: searching two positions
	res, err := m.Match(context.Background(), "wheat genomics")

	// Then: the skipped position degrades out of the intersection
	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G2"}, res.IDs)
	assert.True(t, res.Degraded)
	assert.Equal(t, 4, res.Subqueries)
	assert.Equal(t, 4, res.Skipped)
}

func TestLexicalMatcher_TermsTimeoutKeepsFetchedPages(t *testing.T) {
	// Given: five curated-terms matches and a terms column that stalls
	// after the first page
	docs := make([]*store.TextDoc, 5)
	for i := range docs {
		docs[i] = &store.TextDoc{
			ID:    fmt.Sprintf("T%d", i+1),
			Body:  fmt.Sprintf("Imaging infrastructure grant %d", i+1),
			Terms: "microscopy",
		}
	}
	index := newFakeTextIndex(docs...)
	index.hangFrom(store.ColumnTerms, "microscopy", 2)
	m := newTestLexicalMatcher(index, func(cfg *EngineConfig) {
		cfg.VariantPageSize = 2
		cfg.TermsTimeout = 25 * time.Millisecond
	})

	// When: searching
	res, err := m.Match(context.Background(), "microscopy")

	// Then: pages fetched before the deadline are kept, flagged degraded
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, res.IDs)
	assert.True(t, res.Degraded)
	assert.Equal(t, 0, res.Failed, "a terms timeout is partial, not failed")
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkLexicalMatcher_TwoPositions(b *testing.B) {
	docs := make([]*store.TextDoc, 200)
	for i := range docs {
		body := "wheat genomics cohort"
		if i%3 == 0 {
			body = "wheat drought cohort"
		}
		docs[i] = &store.TextDoc{ID: fmt.Sprintf("B%03d", i), Body: body}
	}
	index := newFakeTextIndex(docs...)
	m := newTestLexicalMatcher(index)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(context.Background(), "wheat genomics"); err != nil {
			b.Fatal(err)
		}
	}
}
