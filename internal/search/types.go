// Package search provides hybrid retrieval over grant records, combining
// keyword matching and semantic search. Results are fused using Reciprocal
// Rank Fusion (RRF), filtered, and deduplicated by project before assembly.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/store"
)

// Searcher is the read-side interface of the engine.
type Searcher interface {
	// Search executes a hybrid query and returns the assembled response.
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)

	// Refilter re-applies filters to a previously returned result set
	// without touching the indexes.
	Refilter(ctx context.Context, full []*store.Record, f Filters) (*RefilterResult, error)

	// Stats returns engine statistics.
	Stats() *EngineStats

	// Close releases all resources.
	Close() error
}

// SearchRequest is one search invocation. Both query fields are optional;
// an empty keyword query skips keyword matching and an empty semantic query
// skips embedding entirely.
type SearchRequest struct {
	// KeywordQuery is whitespace-separated search positions. A position may
	// carry pipe-separated alternatives ("neural|brain organoid" means
	// (neural OR brain) AND organoid).
	KeywordQuery string `json:"keyword_query"`

	// SemanticQuery is free text embedded for vector search.
	SemanticQuery string `json:"semantic_query"`

	// Filters restrict the result set after fusion.
	Filters Filters `json:"filters"`

	// Limit caps all_results (default and maximum: display cap).
	Limit int `json:"limit" validate:"gte=0"`
}

// Filters restrict search results. Zero values mean "not active": an empty
// slice does not constrain its dimension and false booleans do not require
// anything. MinFunding of 0 passes every record.
type Filters struct {
	Categories []string `json:"categories" validate:"omitempty,dive,min=1"`
	OrgTypes   []string `json:"org_types" validate:"omitempty,dive,min=1"`
	States     []string `json:"states" validate:"omitempty,dive,len=2"`

	MinFunding float64 `json:"min_funding" validate:"gte=0"`

	HasPatents      bool `json:"has_patents"`
	HasPublications bool `json:"has_publications"`
	HasTrials       bool `json:"has_trials"`
}

// IsZero reports whether no filter dimension is active.
func (f Filters) IsZero() bool {
	return len(f.Categories) == 0 && len(f.OrgTypes) == 0 && len(f.States) == 0 &&
		f.MinFunding == 0 && !f.HasPatents && !f.HasPublications && !f.HasTrials
}

var validate = validator.New()

// Validate rejects malformed requests before any matching work runs.
func (r *SearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			code := gserrors.ErrCodeInvalidInput
			switch {
			case strings.HasPrefix(fe.Namespace(), "SearchRequest.Filters"):
				code = gserrors.ErrCodeInvalidFilter
			case fe.Field() == "Limit":
				code = gserrors.ErrCodeInvalidLimit
			}
			return gserrors.New(code, "invalid search request", err).
				WithDetail("field", fe.Namespace()).
				WithDetail("constraint", fe.Tag())
		}
		return gserrors.ValidationError("invalid search request", err)
	}
	return nil
}

// ValidateFilters rejects malformed filters for the refilter path.
func ValidateFilters(f Filters) error {
	if err := validate.Struct(f); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return gserrors.New(gserrors.ErrCodeInvalidFilter, "invalid filters", err).
				WithDetail("field", fe.Namespace()).
				WithDetail("constraint", fe.Tag())
		}
		return gserrors.New(gserrors.ErrCodeInvalidFilter, "invalid filters", err)
	}
	return nil
}

// EnrichedRecord is a record plus its contact columns. Contact fields are
// always present in JSON; they are null when the record has no contact row
// or contact access is not granted.
type EnrichedRecord struct {
	store.Record

	ContactName  *string `json:"contact_name"`
	ContactEmail *string `json:"contact_email"`
}

// SearchResponse is the assembled result of one search.
type SearchResponse struct {
	// TotalCount is the number of surviving records before display truncation.
	TotalCount int `json:"total_count"`

	// ShowingCount is len(AllResults) after display truncation.
	ShowingCount int `json:"showing_count"`

	// ByCategory and ByOrgType are facet counts over the surviving records.
	ByCategory map[string]int `json:"by_category"`
	ByOrgType  map[string]int `json:"by_org_type"`

	// AllResults is the fused-order result list, truncated to the display cap.
	AllResults []*store.Record `json:"all_results"`

	// SampleResults is the top records by funding from the FULL surviving
	// list, with contact enrichment when granted.
	SampleResults []*EnrichedRecord `json:"sample_results"`

	// Full is the complete surviving list before display truncation. Not
	// serialized; callers hold it to back interactive refiltering.
	Full []*store.Record `json:"-"`
}

// RefilterResult is the response shape of an interactive refilter. Facet
// counts use cross-filter semantics: each dimension is counted with every
// active filter applied except its own.
type RefilterResult struct {
	TotalCount   int `json:"total_count"`
	ShowingCount int `json:"showing_count"`

	ByCategory map[string]int `json:"by_category"`
	ByOrgType  map[string]int `json:"by_org_type"`

	AllResults    []*store.Record   `json:"all_results"`
	SampleResults []*EnrichedRecord `json:"sample_results"`
}

// VectorHit is one semantic match.
type VectorHit struct {
	// RecordID identifies the matched record.
	RecordID string

	// Similarity is cosine similarity in [threshold, 1].
	Similarity float64
}

// EngineStats provides statistics about the search engine.
type EngineStats struct {
	// RecordCount is the number of records in the store.
	RecordCount int

	// TextStats contains keyword index statistics.
	TextStats *store.TextIndexStats

	// VectorCount is the number of vectors in the store.
	VectorCount int
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// RRFConstant is the RRF fusion constant k (default: 60).
	RRFConstant int

	// SemanticThreshold is the minimum cosine similarity for a semantic
	// match (default: 0.35).
	SemanticThreshold float64

	// SemanticLimit is the maximum number of semantic candidates (default: 1000).
	SemanticLimit int

	// ScanLimit caps candidates from the exact-scan fallback (default: 1000).
	ScanLimit int

	// VariantPageSize is the page size for keyword sub-query pagination
	// (default: 1000).
	VariantPageSize int

	// VariantCap is the hard per-sub-query retrieval cap (default: 15000).
	VariantCap int

	// MaxSubqueries caps total keyword sub-queries per search (default: 64).
	// Sub-queries beyond the cap are skipped and logged.
	MaxSubqueries int

	// Fanout is the number of keyword sub-queries running concurrently
	// (default: 8).
	Fanout int

	// SubqueryTimeout bounds one body-column sub-query (default: 3s).
	SubqueryTimeout time.Duration

	// TermsTimeout bounds one terms-column sub-query (default: 1.2s).
	// Terms lookups are best effort; pages retrieved before the deadline
	// are kept.
	TermsTimeout time.Duration

	// DisplayCap is the maximum size of all_results (default: 100).
	DisplayCap int

	// SampleSize is the number of top-funded sample results (default: 10).
	SampleSize int

	// HydrateBatch is the batch size for record hydration (default: 500).
	HydrateBatch int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		RRFConstant:       60,
		SemanticThreshold: 0.35,
		SemanticLimit:     1000,
		ScanLimit:         1000,
		VariantPageSize:   1000,
		VariantCap:        15000,
		MaxSubqueries:     64,
		Fanout:            8,
		SubqueryTimeout:   3 * time.Second,
		TermsTimeout:      1200 * time.Millisecond,
		DisplayCap:        100,
		SampleSize:        10,
		HydrateBatch:      500,
	}
}

// normalized fills zero fields with defaults so a partially populated
// config never disables pagination or fan-out.
func (c EngineConfig) normalized() EngineConfig {
	def := DefaultConfig()
	if c.RRFConstant <= 0 {
		c.RRFConstant = def.RRFConstant
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = def.SemanticThreshold
	}
	if c.SemanticLimit <= 0 {
		c.SemanticLimit = def.SemanticLimit
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = def.ScanLimit
	}
	if c.VariantPageSize <= 0 {
		c.VariantPageSize = def.VariantPageSize
	}
	if c.VariantCap <= 0 {
		c.VariantCap = def.VariantCap
	}
	if c.MaxSubqueries <= 0 {
		c.MaxSubqueries = def.MaxSubqueries
	}
	if c.Fanout <= 0 {
		c.Fanout = def.Fanout
	}
	if c.SubqueryTimeout <= 0 {
		c.SubqueryTimeout = def.SubqueryTimeout
	}
	if c.TermsTimeout <= 0 {
		c.TermsTimeout = def.TermsTimeout
	}
	if c.DisplayCap <= 0 {
		c.DisplayCap = def.DisplayCap
	}
	if c.SampleSize <= 0 {
		c.SampleSize = def.SampleSize
	}
	if c.HydrateBatch <= 0 {
		c.HydrateBatch = def.HydrateBatch
	}
	return c
}
