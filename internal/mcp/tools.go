package mcp

import (
	"github.com/grantscout/grantscout/internal/search"
	"github.com/grantscout/grantscout/internal/store"
)

// SearchGrantsInput defines the input schema for the search_grants tool.
// Both query fields are optional; leaving one empty skips that matcher.
type SearchGrantsInput struct {
	KeywordQuery  string `json:"keyword_query,omitempty" jsonschema:"whitespace-separated required terms; a term position may carry pipe-separated alternatives, e.g. 'neural|brain organoid'"`
	SemanticQuery string `json:"semantic_query,omitempty" jsonschema:"free text matched by embedding similarity"`

	Categories []string `json:"categories,omitempty" jsonschema:"restrict to these category labels"`
	OrgTypes   []string `json:"org_types,omitempty" jsonschema:"restrict to these organization types, e.g. company, university"`
	States     []string `json:"states,omitempty" jsonschema:"restrict to these two-letter US state codes"`
	MinFunding float64  `json:"min_funding,omitempty" jsonschema:"minimum funding amount in USD, inclusive"`

	HasPatents      bool `json:"has_patents,omitempty" jsonschema:"only records with linked patents"`
	HasPublications bool `json:"has_publications,omitempty" jsonschema:"only records with linked publications"`
	HasTrials       bool `json:"has_trials,omitempty" jsonschema:"only records with linked clinical trials"`

	Limit int `json:"limit,omitempty" jsonschema:"maximum number of listed results, default 100"`
}

// filters converts the tool input to engine filters.
func (in SearchGrantsInput) filters() search.Filters {
	return search.Filters{
		Categories:      in.Categories,
		OrgTypes:        in.OrgTypes,
		States:          in.States,
		MinFunding:      in.MinFunding,
		HasPatents:      in.HasPatents,
		HasPublications: in.HasPublications,
		HasTrials:       in.HasTrials,
	}
}

// RefilterGrantsInput defines the input schema for the refilter_grants
// tool. The filter fields fully replace the previous filter combination;
// omitted fields mean "not active", not "keep the old value".
type RefilterGrantsInput struct {
	ResultSetID string `json:"result_set_id" jsonschema:"result set to refilter, from a previous search_grants response"`

	Categories []string `json:"categories,omitempty" jsonschema:"restrict to these category labels"`
	OrgTypes   []string `json:"org_types,omitempty" jsonschema:"restrict to these organization types, e.g. company, university"`
	States     []string `json:"states,omitempty" jsonschema:"restrict to these two-letter US state codes"`
	MinFunding float64  `json:"min_funding,omitempty" jsonschema:"minimum funding amount in USD, inclusive"`

	HasPatents      bool `json:"has_patents,omitempty" jsonschema:"only records with linked patents"`
	HasPublications bool `json:"has_publications,omitempty" jsonschema:"only records with linked publications"`
	HasTrials       bool `json:"has_trials,omitempty" jsonschema:"only records with linked clinical trials"`
}

// filters converts the tool input to engine filters.
func (in RefilterGrantsInput) filters() search.Filters {
	return search.Filters{
		Categories:      in.Categories,
		OrgTypes:        in.OrgTypes,
		States:          in.States,
		MinFunding:      in.MinFunding,
		HasPatents:      in.HasPatents,
		HasPublications: in.HasPublications,
		HasTrials:       in.HasTrials,
	}
}

// GrantsOutput is the shared output schema of search_grants and
// refilter_grants.
type GrantsOutput struct {
	// ResultSetID keys the cached full result set. Pass it to
	// refilter_grants to re-filter without re-searching.
	ResultSetID string `json:"result_set_id" jsonschema:"pass to refilter_grants to toggle filters on this result set without a new search"`

	TotalCount   int `json:"total_count" jsonschema:"surviving records before display truncation"`
	ShowingCount int `json:"showing_count" jsonschema:"records listed in all_results"`

	ByCategory map[string]int `json:"by_category" jsonschema:"facet counts by category label"`
	ByOrgType  map[string]int `json:"by_org_type" jsonschema:"facet counts by organization type"`

	AllResults    []*store.Record          `json:"all_results" jsonschema:"matching records in relevance order"`
	SampleResults []*search.EnrichedRecord `json:"sample_results" jsonschema:"top records by funding, with contact fields when access is granted"`
}

// CorpusStatusInput defines the input schema for the corpus_status tool (no parameters).
type CorpusStatusInput struct{}

// CorpusStatusOutput defines the output schema for the corpus_status tool.
type CorpusStatusOutput struct {
	Records    RecordStats   `json:"records"`
	Embeddings EmbeddingInfo `json:"embeddings"`
}

// RecordStats contains corpus and index counts.
type RecordStats struct {
	RecordCount  int `json:"record_count"`  // Records in the store
	IndexedCount int `json:"indexed_count"` // Documents in the keyword index
	VectorCount  int `json:"vector_count"`  // Vectors in the semantic index
}

// EmbeddingInfo describes the active embedder. AI clients use it to decide
// whether a semantic_query is worth sending: with SemanticAvailable false,
// searches degrade to keyword-only.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Runtime state
	ActualModel       string `json:"actual_model"`
	Dimensions        int    `json:"dimensions"`
	Status            string `json:"status"` // "ready" or "unavailable"
	SemanticAvailable bool   `json:"semantic_available"`
}
