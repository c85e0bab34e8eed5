package search

import "github.com/grantscout/grantscout/internal/store"

// facetDimension names a countable facet for cross-filter counting.
type facetDimension int

const (
	facetCategory facetDimension = iota
	facetOrgType
)

// Refilter reapplies a filter combination over an already-fetched full
// result set. It is a pure function: no matcher stage runs, the input is
// never mutated, and identical inputs yield identical output, so clients
// can toggle filters against a cached result set without re-searching.
//
// Facet counts use cross-filter semantics: each dimension is counted with
// every active filter applied except its own, then counted by that
// dimension. That makes the number next to an inactive chip answer "what
// would I get if I added this value", instead of recounting the already
// fully filtered set.
func Refilter(full []*store.Record, f Filters, displayCap, sampleSize int) *RefilterResult {
	filtered := ApplyFilters(full, f)
	surviving := DedupLatest(filtered)

	all := truncateRecords(surviving, displayCap)

	return &RefilterResult{
		TotalCount:    len(surviving),
		ShowingCount:  len(all),
		ByCategory:    crossFilterCounts(full, f, facetCategory),
		ByOrgType:     crossFilterCounts(full, f, facetOrgType),
		AllResults:    all,
		SampleResults: toEnriched(topByFunding(surviving, sampleSize)),
	}
}

// crossFilterCounts counts one facet dimension with that dimension's own
// filter lifted and all other active filters still applied.
func crossFilterCounts(full []*store.Record, f Filters, dim facetDimension) map[string]int {
	relaxed := f
	switch dim {
	case facetCategory:
		relaxed.Categories = nil
	case facetOrgType:
		relaxed.OrgTypes = nil
	}

	survivors := DedupLatest(ApplyFilters(full, relaxed))

	counts := make(map[string]int)
	for _, r := range survivors {
		var v string
		switch dim {
		case facetCategory:
			v = r.Category
		case facetOrgType:
			v = r.OrgType
		}
		if v != "" {
			counts[v]++
		}
	}
	return counts
}
