package mcp

import (
	"github.com/grantscout/grantscout/internal/search"
	"github.com/grantscout/grantscout/internal/store"
)

// toGrantsOutput shapes a search response for the wire. The engine already
// guarantees non-nil collections on every path, including zero-match
// responses, so no defaulting happens here.
func toGrantsOutput(resultSetID string, resp *search.SearchResponse) *GrantsOutput {
	if resp == nil {
		return emptyGrantsOutput(resultSetID)
	}
	return &GrantsOutput{
		ResultSetID:   resultSetID,
		TotalCount:    resp.TotalCount,
		ShowingCount:  resp.ShowingCount,
		ByCategory:    resp.ByCategory,
		ByOrgType:     resp.ByOrgType,
		AllResults:    resp.AllResults,
		SampleResults: resp.SampleResults,
	}
}

// toRefilterOutput shapes a refilter result for the wire. The result-set ID
// is echoed back unchanged: refiltering never creates a new cached set.
func toRefilterOutput(resultSetID string, res *search.RefilterResult) *GrantsOutput {
	if res == nil {
		return emptyGrantsOutput(resultSetID)
	}
	return &GrantsOutput{
		ResultSetID:   resultSetID,
		TotalCount:    res.TotalCount,
		ShowingCount:  res.ShowingCount,
		ByCategory:    res.ByCategory,
		ByOrgType:     res.ByOrgType,
		AllResults:    res.AllResults,
		SampleResults: res.SampleResults,
	}
}

// emptyGrantsOutput is a fully formed zero-match output. Collections are
// non-nil so clients always see arrays and objects, never JSON null.
func emptyGrantsOutput(resultSetID string) *GrantsOutput {
	return &GrantsOutput{
		ResultSetID:   resultSetID,
		ByCategory:    map[string]int{},
		ByOrgType:     map[string]int{},
		AllResults:    []*store.Record{},
		SampleResults: []*search.EnrichedRecord{},
	}
}

// cacheableFull returns the full surviving list to cache for refiltering,
// never nil.
func cacheableFull(resp *search.SearchResponse) []*store.Record {
	if resp == nil || resp.Full == nil {
		return []*store.Record{}
	}
	return resp.Full
}
