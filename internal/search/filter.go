package search

import (
	"strings"

	"github.com/grantscout/grantscout/internal/store"
)

// ApplyFilters returns the records passing every active filter, preserving
// input order. Filter values match their attributes case-insensitively.
func ApplyFilters(records []*store.Record, f Filters) []*store.Record {
	if f.IsZero() {
		return records
	}
	out := make([]*store.Record, 0, len(records))
	for _, r := range records {
		if matchesFilters(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func matchesFilters(r *store.Record, f Filters) bool {
	if len(f.Categories) > 0 && !containsFold(f.Categories, r.Category) {
		return false
	}
	if len(f.OrgTypes) > 0 && !containsFold(f.OrgTypes, r.OrgType) {
		return false
	}
	if len(f.States) > 0 && !containsFold(f.States, r.State) {
		return false
	}
	if f.MinFunding > 0 && r.FundingUSD < f.MinFunding {
		return false
	}
	if f.HasPatents && r.PatentCount == 0 {
		return false
	}
	if f.HasPublications && r.PublicationCount == 0 {
		return false
	}
	if f.HasTrials && r.TrialCount == 0 {
		return false
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// DedupLatest keeps one record per project: the one with the highest year.
// The newer record wins regardless of rank; on a year tie the earlier
// (higher-ranked) occurrence survives. Each winner keeps its own position
// in the input order, so a lower-ranked newer record surfaces where it was
// ranked, not where its older sibling was. Records without a ProjectID are
// never grouped and always pass through.
//
// Running DedupLatest on its own output is a no-op, which keeps the
// refilter path idempotent.
func DedupLatest(records []*store.Record) []*store.Record {
	winners := make(map[string]*store.Record, len(records))
	for _, r := range records {
		if r.ProjectID == "" {
			continue
		}
		cur, ok := winners[r.ProjectID]
		if !ok || r.Year > cur.Year {
			winners[r.ProjectID] = r
		}
	}

	out := make([]*store.Record, 0, len(records))
	for _, r := range records {
		if r.ProjectID == "" || winners[r.ProjectID] == r {
			out = append(out, r)
		}
	}
	return out
}

// FacetCounts counts surviving records by category and organization type.
// Records with an empty attribute are left out of that facet.
func FacetCounts(records []*store.Record) (map[string]int, map[string]int) {
	byCategory := make(map[string]int)
	byOrgType := make(map[string]int)
	for _, r := range records {
		if r.Category != "" {
			byCategory[r.Category]++
		}
		if r.OrgType != "" {
			byOrgType[r.OrgType]++
		}
	}
	return byCategory, byOrgType
}
