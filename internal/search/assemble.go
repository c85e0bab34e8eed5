package search

import (
	"sort"

	"github.com/grantscout/grantscout/internal/store"
)

// truncateRecords caps the display list without mutating the input.
func truncateRecords(records []*store.Record, limit int) []*store.Record {
	if limit <= 0 || len(records) == 0 {
		return []*store.Record{}
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// topByFunding selects the n highest-funded records from the full surviving
// list, not just the displayed page. The sort is stable so equally funded
// records keep their fused order.
func topByFunding(records []*store.Record, n int) []*store.Record {
	if n <= 0 || len(records) == 0 {
		return []*store.Record{}
	}

	sorted := make([]*store.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FundingUSD > sorted[j].FundingUSD
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// toEnriched wraps records with null contact fields. The fields stay in
// the serialized shape either way; they are only populated when contact
// access is granted.
func toEnriched(records []*store.Record) []*EnrichedRecord {
	out := make([]*EnrichedRecord, len(records))
	for i, r := range records {
		out[i] = &EnrichedRecord{Record: *r}
	}
	return out
}

// attachContacts fills contact fields from one batched lookup. Records
// absent from the contact map keep null fields.
func attachContacts(sample []*EnrichedRecord, contacts map[string]*store.Contact) {
	for _, er := range sample {
		c, ok := contacts[er.ID]
		if !ok {
			continue
		}
		name, email := c.Name, c.Email
		er.ContactName = &name
		er.ContactEmail = &email
	}
}

// sampleIDs collects record IDs for the contact batch lookup.
func sampleIDs(sample []*EnrichedRecord) []string {
	ids := make([]string, len(sample))
	for i, er := range sample {
		ids[i] = er.ID
	}
	return ids
}
