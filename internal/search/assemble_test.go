package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantscout/grantscout/internal/store"
)

// =============================================================================
// Result Assembly Tests
// =============================================================================

func TestTruncateRecords(t *testing.T) {
	records := []*store.Record{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	t.Run("under limit", func(t *testing.T) {
		got := truncateRecords(records, 10)
		assert.Len(t, got, 3)
	})

	t.Run("over limit keeps the head", func(t *testing.T) {
		got := truncateRecords(records, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].ID)
		assert.Equal(t, "B", got[1].ID)
	})

	t.Run("zero limit", func(t *testing.T) {
		got := truncateRecords(records, 0)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("empty input", func(t *testing.T) {
		got := truncateRecords(nil, 5)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestTopByFunding(t *testing.T) {
	records := []*store.Record{
		{ID: "mid", FundingUSD: 500_000},
		{ID: "top", FundingUSD: 2_000_000},
		{ID: "low", FundingUSD: 50_000},
		{ID: "second", FundingUSD: 1_000_000},
	}

	got := topByFunding(records, 3)

	require.Len(t, got, 3)
	assert.Equal(t, "top", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
	assert.Equal(t, "mid", got[2].ID)
}

func TestTopByFunding_TiesKeepRankOrder(t *testing.T) {
	// Equal funding, distinct fused ranks. The stable sort keeps the
	// incoming order for ties.
	records := []*store.Record{
		{ID: "ranked-1", FundingUSD: 750_000},
		{ID: "ranked-2", FundingUSD: 750_000},
		{ID: "ranked-3", FundingUSD: 750_000},
	}

	got := topByFunding(records, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "ranked-1", got[0].ID)
	assert.Equal(t, "ranked-2", got[1].ID)
}

func TestTopByFunding_DoesNotMutateInput(t *testing.T) {
	records := []*store.Record{
		{ID: "low", FundingUSD: 100},
		{ID: "high", FundingUSD: 900},
	}

	_ = topByFunding(records, 2)

	assert.Equal(t, "low", records[0].ID, "input order must survive the sample sort")
	assert.Equal(t, "high", records[1].ID)
}

func TestTopByFunding_RequestLargerThanList(t *testing.T) {
	records := []*store.Record{{ID: "only", FundingUSD: 10}}

	got := topByFunding(records, 10)

	assert.Len(t, got, 1)
}

// =============================================================================
// Contact Enrichment Tests
// =============================================================================

func TestToEnriched_NullContactFields(t *testing.T) {
	records := []*store.Record{
		{ID: "R1", Title: "Wheat stem rust resistance loci"},
		{ID: "R2", Title: "Organoid models of epilepsy"},
	}

	got := toEnriched(records)

	require.Len(t, got, 2)
	for i, er := range got {
		assert.Equal(t, records[i].ID, er.ID)
		assert.Equal(t, records[i].Title, er.Title)
		assert.Nil(t, er.ContactName)
		assert.Nil(t, er.ContactEmail)
	}
}

func TestAttachContacts(t *testing.T) {
	sample := toEnriched([]*store.Record{{ID: "R1"}, {ID: "R2"}, {ID: "R3"}})
	contacts := map[string]*store.Contact{
		"R1": {RecordID: "R1", Name: "J. Alvarez", Email: "alvarez@example.edu"},
		"R3": {RecordID: "R3", Name: "M. Okafor", Email: "okafor@example.org"},
	}

	attachContacts(sample, contacts)

	require.NotNil(t, sample[0].ContactName)
	assert.Equal(t, "J. Alvarez", *sample[0].ContactName)
	assert.Equal(t, "alvarez@example.edu", *sample[0].ContactEmail)

	// R2 has no stored contact; its fields stay null.
	assert.Nil(t, sample[1].ContactName)
	assert.Nil(t, sample[1].ContactEmail)

	require.NotNil(t, sample[2].ContactName)
	assert.Equal(t, "M. Okafor", *sample[2].ContactName)
}

func TestEnrichedRecord_ContactFieldsSerializeAsNull(t *testing.T) {
	// Absent contact data serializes as explicit null, never omitted.
	er := &EnrichedRecord{Record: store.Record{ID: "R1", Title: "CRISPR delivery vectors", Year: 2024}}

	data, err := json.Marshal(er)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	raw, ok := decoded["contact_name"]
	require.True(t, ok, "contact_name must be present in the payload")
	assert.Equal(t, "null", string(raw))

	raw, ok = decoded["contact_email"]
	require.True(t, ok, "contact_email must be present in the payload")
	assert.Equal(t, "null", string(raw))
}

func TestSampleIDs(t *testing.T) {
	sample := toEnriched([]*store.Record{{ID: "R9"}, {ID: "R4"}})
	assert.Equal(t, []string{"R9", "R4"}, sampleIDs(sample))
}
