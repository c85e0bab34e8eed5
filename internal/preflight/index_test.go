package preflight

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/store"
)

// seedIndex creates a record store under dataDir with two awards, one
// embedded, stamped with the given model identity.
func seedIndex(t *testing.T, dataDir, model string, dims int) {
	t.Helper()

	records, err := store.NewSQLiteStore(store.GetRecordDBPath(dataDir))
	require.NoError(t, err)
	defer func() { require.NoError(t, records.Close()) }()

	ctx := context.Background()
	require.NoError(t, records.SaveRecords(ctx, []*store.Record{
		{ID: "AWD-900", ProjectID: "PRJ-SOLAR", Title: "Perovskite Solar Cell Stability",
			OrgType: "university", State: "CO", Year: 2021},
		{ID: "AWD-901", ProjectID: "PRJ-WIND", Title: "Offshore Wind Turbine Monitoring",
			OrgType: "company", State: "ME", Year: 2022},
	}))

	vec := make([]float32, dims)
	vec[0] = 1
	require.NoError(t, records.SaveEmbeddings(ctx, []string{"AWD-900"}, [][]float32{vec}, model))

	require.NoError(t, records.SetState(ctx, store.StateKeyIndexModel, model))
	require.NoError(t, records.SetState(ctx, store.StateKeyIndexDimension, strconv.Itoa(dims)))
}

func TestChecker_CheckIndexStore_NoIndex(t *testing.T) {
	// Given: an empty data directory
	dataDir := t.TempDir()

	// When: checking the index
	checker := New()
	result := checker.CheckIndexStore(context.Background(), dataDir)

	// Then: warns that nothing is built yet
	assert.Equal(t, "grant_index", result.Name)
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "no grant index found")
	assert.Contains(t, result.Details, "ingest")
	assert.False(t, result.Required)
}

func TestChecker_CheckIndexStore_HealthyIndex(t *testing.T) {
	// Given: an index built with the same identity the checker resolves
	clearEmbedderEnv(t)
	dataDir := t.TempDir()
	seedIndex(t, dataDir, "static", embed.StaticDimensions)

	// When: checking the index
	checker := New()
	result := checker.CheckIndexStore(context.Background(), dataDir)

	// Then: passes with record and embedding counts
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "2 records indexed")
	assert.Contains(t, result.Message, "1 with embeddings")
}

func TestChecker_CheckIndexStore_DimensionMismatch(t *testing.T) {
	// Given: an index built at 1536 dims while the checker resolves static/256
	clearEmbedderEnv(t)
	dataDir := t.TempDir()
	seedIndex(t, dataDir, "text-embedding-3-small", 1536)

	// When: checking the index
	checker := New()
	result := checker.CheckIndexStore(context.Background(), dataDir)

	// Then: warns and points at a forced re-ingest
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "1536")
	assert.Contains(t, result.Message, "--force")
}

func TestChecker_CheckIndexStore_ModelMismatch(t *testing.T) {
	// Given: matching dimensions but a different model name
	clearEmbedderEnv(t)
	dataDir := t.TempDir()
	seedIndex(t, dataDir, "nomic-embed-text", embed.StaticDimensions)

	// When: checking the index
	checker := New()
	result := checker.CheckIndexStore(context.Background(), dataDir)

	// Then: warns with both model names
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "nomic-embed-text")
	assert.Contains(t, result.Message, "static")
}
