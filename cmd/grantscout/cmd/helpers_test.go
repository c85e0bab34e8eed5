package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grantscout/grantscout/internal/store"
)

// seedIndex creates a minimal .grantscout index under dir with the given
// records: a populated record store and a matching keyword index, no
// vector store. Mirrors what ingest produces with embeddings skipped.
func seedIndex(t *testing.T, dir string, records []*store.Record) {
	t.Helper()
	ctx := context.Background()

	dataDir := filepath.Join(dir, ".grantscout")
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	rs, err := store.NewSQLiteStore(store.GetRecordDBPath(dataDir))
	require.NoError(t, err)
	require.NoError(t, rs.SaveRecords(ctx, records))
	require.NoError(t, rs.Close())

	text, err := store.NewTextIndexWithBackend(store.GetTextIndexBasePath(dataDir), string(store.TextBackendSQLite))
	require.NoError(t, err)
	docs := make([]*store.TextDoc, 0, len(records))
	for _, r := range records {
		docs = append(docs, r.TextDoc())
	}
	require.NoError(t, text.Index(ctx, docs))
	require.NoError(t, text.Close())
}

// grantRecord builds a valid award record for CLI tests.
func grantRecord(id, title, abstract string) *store.Record {
	return &store.Record{
		ID:         id,
		ProjectID:  "P-" + id,
		Title:      title,
		Abstract:   abstract,
		Category:   "biotech",
		OrgName:    "Helix Therapeutics",
		OrgType:    "company",
		State:      "CA",
		FundingUSD: 750000,
		Year:       2021,
	}
}
