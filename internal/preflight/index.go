package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/grantscout/grantscout/internal/store"
)

// CheckIndexStore reports the state of the grant index under dataDir.
// A missing index is a warning (the server can still start and ingest
// on demand), an unreadable one is a failure, and an index embedded
// with a different model than the current configuration warns that the
// vectors need a rebuild.
func (c *Checker) CheckIndexStore(ctx context.Context, dataDir string) CheckResult {
	result := CheckResult{
		Name:     "grant_index",
		Required: false,
	}

	dbPath := store.GetRecordDBPath(dataDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "no grant index found"
		result.Details = "run 'grantscout ingest <corpus.jsonl>' to build one"
		return result
	}

	records, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("index unreadable: %v", err)
		return result
	}
	defer func() { _ = records.Close() }()

	model, dims := c.expectedIdentity()
	info, err := store.GatherIndexInfo(ctx, records, dataDir, "", model, dims)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("index unreadable: %v", err)
		return result
	}

	result.Details = fmt.Sprintf("%s on disk, index model %q",
		store.FormatBytes(info.IndexSizeBytes), info.IndexModel)

	if !info.Compatible {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf(
			"index built with %d-dim embeddings, current embedder produces %d; re-run 'grantscout ingest --force'",
			info.IndexDimensions, dims)
		return result
	}
	if info.IndexModel != "" && info.IndexModel != model {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf(
			"index embedded with %s, current model is %s; re-run 'grantscout ingest --force'",
			info.IndexModel, model)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d records indexed (%d with embeddings)",
		info.RecordCount, info.EmbeddedCount)
	return result
}
