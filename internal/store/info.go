package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GatherIndexInfo collects index information for the `grantscout stats`
// command. The current embedder settings are passed in so the report can
// flag dimension incompatibility before a query fails.
func GatherIndexInfo(ctx context.Context, rs RecordStore, dataDir, projectRoot, currentModel string, currentDimensions int) (*IndexInfo, error) {
	info := &IndexInfo{
		Location:          dataDir,
		ProjectRoot:       projectRoot,
		CurrentModel:      currentModel,
		CurrentProvider:   inferProviderFromModel(currentModel),
		CurrentDimensions: currentDimensions,
	}

	// Embedding configuration stored with the index
	model, err := rs.GetState(ctx, StateKeyIndexModel)
	if err != nil {
		return nil, fmt.Errorf("failed to read index model: %w", err)
	}
	info.IndexModel = model
	info.IndexProvider = inferProviderFromModel(model)

	dimStr, err := rs.GetState(ctx, StateKeyIndexDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to read index dimension: %w", err)
	}
	if dimStr != "" {
		info.IndexDimensions, _ = strconv.Atoi(dimStr)
	}

	// A fresh index (no recorded dimension) is compatible with anything.
	info.Compatible = info.IndexDimensions == 0 || info.IndexDimensions == currentDimensions

	// Statistics
	count, err := rs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	info.RecordCount = count

	embedded, _, err := rs.GetEmbeddingStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding stats: %w", err)
	}
	info.EmbeddedCount = embedded

	// On-disk sizes. The keyword index is a file (SQLite) or a directory
	// (Bleve) depending on backend; size whichever exists.
	info.RecordsSizeBytes = getFileSize(GetRecordDBPath(dataDir))
	textBase := GetTextIndexBasePath(dataDir)
	info.TextSizeBytes = getFileSize(textBase+".db") + getDirSize(textBase+".bleve")
	vectorPath := GetVectorStorePath(dataDir)
	info.VectorSizeBytes = getFileSize(vectorPath) + getFileSize(vectorPath+".meta")
	info.IndexSizeBytes = info.RecordsSizeBytes + info.TextSizeBytes + info.VectorSizeBytes

	info.UpdatedAt = latestModTime(
		GetRecordDBPath(dataDir),
		textBase+".db",
		vectorPath,
	)

	return info, nil
}

// FormatBytes renders a byte count as B, KB, MB, or GB.
func FormatBytes(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatTime renders a timestamp for display, or "unknown" for zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

// inferProviderFromModel guesses the embedding provider from a model name.
// Index state predates the provider key, so older indexes only carry the
// model string.
func inferProviderFromModel(model string) string {
	switch {
	case strings.HasPrefix(model, "static"):
		return "static"
	case containsAny(model, []string{"text-embedding", "openai"}):
		return "openai"
	case model == "":
		return ""
	default:
		// OpenAI-compatible endpoints serve arbitrary model names
		return "openai"
	}
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// getFileSize returns the size of a file, or 0 if it doesn't exist.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files under dir, or 0 on error.
func getDirSize(dir string) int64 {
	var size int64
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// latestModTime returns the newest modification time among the given paths.
// Paths that don't exist are skipped.
func latestModTime(paths ...string) time.Time {
	var latest time.Time
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
