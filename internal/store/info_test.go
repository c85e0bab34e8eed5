package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FormatBytes Tests
// =============================================================================

func TestFormatBytes_Bytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{512, "512 B"},
		{1023, "1023 B"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatBytes(tc.bytes)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestFormatBytes_Kilobytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10240, "10.0 KB"},
		{1048575, "1024.0 KB"}, // Just under 1MB
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatBytes(tc.bytes)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestFormatBytes_Megabytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{1048576, "1.0 MB"},     // 1MB
		{5242880, "5.0 MB"},     // 5MB
		{104857600, "100.0 MB"}, // 100MB
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatBytes(tc.bytes)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestFormatBytes_Gigabytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{1073741824, "1.0 GB"},     // 1GB
		{5368709120, "5.0 GB"},     // 5GB
		{10737418240, "10.0 GB"},   // 10GB
		{107374182400, "100.0 GB"}, // 100GB
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatBytes(tc.bytes)
			assert.Equal(t, tc.expected, result)
		})
	}
}

// =============================================================================
// FormatTime Tests
// =============================================================================

func TestFormatTime_Valid(t *testing.T) {
	// Test a specific time
	testTime := time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC)
	result := FormatTime(testTime)
	assert.Equal(t, "2026-01-15 10:30:45", result)
}

func TestFormatTime_ZeroTime(t *testing.T) {
	result := FormatTime(time.Time{})
	assert.Equal(t, "unknown", result)
}

func TestFormatTime_Epoch(t *testing.T) {
	// Unix epoch should be formatted normally
	epoch := time.Unix(0, 0).UTC()
	result := FormatTime(epoch)
	assert.Equal(t, "1970-01-01 00:00:00", result)
}

// =============================================================================
// containsAny Tests
// =============================================================================

func TestContainsAny_Found(t *testing.T) {
	tests := []struct {
		name       string
		s          string
		substrings []string
		expected   bool
	}{
		{"single match", "hello world", []string{"world"}, true},
		{"first of many", "hello world", []string{"hello", "foo", "bar"}, true},
		{"middle of many", "hello world", []string{"foo", "world", "bar"}, true},
		{"last of many", "hello world", []string{"foo", "bar", "world"}, true},
		{"prefix match", "text-embedding-3-small", []string{"text-embedding"}, true},
		{"contains openai", "custom-openai-proxy", []string{"openai"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := containsAny(tc.s, tc.substrings)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestContainsAny_NotFound(t *testing.T) {
	tests := []struct {
		name       string
		s          string
		substrings []string
		expected   bool
	}{
		{"no match", "hello world", []string{"foo", "bar"}, false},
		{"empty substrings", "hello world", []string{}, false},
		{"empty string", "", []string{"foo"}, false},
		{"substring longer than string", "hi", []string{"hello"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := containsAny(tc.s, tc.substrings)
			assert.Equal(t, tc.expected, result)
		})
	}
}

// =============================================================================
// inferProviderFromModel Tests
// =============================================================================

func TestInferProviderFromModel_Static(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"static", "static"},
		{"static1536", "static"},
	}

	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			result := inferProviderFromModel(tc.model)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestInferProviderFromModel_OpenAI(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"text-embedding-3-small", "openai"},
		{"text-embedding-3-large", "openai"},
		{"text-embedding-ada-002", "openai"},
		{"custom-openai-deployment", "openai"},
		{"some-random-model", "openai"}, // OpenAI-compatible endpoints, default
	}

	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			result := inferProviderFromModel(tc.model)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestInferProviderFromModel_Empty(t *testing.T) {
	// A fresh index has no recorded model; don't invent a provider for it
	assert.Equal(t, "", inferProviderFromModel(""))
}

// =============================================================================
// getDirSize Tests
// =============================================================================

func TestGetDirSize_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	size := getDirSize(tmpDir)
	assert.Equal(t, int64(0), size)
}

func TestGetDirSize_WithFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create some files with known sizes
	file1 := filepath.Join(tmpDir, "file1.txt")
	file2 := filepath.Join(tmpDir, "file2.txt")

	require.NoError(t, os.WriteFile(file1, make([]byte, 1024), 0o644)) // 1KB
	require.NoError(t, os.WriteFile(file2, make([]byte, 2048), 0o644)) // 2KB

	size := getDirSize(tmpDir)
	assert.Equal(t, int64(3072), size) // 3KB total
}

func TestGetDirSize_WithSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	// Create files in both directories
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.txt"), make([]byte, 1024), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "nested.txt"), make([]byte, 512), 0o644))

	size := getDirSize(tmpDir)
	assert.Equal(t, int64(1536), size) // 1.5KB total
}

func TestGetDirSize_NonexistentPath(t *testing.T) {
	size := getDirSize("/nonexistent/path/that/does/not/exist")
	assert.Equal(t, int64(0), size)
}

// =============================================================================
// GatherIndexInfo Tests
// =============================================================================

func TestGatherIndexInfo(t *testing.T) {
	// Given: a store with records, one embedding, and index state
	store, tmpDir := newTestStore(t)
	dataDir := filepath.Join(tmpDir, ".grantscout")
	ctx := context.Background()

	rec1 := seedRecord()
	rec2 := seedRecord()
	rec2.ID = "NIH-2022-0789"
	rec2.ProjectID = "P0789"
	require.NoError(t, store.SaveRecords(ctx, []*Record{rec1, rec2}))
	require.NoError(t, store.SaveEmbeddings(ctx, []string{rec1.ID},
		[][]float32{{0.1, 0.2, 0.3}}, "text-embedding-3-small"))

	require.NoError(t, store.SetState(ctx, StateKeyIndexModel, "text-embedding-3-small"))
	require.NoError(t, store.SetState(ctx, StateKeyIndexDimension, "1536"))

	// When: gathering index info with a matching embedder
	info, err := GatherIndexInfo(ctx, store, dataDir, tmpDir, "text-embedding-3-small", 1536)
	require.NoError(t, err)

	// Then: report reflects stored state and on-disk layout
	assert.Equal(t, dataDir, info.Location)
	assert.Equal(t, tmpDir, info.ProjectRoot)
	assert.Equal(t, "text-embedding-3-small", info.IndexModel)
	assert.Equal(t, "openai", info.IndexProvider)
	assert.Equal(t, 1536, info.IndexDimensions)
	assert.Equal(t, 2, info.RecordCount)
	assert.Equal(t, 1, info.EmbeddedCount)
	assert.True(t, info.Compatible)
	assert.Equal(t, "openai", info.CurrentProvider)
	assert.Greater(t, info.RecordsSizeBytes, int64(0))
	assert.GreaterOrEqual(t, info.IndexSizeBytes, info.RecordsSizeBytes)
	assert.False(t, info.UpdatedAt.IsZero())
}

func TestGatherIndexInfo_DimensionMismatch(t *testing.T) {
	// Given: an index built at 1536 dimensions
	store, tmpDir := newTestStore(t)
	dataDir := filepath.Join(tmpDir, ".grantscout")
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, StateKeyIndexModel, "text-embedding-3-small"))
	require.NoError(t, store.SetState(ctx, StateKeyIndexDimension, "1536"))

	// When: the current embedder produces 256-dim vectors
	info, err := GatherIndexInfo(ctx, store, dataDir, tmpDir, "static", 256)
	require.NoError(t, err)

	// Then: flagged incompatible
	assert.False(t, info.Compatible)
	assert.Equal(t, 1536, info.IndexDimensions)
	assert.Equal(t, 256, info.CurrentDimensions)
	assert.Equal(t, "static", info.CurrentProvider)
}

func TestGatherIndexInfo_FreshIndex(t *testing.T) {
	// Given: a store with no index state recorded
	store, tmpDir := newTestStore(t)
	dataDir := filepath.Join(tmpDir, ".grantscout")
	ctx := context.Background()

	// When: gathering info
	info, err := GatherIndexInfo(ctx, store, dataDir, tmpDir, "text-embedding-3-small", 1536)
	require.NoError(t, err)

	// Then: no recorded dimension means compatible with anything
	assert.Equal(t, "", info.IndexModel)
	assert.Equal(t, 0, info.IndexDimensions)
	assert.True(t, info.Compatible)
	assert.Equal(t, 0, info.RecordCount)
	assert.Equal(t, 0, info.EmbeddedCount)
}
