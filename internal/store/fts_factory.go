package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// TextBackend represents the keyword index backend type.
type TextBackend string

const (
	// TextBackendSQLite uses SQLite FTS5 for keyword search (default).
	// Enables concurrent multi-process access via WAL mode.
	TextBackendSQLite TextBackend = "sqlite"

	// TextBackendBleve uses Bleve v2 for keyword search (legacy).
	// Has exclusive file locking via BoltDB - single process only.
	TextBackendBleve TextBackend = "bleve"
)

// NewTextIndexWithBackend creates a TextIndex using the specified backend.
// The path should be the base path without extension - the extension will be
// added based on the backend type (.db for SQLite, .bleve for Bleve).
//
// backend options:
//   - "sqlite" (default): SQLite FTS5 with WAL mode for concurrent access
//   - "bleve": Bleve v2 with BoltDB (legacy, single-process only)
//
// If basePath is empty, creates an in-memory index for testing.
func NewTextIndexWithBackend(basePath string, backend string) (TextIndex, error) {
	switch backend {
	case string(TextBackendSQLite), "":
		// Default to SQLite (concurrent access, pure Go)
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteTextIndex(path)

	case string(TextBackendBleve):
		// Legacy Bleve backend (single process due to BoltDB lock)
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveTextIndex(path)

	default:
		return nil, fmt.Errorf("unknown text backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectTextBackend detects which backend an existing index uses based on file existence.
// Returns the detected backend or an empty string if no index exists.
// This is useful for backwards compatibility when opening existing indexes.
func DetectTextBackend(basePath string) TextBackend {
	// Check for SQLite first (preferred)
	sqlitePath := basePath + ".db"
	if fileExists(sqlitePath) {
		return TextBackendSQLite
	}

	// Check for Bleve (legacy)
	blevePath := basePath + ".bleve"
	if dirExists(blevePath) {
		return TextBackendBleve
	}

	// No existing index
	return ""
}

// GetTextIndexBasePath returns the extensionless base path for the keyword
// index under dataDir. Pass it to NewTextIndexWithBackend or DetectTextBackend.
func GetTextIndexBasePath(dataDir string) string {
	return filepath.Join(dataDir, "keywords")
}

// GetTextIndexPath returns the full path to the keyword index file/directory
// based on the backend type.
func GetTextIndexPath(dataDir string, backend string) string {
	basePath := GetTextIndexBasePath(dataDir)
	switch backend {
	case string(TextBackendBleve):
		return basePath + ".bleve"
	default:
		return basePath + ".db"
	}
}

// GetRecordDBPath returns the path to the record database under dataDir.
func GetRecordDBPath(dataDir string) string {
	return filepath.Join(dataDir, "records.db")
}

// GetVectorStorePath returns the path to the vector store under dataDir.
func GetVectorStorePath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.hnsw")
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
