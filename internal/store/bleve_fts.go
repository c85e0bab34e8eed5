package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TermTokenizerName is the name of our custom word tokenizer.
	TermTokenizerName = "grant_term_tokenizer"

	// GrantAnalyzerName is the name of our custom grant text analyzer.
	GrantAnalyzerName = "grant_text"
)

func init() {
	// Register custom tokenizer
	_ = registry.RegisterTokenizer(TermTokenizerName, termTokenizerConstructor)
}

// BleveTextIndex wraps Bleve v2 for whole-word keyword search.
// Legacy backend; SQLite FTS5 is the default.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveTextDoc is the document structure for Bleve indexing.
// Field names must match the TextColumn values.
type bleveTextDoc struct {
	Body  string `json:"body"`
	Terms string `json:"terms"`
}

// validateBleveIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
// Detects half-written indexes so they can be cleared and rebuilt instead
// of failing every open.
func validateBleveIntegrity(path string) error {
	// Check if index directory exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	// Check 1: index_meta.json exists and is non-empty
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		// index_meta.json missing means index is incomplete/corrupted
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	// Check 2: Validate JSON is parseable
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveTextIndex creates a new keyword index.
// If path is empty, creates an in-memory index.
// Validates index integrity before opening and auto-recovers from corruption.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping, err := createTextMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		// In-memory index for testing
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		// Create directory if needed
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("text_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			// Auto-clear corrupted index
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		// Try to open existing index first
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			// Create new index
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("text_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			// Clear and recreate
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reindex"))

			// Create fresh index
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveTextIndex{
		index: idx,
		path:  path,
	}, nil
}

// createTextMapping creates the Bleve index mapping for grant text.
func createTextMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	// Register custom analyzer: word tokenizer + lowercase, no stop filter.
	// Stop-word removal would silently empty a search position and zero out
	// the whole intersection.
	err := indexMapping.AddCustomAnalyzer(GrantAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TermTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	// Set as default analyzer
	indexMapping.DefaultAnalyzer = GrantAnalyzerName

	return indexMapping, nil
}

// Index adds documents to the index. Bleve replaces existing IDs on index,
// so re-ingesting a record updates it in place.
func (b *BleveTextIndex) Index(ctx context.Context, docs []*TextDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bleveDoc := bleveTextDoc{Body: doc.Body, Terms: doc.Terms}
		if err := batch.Index(doc.ID, bleveDoc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// SearchColumn returns IDs of documents whose column contains term as a
// whole word. A phrase query keeps multi-word terms adjacent, matching the
// quoted-phrase semantics of the FTS5 backend. Results are sorted by
// document ID so offset pagination is stable across calls.
func (b *BleveTextIndex) SearchColumn(ctx context.Context, col TextColumn, term string, offset, limit int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	// Handle empty term
	if strings.TrimSpace(term) == "" {
		return []string{}, nil
	}

	phraseQuery := bleve.NewMatchPhraseQuery(term)
	phraseQuery.SetField(string(col))

	searchRequest := bleve.NewSearchRequest(phraseQuery)
	searchRequest.Size = limit
	searchRequest.From = offset
	searchRequest.SortBy([]string{"_id"})
	searchRequest.Fields = []string{} // Only need IDs, not content

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}

	return ids, nil
}

// Delete removes documents from the index.
func (b *BleveTextIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// AllIDs returns all document IDs in the index.
// Used for consistency checking between stores.
func (b *BleveTextIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	// Use a MatchAllQuery to get all documents
	query := bleve.NewMatchAllQuery()
	docCount, _ := b.index.DocCount()

	// Create search request to get all IDs
	req := bleve.NewSearchRequest(query)
	req.Size = int(docCount)
	req.Fields = []string{} // Only need IDs, not content

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}

	return ids, nil
}

// Stats returns index statistics.
func (b *BleveTextIndex) Stats() *TextIndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &TextIndexStats{}
	}

	docCount, _ := b.index.DocCount()

	return &TextIndexStats{
		DocumentCount: int(docCount),
	}
}

// Save persists the index to disk.
// For Bleve, this is a no-op as changes are persisted automatically.
func (b *BleveTextIndex) Save(path string) error {
	// Bleve persists automatically when using disk-based index
	return nil
}

// Load opens an existing index from disk.
func (b *BleveTextIndex) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		_ = b.index.Close()
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	b.index = idx
	b.path = path
	b.closed = false

	return nil
}

// Close closes the index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ TextIndex = (*BleveTextIndex)(nil)

// termTokenizerConstructor creates a new word tokenizer for Bleve.
func termTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTermTokenizer{}, nil
}

// bleveTermTokenizer implements analysis.Tokenizer over letter/digit runs.
type bleveTermTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTermTokenizer) Tokenize(input []byte) analysis.TokenStream {
	spans := scanTokenSpans(string(input))

	result := make(analysis.TokenStream, 0, len(spans))
	for i, span := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(span.term),
			Start:    span.start,
			End:      span.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}

	return result
}
