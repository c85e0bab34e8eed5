// Package store provides vector storage (HNSW), keyword text indexes, and record persistence (SQLite).
// This is the persistence layer for all indexed grant data.
package store

import (
	"context"
	"fmt"
	"time"
)

// State keys for the record store (dimension mismatch handling)
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyCorpusPath stores the corpus file the index was built from,
	// so serve --watch and re-ingest can find it without the flag
	StateKeyCorpusPath = "corpus_path"
)

// Checkpoint state keys for resumable ingest
const (
	// StateKeyCheckpointStage stores current ingest stage: "loading"|"embedding"|"indexing"|"complete"
	StateKeyCheckpointStage = "checkpoint_stage"
	// StateKeyCheckpointTotal stores total number of records to process
	StateKeyCheckpointTotal = "checkpoint_total"
	// StateKeyCheckpointEmbedded stores count of records that have been embedded
	StateKeyCheckpointEmbedded = "checkpoint_embedded"
	// StateKeyCheckpointTimestamp stores when checkpoint was last updated
	StateKeyCheckpointTimestamp = "checkpoint_timestamp"
	// StateKeyCheckpointEmbedderModel stores the embedder model used for this checkpoint.
	// Used to validate embedder consistency on resume to prevent dimension mismatch.
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// Record represents one grant award. Awards renewed across years share a
// ProjectID; result grouping collapses them to the newest award.
//
// Contact columns live in the same table but are never populated on Record.
// Use GetContacts for the restricted fields.
type Record struct {
	ID        string `json:"id" validate:"required"`         // Award ID, unique per award year
	ProjectID string `json:"project_id" validate:"required"` // Grouping ID shared by renewals of the same project
	Title     string `json:"title" validate:"required"`
	Abstract  string `json:"abstract"`
	Terms     string `json:"terms"` // Curated research terms, newline-separated

	// Classification attributes. Assigned upstream; stored and filtered
	// on as-is, never recomputed here.
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`

	OrgName string `json:"org_name"`
	OrgType string `json:"org_type"`                         // company, university, hospital, institute, ...
	State   string `json:"state" validate:"omitempty,len=2"` // Two-letter region code

	FundingUSD float64 `json:"funding_usd" validate:"gte=0"`
	Year       int     `json:"year" validate:"required,gte=1900,lte=2100"`

	PatentCount      int `json:"patent_count" validate:"gte=0"`
	PublicationCount int `json:"publication_count" validate:"gte=0"`
	TrialCount       int `json:"trial_count" validate:"gte=0"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TextDoc returns the keyword-index projection of the record.
func (r *Record) TextDoc() *TextDoc {
	body := r.Title
	if r.Abstract != "" {
		body += "\n\n" + r.Abstract
	}
	return &TextDoc{ID: r.ID, Body: body, Terms: r.Terms}
}

// Contact holds the restricted contact columns for one record.
// Returned only by RecordStore.GetContacts, and only hydrated into
// responses when contact access has been granted.
type Contact struct {
	RecordID string
	Name     string
	Email    string
}

// RecordStore persists grant records in SQLite.
type RecordStore interface {
	// Record operations
	SaveRecords(ctx context.Context, records []*Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	GetRecords(ctx context.Context, ids []string) ([]*Record, error) // Batch retrieval for hydration
	DeleteRecords(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)

	// Contact operations. SaveContacts sets the restricted columns for
	// existing records; GetContacts reads them back. Records without
	// contact data are absent from the returned map.
	SaveContacts(ctx context.Context, contacts []*Contact) error
	GetContacts(ctx context.Context, ids []string) (map[string]*Contact, error)

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Embedding operations (source of truth for HNSW rebuild and exact scan)
	SaveEmbeddings(ctx context.Context, recordIDs []string, embeddings [][]float32, model string) error
	GetAllEmbeddings(ctx context.Context) (map[string][]float32, error)
	GetEmbeddingStats(ctx context.Context) (withEmbedding, withoutEmbedding int, err error)

	// Checkpoint operations (for resumable ingest)
	SaveIngestCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error
	LoadIngestCheckpoint(ctx context.Context) (*IngestCheckpoint, error)
	ClearIngestCheckpoint(ctx context.Context) error

	// Lifecycle
	Close() error
}

// IngestCheckpoint represents the saved state of an ingest operation for resume.
type IngestCheckpoint struct {
	Stage         string    // "loading", "embedding", "indexing", "complete"
	Total         int       // Total records to process
	EmbeddedCount int       // Number of records with embeddings
	Timestamp     time.Time // When checkpoint was last updated
	EmbedderModel string    // Embedder model name used for this checkpoint
}

// IndexInfo contains comprehensive information about an index for the `grantscout stats` command.
type IndexInfo struct {
	// Location paths
	Location    string // Index data directory (e.g., <root>/.grantscout/)
	ProjectRoot string // Corpus root directory

	// Embedding configuration stored in index
	IndexModel      string // Model name used to build index
	IndexProvider   string // Provider (openai, static)
	IndexDimensions int    // Embedding dimensions

	// Statistics
	RecordCount      int   // Number of records in the store
	EmbeddedCount    int   // Records with a stored embedding
	IndexSizeBytes   int64 // Total index size (records + text + vector)
	RecordsSizeBytes int64 // Record database file size
	TextSizeBytes    int64 // Text index file size
	VectorSizeBytes  int64 // Vector store file size

	// Timestamps
	UpdatedAt time.Time // When index was last updated

	// Current embedder (for comparison)
	CurrentModel      string // Current embedder model
	CurrentProvider   string // Current embedder provider
	CurrentDimensions int    // Current embedder dimensions
	Compatible        bool   // Whether current embedder is compatible with index
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// TextColumn selects which keyword column a term search runs against.
type TextColumn string

const (
	// ColumnBody is the title+abstract text of a record.
	ColumnBody TextColumn = "body"
	// ColumnTerms is the curated research-terms text of a record.
	ColumnTerms TextColumn = "terms"
)

// TextDoc represents a document to be indexed for keyword search.
type TextDoc struct {
	ID    string // Record ID
	Body  string // Title and abstract
	Terms string // Curated research terms
}

// TextIndexStats provides statistics about the keyword index.
type TextIndexStats struct {
	DocumentCount int
}

// TextIndex provides whole-word keyword search over the two text columns.
//
// Both backends index with the same tokenization rules: case-insensitive,
// alphanumeric runs, no length floor and no stop words. Single-letter and
// short acronym terms must stay findable, so nothing is dropped at index
// time; flood terms are bounded query-side by the per-term retrieval cap.
type TextIndex interface {
	// Index adds documents to the index. Existing IDs are replaced.
	Index(ctx context.Context, docs []*TextDoc) error

	// SearchColumn returns IDs of documents whose column contains term as
	// a whole word. Result order is stable across calls so offset/limit
	// pagination walks the full match set without gaps or repeats.
	SearchColumn(ctx context.Context, col TextColumn, term string, offset, limit int) ([]string, error)

	// Delete removes documents from index
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *TextIndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Record ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Cosine similarity (-1 to 1 for "cos" metric)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (1536 for text-embedding-3-small, 256 for static)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 32)
	M int

	// EfConstruction is HNSW build-time search width (default: 128)
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'grantscout ingest --force' to rebuild)", e.Expected, e.Got)
}
