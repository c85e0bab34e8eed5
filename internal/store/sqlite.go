package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// sqliteBatchSize bounds IN-clause sizes to stay under SQLite's bind
// variable limit.
const sqliteBatchSize = 500

// StoreConfig configures the SQLite record store.
type StoreConfig struct {
	// CacheSizeMB is the SQLite page cache size in megabytes (default: 64)
	CacheSizeMB int
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{CacheSizeMB: 64}
}

// SQLiteStore implements RecordStore backed by a single SQLite database.
// Records, embeddings, restricted contact columns, and runtime state all
// live in one file so ingest commits are atomic per batch.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ RecordStore = (*SQLiteStore)(nil)

// validateRecordDBIntegrity checks if a record database is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateRecordDBIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	return nil
}

// NewSQLiteStore creates a record store at path with default configuration.
// If path is empty, creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(path, DefaultStoreConfig())
}

// NewSQLiteStoreWithConfig creates a record store with explicit configuration.
// Uses WAL mode for concurrent multi-process access.
func NewSQLiteStoreWithConfig(path string, config StoreConfig) (*SQLiteStore, error) {
	if config.CacheSizeMB <= 0 {
		config.CacheSizeMB = DefaultStoreConfig().CacheSizeMB
	}

	var dsn string
	if path == "" {
		// In-memory store for testing
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateRecordDBIntegrity(path); validErr != nil {
			slog.Warn("record_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			// Auto-clear corrupted database
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("record db corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("record_db_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reingest"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Don't expire connections

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", config.CacheSizeMB*1024), // negative = KB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the record tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Grant award records. contact_name/contact_email are restricted
	-- columns: selected only by GetContacts, never hydrated on Record.
	-- embedding is a float32 little-endian blob, NULL until embedded.
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		abstract TEXT NOT NULL DEFAULT '',
		terms TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		org_name TEXT NOT NULL DEFAULT '',
		org_type TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		funding_usd REAL NOT NULL DEFAULT 0,
		year INTEGER NOT NULL DEFAULT 0,
		patent_count INTEGER NOT NULL DEFAULT 0,
		publication_count INTEGER NOT NULL DEFAULT 0,
		trial_count INTEGER NOT NULL DEFAULT 0,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		embedding_model TEXT,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_project_id ON records(project_id);

	-- Key-value store for runtime state (index metadata, checkpoints)
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// recordColumns are the columns hydrated onto Record, in scan order.
// Restricted contact columns and the embedding blob are excluded.
const recordColumns = `id, project_id, title, abstract, terms,
	category, confidence, org_name, org_type, state,
	funding_usd, year, patent_count, publication_count, trial_count,
	updated_at`

// scanRecord scans one row of recordColumns into a Record.
func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var updatedAt sql.NullTime
	err := scanner.Scan(
		&r.ID, &r.ProjectID, &r.Title, &r.Abstract, &r.Terms,
		&r.Category, &r.Confidence, &r.OrgName, &r.OrgType, &r.State,
		&r.FundingUSD, &r.Year, &r.PatentCount, &r.PublicationCount, &r.TrialCount,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		r.UpdatedAt = updatedAt.Time
	}
	return &r, nil
}

// SaveRecords inserts or updates records in a single transaction.
// The upsert lists record columns explicitly so an existing row keeps its
// embedding and contact columns (INSERT OR REPLACE would wipe them).
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (
			id, project_id, title, abstract, terms,
			category, confidence, org_name, org_type, state,
			funding_usd, year, patent_count, publication_count, trial_count,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			title = excluded.title,
			abstract = excluded.abstract,
			terms = excluded.terms,
			category = excluded.category,
			confidence = excluded.confidence,
			org_name = excluded.org_name,
			org_type = excluded.org_type,
			state = excluded.state,
			funding_usd = excluded.funding_usd,
			year = excluded.year,
			patent_count = excluded.patent_count,
			publication_count = excluded.publication_count,
			trial_count = excluded.trial_count,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		updatedAt := r.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.ProjectID, r.Title, r.Abstract, r.Terms,
			r.Category, r.Confidence, r.OrgName, r.OrgType, r.State,
			r.FundingUSD, r.Year, r.PatentCount, r.PublicationCount, r.TrialCount,
			updatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// SaveContacts sets the restricted contact columns for existing records.
// Records that don't exist are skipped silently.
func (s *SQLiteStore) SaveContacts(ctx context.Context, contacts []*Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE records SET contact_name = ?, contact_email = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range contacts {
		if _, err := stmt.ExecContext(ctx, c.Name, c.Email, c.RecordID); err != nil {
			return fmt.Errorf("failed to save contact for %s: %w", c.RecordID, err)
		}
	}

	return tx.Commit()
}

// GetRecord returns one record by ID, or nil if it doesn't exist.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// GetRecords returns records for the given IDs in batches.
// Missing IDs are skipped; result order is not guaranteed.
func (s *SQLiteStore) GetRecords(ctx context.Context, ids []string) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	records := make([]*Record, 0, len(ids))
	for start := 0; start < len(ids); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, id := range batch {
			placeholders[i] = "?"
			args[i] = id
		}

		query := `SELECT ` + recordColumns + ` FROM records WHERE id IN (` +
			strings.Join(placeholders, ",") + `)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query records: %w", err)
		}

		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan record: %w", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return records, nil
}

// DeleteRecords removes records by ID.
func (s *SQLiteStore) DeleteRecords(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for start := 0; start < len(ids); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, id := range batch {
			placeholders[i] = "?"
			args[i] = id
		}

		query := `DELETE FROM records WHERE id IN (` + strings.Join(placeholders, ",") + `)`
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
	}

	return nil
}

// Count returns the number of records in the store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// GetContacts returns the restricted contact columns for the given records.
// Records without contact data are absent from the map.
func (s *SQLiteStore) GetContacts(ctx context.Context, ids []string) (map[string]*Contact, error) {
	if len(ids) == 0 {
		return map[string]*Contact{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	contacts := make(map[string]*Contact, len(ids))
	for start := 0; start < len(ids); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, id := range batch {
			placeholders[i] = "?"
			args[i] = id
		}

		query := `SELECT id, contact_name, contact_email FROM records
			WHERE id IN (` + strings.Join(placeholders, ",") + `)
			AND (contact_name != '' OR contact_email != '')`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query contacts: %w", err)
		}

		for rows.Next() {
			var c Contact
			if err := rows.Scan(&c.RecordID, &c.Name, &c.Email); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan contact: %w", err)
			}
			contacts[c.RecordID] = &c
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return contacts, nil
}

// GetState returns the value for key, or empty string if not set.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state: %w", err)
	}
	return value, nil
}

// SetState stores a key-value pair, replacing any existing value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

// SaveEmbeddings stores embeddings for records by ID.
// recordIDs and embeddings must be parallel slices.
func (s *SQLiteStore) SaveEmbeddings(ctx context.Context, recordIDs []string, embeddings [][]float32, model string) error {
	if len(recordIDs) != len(embeddings) {
		return fmt.Errorf("recordIDs and embeddings length mismatch: %d vs %d", len(recordIDs), len(embeddings))
	}
	if len(recordIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE records SET embedding = ?, embedding_model = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, id := range recordIDs {
		blob := embeddingToBytes(embeddings[i])
		if _, err := stmt.ExecContext(ctx, blob, model, id); err != nil {
			return fmt.Errorf("failed to save embedding for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetAllEmbeddings returns all stored embeddings keyed by record ID.
// Records without an embedding are skipped. This is the source of truth
// for HNSW rebuilds and the exact-scan fallback.
func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM records WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if emb := bytesToEmbedding(blob); emb != nil {
			result[id] = emb
		}
	}

	return result, rows.Err()
}

// GetEmbeddingStats returns how many records have and lack an embedding.
func (s *SQLiteStore) GetEmbeddingStats(ctx context.Context) (withEmbedding, withoutEmbedding int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, 0, fmt.Errorf("store is closed")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN embedding IS NOT NULL THEN 1 END),
			COUNT(CASE WHEN embedding IS NULL THEN 1 END)
		FROM records
	`).Scan(&withEmbedding, &withoutEmbedding)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get embedding stats: %w", err)
	}
	return withEmbedding, withoutEmbedding, nil
}

// YearFunding aggregates awards for one fiscal year.
type YearFunding struct {
	Year     int
	TotalUSD float64
	Count    int
}

// FundingByYear returns per-year award counts and funding totals in
// ascending year order. Records with no year (0) are excluded.
func (s *SQLiteStore) FundingByYear(ctx context.Context) ([]YearFunding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT year, SUM(funding_usd), COUNT(*)
		FROM records
		WHERE year > 0
		GROUP BY year
		ORDER BY year ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funding by year: %w", err)
	}
	defer rows.Close()

	var result []YearFunding
	for rows.Next() {
		var yf YearFunding
		if err := rows.Scan(&yf.Year, &yf.TotalUSD, &yf.Count); err != nil {
			return nil, fmt.Errorf("failed to scan funding row: %w", err)
		}
		result = append(result, yf)
	}
	return result, rows.Err()
}

// SaveIngestCheckpoint persists ingest progress for resume.
func (s *SQLiteStore) SaveIngestCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entries := map[string]string{
		StateKeyCheckpointStage:         stage,
		StateKeyCheckpointTotal:         fmt.Sprintf("%d", total),
		StateKeyCheckpointEmbedded:      fmt.Sprintf("%d", embeddedCount),
		StateKeyCheckpointTimestamp:     time.Now().UTC().Format(time.RFC3339),
		StateKeyCheckpointEmbedderModel: embedderModel,
	}
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to save checkpoint key %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadIngestCheckpoint returns the saved checkpoint, or nil if none exists.
func (s *SQLiteStore) LoadIngestCheckpoint(ctx context.Context) (*IngestCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	values := make(map[string]string)
	keys := []string{
		StateKeyCheckpointStage,
		StateKeyCheckpointTotal,
		StateKeyCheckpointEmbedded,
		StateKeyCheckpointTimestamp,
		StateKeyCheckpointEmbedderModel,
	}
	for _, key := range keys {
		var value string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint key %s: %w", key, err)
		}
		values[key] = value
	}

	stage, ok := values[StateKeyCheckpointStage]
	if !ok {
		return nil, nil // No checkpoint saved
	}
	if stage == "complete" {
		return nil, nil // Finished ingest, nothing to resume
	}

	cp := &IngestCheckpoint{
		Stage:         stage,
		EmbedderModel: values[StateKeyCheckpointEmbedderModel],
	}
	_, _ = fmt.Sscanf(values[StateKeyCheckpointTotal], "%d", &cp.Total)
	_, _ = fmt.Sscanf(values[StateKeyCheckpointEmbedded], "%d", &cp.EmbeddedCount)
	if ts, err := time.Parse(time.RFC3339, values[StateKeyCheckpointTimestamp]); err == nil {
		cp.Timestamp = ts
	}

	return cp, nil
}

// ClearIngestCheckpoint removes any saved checkpoint.
func (s *SQLiteStore) ClearIngestCheckpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key IN (?, ?, ?, ?, ?)`,
		StateKeyCheckpointStage,
		StateKeyCheckpointTotal,
		StateKeyCheckpointEmbedded,
		StateKeyCheckpointTimestamp,
		StateKeyCheckpointEmbedderModel,
	)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// DB exposes the underlying database for stats and migrations.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// embeddingToBytes converts a float32 slice to a little-endian byte slice.
func embeddingToBytes(embedding []float32) []byte {
	if len(embedding) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToEmbedding converts a little-endian byte slice back to float32s.
// Returns nil for empty input.
func bytesToEmbedding(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
