package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/store"
)

// =============================================================================
// Test Fakes
// =============================================================================
//
// In-memory stand-ins for the store and embed interfaces, with failure and
// hang injection keyed by (column, term) so degraded paths are reachable
// deterministically.

type textSearchCall struct {
	col    store.TextColumn
	term   string
	offset int
	limit  int
}

// fakeTextIndex matches whole words case-insensitively, like both real
// keyword backends, and pages results in document insertion order.
type fakeTextIndex struct {
	mu       sync.Mutex
	order    []string
	docs     map[string]*store.TextDoc
	calls    []textSearchCall
	failAll  bool
	failures map[string]error
	hangAt   map[string]int // hang once offset reaches the value
	closed   bool
}

var _ store.TextIndex = (*fakeTextIndex)(nil)

func newFakeTextIndex(docs ...*store.TextDoc) *fakeTextIndex {
	f := &fakeTextIndex{
		docs:     make(map[string]*store.TextDoc),
		failures: make(map[string]error),
		hangAt:   make(map[string]int),
	}
	_ = f.Index(context.Background(), docs)
	return f
}

func colTermKey(col store.TextColumn, term string) string {
	return string(col) + ":" + strings.ToLower(term)
}

func (f *fakeTextIndex) failTerm(col store.TextColumn, term string, err error) {
	f.failures[colTermKey(col, term)] = err
}

func (f *fakeTextIndex) hangFrom(col store.TextColumn, term string, offset int) {
	f.hangAt[colTermKey(col, term)] = offset
}

func (f *fakeTextIndex) Index(_ context.Context, docs []*store.TextDoc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		if _, ok := f.docs[d.ID]; !ok {
			f.order = append(f.order, d.ID)
		}
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeTextIndex) SearchColumn(ctx context.Context, col store.TextColumn, term string, offset, limit int) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, textSearchCall{col: col, term: term, offset: offset, limit: limit})
	failure := f.failures[colTermKey(col, term)]
	hangPoint, hanging := f.hangAt[colTermKey(col, term)]
	failAll := f.failAll
	f.mu.Unlock()

	if failAll {
		return nil, errors.New("text index offline")
	}
	if failure != nil {
		return nil, failure
	}
	if hanging && offset >= hangPoint {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if term == "" || limit <= 0 {
		return []string{}, nil
	}

	matched := f.matchingIDs(col, term)
	if offset >= len(matched) {
		return []string{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (f *fakeTextIndex) matchingIDs(col store.TextColumn, term string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := strings.ToLower(term)
	var out []string
	for _, id := range f.order {
		doc := f.docs[id]
		text := doc.Body
		if col == store.ColumnTerms {
			text = doc.Terms
		}
		if _, ok := wordSet(text)[want]; ok {
			out = append(out, id)
		}
	}
	return out
}

// wordSet lowercases and splits text into alphanumeric runs.
func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words[strings.ToLower(b.String())] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func (f *fakeTextIndex) searchesFor(col store.TextColumn, term string) []textSearchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []textSearchCall
	for _, c := range f.calls {
		if c.col == col && strings.EqualFold(c.term, term) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTextIndex) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTextIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeTextIndex) AllIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out, nil
}

func (f *fakeTextIndex) Stats() *store.TextIndexStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &store.TextIndexStats{DocumentCount: len(f.docs)}
}

func (f *fakeTextIndex) Save(string) error { return nil }
func (f *fakeTextIndex) Load(string) error { return nil }

func (f *fakeTextIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeVectorStore returns canned nearest-neighbor results.
type fakeVectorStore struct {
	mu        sync.Mutex
	results   []*store.VectorResult
	searchErr error
	searches  int
	count     int
	closed    bool
}

var _ store.VectorStore = (*fakeVectorStore)(nil)

func newFakeVectorStore(results ...*store.VectorResult) *fakeVectorStore {
	return &fakeVectorStore{results: results, count: len(results)}
}

func (f *fakeVectorStore) Add(_ context.Context, ids []string, _ [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count += len(ids)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, k int) ([]*store.VectorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.results
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count -= len(ids)
	return nil
}

func (f *fakeVectorStore) AllIDs() []string {
	ids := make([]string, 0, len(f.results))
	for _, r := range f.results {
		ids = append(ids, r.ID)
	}
	return ids
}

func (f *fakeVectorStore) Contains(id string) bool {
	for _, r := range f.results {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeVectorStore) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeVectorStore) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func (f *fakeVectorStore) Save(string) error { return nil }
func (f *fakeVectorStore) Load(string) error { return nil }

func (f *fakeVectorStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeRecordStore keeps records, contacts, and embeddings in maps.
type fakeRecordStore struct {
	mu            sync.Mutex
	records       map[string]*store.Record
	contacts      map[string]*store.Contact
	embeddings    map[string][]float32
	state         map[string]string
	getRecordsErr error
	contactsErr   error
	embeddingsErr error
	closed        bool
}

var _ store.RecordStore = (*fakeRecordStore)(nil)

func newFakeRecordStore(records ...*store.Record) *fakeRecordStore {
	f := &fakeRecordStore{
		records:    make(map[string]*store.Record),
		contacts:   make(map[string]*store.Contact),
		embeddings: make(map[string][]float32),
		state:      make(map[string]string),
	}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeRecordStore) SaveRecords(_ context.Context, records []*store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeRecordStore) GetRecord(_ context.Context, id string) (*store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, errors.New("record not found: " + id)
	}
	return r, nil
}

func (f *fakeRecordStore) GetRecords(_ context.Context, ids []string) ([]*store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRecordsErr != nil {
		return nil, f.getRecordsErr
	}
	out := make([]*store.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) DeleteRecords(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.records, id)
	}
	return nil
}

func (f *fakeRecordStore) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeRecordStore) SaveContacts(_ context.Context, contacts []*store.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range contacts {
		f.contacts[c.RecordID] = c
	}
	return nil
}

func (f *fakeRecordStore) GetContacts(_ context.Context, ids []string) (map[string]*store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contactsErr != nil {
		return nil, f.contactsErr
	}
	out := make(map[string]*store.Contact)
	for _, id := range ids {
		if c, ok := f.contacts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeRecordStore) GetState(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[key], nil
}

func (f *fakeRecordStore) SetState(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[key] = value
	return nil
}

func (f *fakeRecordStore) SaveEmbeddings(_ context.Context, recordIDs []string, embeddings [][]float32, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range recordIDs {
		f.embeddings[id] = embeddings[i]
	}
	return nil
}

func (f *fakeRecordStore) GetAllEmbeddings(context.Context) (map[string][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embeddingsErr != nil {
		return nil, f.embeddingsErr
	}
	out := make(map[string][]float32, len(f.embeddings))
	for id, emb := range f.embeddings {
		out[id] = emb
	}
	return out, nil
}

func (f *fakeRecordStore) GetEmbeddingStats(context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	with := len(f.embeddings)
	return with, len(f.records) - with, nil
}

func (f *fakeRecordStore) SaveIngestCheckpoint(context.Context, string, int, int, string) error {
	return nil
}

func (f *fakeRecordStore) LoadIngestCheckpoint(context.Context) (*store.IngestCheckpoint, error) {
	return nil, nil
}

func (f *fakeRecordStore) ClearIngestCheckpoint(context.Context) error { return nil }

func (f *fakeRecordStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeEmbedder returns one canned vector for every input.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  int
	closed bool
}

var _ embed.Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }

func (f *fakeEmbedder) Available(context.Context) bool { return f.err == nil }

func (f *fakeEmbedder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
