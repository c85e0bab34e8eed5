package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder hashes text into a fixed-dimension vector. No network,
// no API key, fully deterministic: the same abstract always lands on the
// same vector, on any machine. Semantic quality is well below a real
// model, but lexical overlap and shared trigrams still pull related
// texts together, which is enough for offline use and tests.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

// Feature weights. Whole tokens carry most of the signal; character
// trigrams add partial credit for morphological variants ("genomic" and
// "genomics" share most trigrams).
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// englishStopWords are fillers that carry no signal in grant titles and
// abstracts.
var englishStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"in": true, "is": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "we": true,
	"will": true, "with": true,
}

// NewStaticEmbedder creates a static embedder producing vectors of the
// given dimension, which must match the vector index the embeddings
// feed into. Non-positive dimensions fall back to StaticDimensions.
func NewStaticEmbedder(dimensions int) *StaticEmbedder {
	if dimensions <= 0 {
		dimensions = StaticDimensions
	}
	return &StaticEmbedder{dims: dimensions}
}

// Embed hashes a single text into a unit vector. Empty or whitespace-only
// input yields the zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vec, nil
	}

	for _, tok := range contentTokens(trimmed) {
		vec[hashToIndex(tok, e.dims)] += tokenWeight
	}
	for _, gram := range trigramsOf(trimmed) {
		vec[hashToIndex(gram, e.dims)] += ngramWeight
	}

	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (e *StaticEmbedder) ensureOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// contentTokens splits text into lowercase alphanumeric runs and drops
// English stop words.
func contentTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		t := strings.ToLower(f)
		if !englishStopWords[t] {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// trigramsOf returns the character trigrams of the text with everything
// but letters and digits stripped.
func trigramsOf(text string) []string {
	var flat strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			flat.WriteRune(r)
		}
	}

	s := flat.String()
	if len(s) < ngramSize {
		return nil
	}
	grams := make([]string, 0, len(s)-ngramSize+1)
	for i := 0; i+ngramSize <= len(s); i++ {
		grams = append(grams, s[i:i+ngramSize])
	}
	return grams
}

// hashToIndex maps a feature to a vector slot via FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available is true until Close; hashing has no external dependency.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed. Closing twice is harmless.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
