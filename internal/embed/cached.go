package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize bounds the query cache. At 1536 dims of
// float32 per entry, 2048 entries stay around 12-13MB.
const DefaultEmbeddingCacheSize = 2048

// CachedEmbedder adds an LRU layer in front of another embedder.
// Refinement loops tend to re-embed the same query text over and over;
// a hit skips the API round trip and keeps the session off the
// provider's rate limits.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of cacheSize unique texts.
// Non-positive sizes fall back to DefaultEmbeddingCacheSize.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	// lru.New only errors on non-positive size, ruled out above.
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// cacheKey hashes model and text together: switching models must never
// serve vectors computed under the old one.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed serves from cache when possible, delegating misses to the inner
// embedder and caching the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}

	fresh, err := c.inner.Embed(ctx, text)
	if err != nil {
		// Failures are not cached; the next call gets a clean attempt.
		return nil, err
	}
	c.cache.Add(key, fresh)
	return fresh, nil
}

// EmbedBatch fills what it can from cache and sends only the misses to
// the inner embedder, so a batch that repeats warm texts costs one
// smaller request, or none at all.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	for i, text := range texts {
		if hit, ok := c.cache.Get(c.cacheKey(text)); ok {
			out[i] = hit
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		c.cache.Add(c.cacheKey(texts[i]), fresh[j])
	}
	return out, nil
}

// The remaining Embedder methods delegate straight to the wrapped
// embedder. Cached vectors live and die with the process.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *CachedEmbedder) Close() error { return c.inner.Close() }
