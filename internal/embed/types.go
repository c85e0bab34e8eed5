// Package embed generates vector embeddings for grant abstracts and
// search queries. Two providers exist: an OpenAI-compatible client for
// real semantic quality, and a hash-based static embedder that works
// offline. Both produce unit-length vectors so the ANN index can rank
// by plain dot product.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	MinBatchSize = 1
	// MaxBatchSize caps one request; larger batches risk memory spikes
	// and oversized payloads.
	MaxBatchSize = 256

	// DefaultBatchSize balances throughput against blast radius: OpenAI
	// accepts far larger batches, but one timeout then loses minutes of
	// ingest work.
	DefaultBatchSize = 64

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

const (
	// DefaultModel is the OpenAI model used when config names none.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions matches text-embedding-3-small.
	DefaultDimensions = 1536
)

// StaticDimensions is the fallback dimension for hash-based vectors.
// Static vectors carry less signal, so they get a smaller space.
const StaticDimensions = 256

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector this embedder returns.
	Dimensions() int
	// ModelName identifies the model, recorded in the index metadata so
	// a later ingest can detect a model switch.
	ModelName() string
	// Available reports whether the embedder can serve requests now.
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors pass through
// unchanged; there is no direction to preserve.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
