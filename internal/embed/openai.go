package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	gserrors "github.com/grantscout/grantscout/internal/errors"
)

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// BaseURL is the OpenAI-compatible endpoint. Empty uses the library
	// default (api.openai.com). Local inference servers work here too.
	BaseURL string

	// APIKey is the bearer token. Keyless local endpoints accept "none".
	APIKey string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected vector size. 0 means detect from a
	// probe embedding at startup.
	Dimensions int

	// BatchSize is the number of texts per request.
	BatchSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the retry attempt count per request.
	MaxRetries int

	// SkipProbe skips the startup probe embedding. Requires Dimensions.
	SkipProbe bool
}

// DefaultOpenAIConfig returns the default OpenAI embedder configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:      DefaultModel,
		Dimensions: DefaultDimensions,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
// A circuit breaker around the service makes a dead endpoint fail fast
// instead of stalling every query for the full timeout.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	config   OpenAIConfig
	breaker  *gserrors.CircuitBreaker
	dims     int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder. Unless cfg.SkipProbe is
// set, it embeds one probe text to verify connectivity and detect the
// vector dimension.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize < MinBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	if cfg.APIKey == "" {
		return nil, gserrors.New(gserrors.ErrCodeConfigInvalid,
			"openai embedder requires an API key", nil).
			WithSuggestion("set OPENAI_API_KEY or switch embeddings.provider to \"static\"")
	}
	if cfg.SkipProbe && cfg.Dimensions <= 0 {
		return nil, gserrors.New(gserrors.ErrCodeConfigInvalid,
			"embeddings.dimensions is required when the startup probe is skipped", nil)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	inner, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	e := &OpenAIEmbedder{
		embedder: inner,
		config:   cfg,
		breaker:  gserrors.NewCircuitBreaker("openai-embed"),
		dims:     cfg.Dimensions,
	}

	if !cfg.SkipProbe {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		probe, err := e.embedder.EmbedDocuments(probeCtx, []string{"dimension probe"})
		if err != nil {
			return nil, gserrors.New(gserrors.ErrCodeEmbedUnavailable,
				fmt.Sprintf("embedding service unreachable (model %s)", cfg.Model), err).
				WithSuggestion("check the API key and base URL, or use embeddings.provider \"static\"")
		}
		if len(probe) == 0 || len(probe[0]) == 0 {
			return nil, gserrors.New(gserrors.ErrCodeEmbedRejected,
				"embedding service returned an empty probe vector", nil)
		}
		probed := len(probe[0])
		if cfg.Dimensions > 0 && probed != cfg.Dimensions {
			return nil, gserrors.New(gserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("model %s returns %d dimensions, config expects %d", cfg.Model, probed, cfg.Dimensions), nil).
				WithSuggestion("update embeddings.dimensions and rebuild with 'grantscout ingest --force'")
		}
		e.dims = probed
	}

	return e, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	// Handle empty/whitespace input
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	vectors, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Empty texts get
// zero vectors without an API call; the rest go out in BatchSize chunks.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}

	for start := 0; start < len(nonEmpty); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.config.BatchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}

		batch := nonEmpty[start:end]
		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		vectors, err := e.embedWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for i, vec := range vectors {
			results[batch[i].idx] = vec
		}
	}

	return results, nil
}

// embedWithRetry performs one embedding request with retry and circuit
// breaker accounting. Vectors come back unit-normalized.
func (e *OpenAIEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.breaker.Allow() {
		return nil, gserrors.New(gserrors.ErrCodeEmbedUnavailable,
			"embedding service circuit open", gserrors.ErrCircuitOpen)
	}

	retryCfg := gserrors.RetryConfig{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}

	vectors, err := gserrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		vecs, embedErr := e.embedder.EmbedDocuments(reqCtx, texts)
		if embedErr != nil {
			e.breaker.RecordFailure()
			slog.Debug("embed_request_failed",
				slog.Int("texts", len(texts)),
				slog.String("error", embedErr.Error()))
			return nil, embedErr
		}
		e.breaker.RecordSuccess()
		return vecs, nil
	})
	if err != nil {
		// Cancellation is the caller's, not a service failure
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		code := gserrors.ErrCodeEmbedUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = gserrors.ErrCodeEmbedTimeout
		}
		return nil, gserrors.New(code, "embedding request failed", err)
	}

	normalized := make([][]float32, len(vectors))
	for i, vec := range vectors {
		normalized[i] = normalizeVector(vec)
	}
	return normalized, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the embedder is usable. Liveness is tracked
// through the circuit breaker rather than probe calls, so this is cheap
// enough for the per-request degradation check.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	return e.breaker.Allow()
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
