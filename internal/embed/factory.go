package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	// ProviderOpenAI talks to an OpenAI-compatible API; the default
	// whenever an API key is present.
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic hashes text locally: no network, reduced quality.
	ProviderStatic ProviderType = "static"
)

// String returns the provider name.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders lists the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderOpenAI), string(ProviderStatic)}
}

// Config carries what the factory needs to build an embedder. The caller
// resolves the API key from the environment; keys never live in config
// files.
type Config struct {
	Provider   string // "openai", "static", or "" for auto-detection
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	CacheSize  int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	SkipProbe  bool
}

// NewEmbedder builds an embedder from the configuration, after applying
// environment overrides (GRANTSCOUT_EMBEDDER for the provider, plus
// base URL, model and timeout overrides).
//
// With no explicit provider, auto-detection picks openai when an API key
// is present and static otherwise. An explicitly selected openai
// provider that cannot be built is an error, never a silent static
// fallback: static vectors are dimensionally incompatible with an
// openai-built index, and indexing with them silently would corrupt
// search results.
//
// The result is wrapped in a query cache unless GRANTSCOUT_EMBED_CACHE
// disables it.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	applyEnvOverrides(&cfg)

	inner, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cacheDisabled() {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// buildProvider constructs the bare embedder for the resolved provider.
func buildProvider(ctx context.Context, cfg Config) (Embedder, error) {
	switch resolveProviderName(cfg) {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(ctx, OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			SkipProbe:  cfg.SkipProbe,
		})

	case ProviderStatic:
		return NewStaticEmbedder(cfg.Dimensions), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: %s)",
			strings.ToLower(strings.TrimSpace(cfg.Provider)),
			strings.Join(ValidProviders(), ", "))
	}
}

// resolveProviderName normalizes the configured provider, auto-detecting
// by API key presence when none is set.
func resolveProviderName(cfg Config) ProviderType {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name != "" {
		return ProviderType(name)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	slog.Debug("embedder_auto_static", slog.String("reason", "no API key"))
	return ProviderStatic
}

// applyEnvOverrides lets environment variables beat config file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRANTSCOUT_EMBEDDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GRANTSCOUT_OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GRANTSCOUT_OPENAI_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("GRANTSCOUT_EMBED_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
}

func cacheDisabled() bool {
	switch strings.ToLower(os.Getenv("GRANTSCOUT_EMBED_CACHE")) {
	case "false", "0", "off", "disabled":
		return true
	}
	return false
}

// EmbedderInfo describes a constructed embedder for status output and
// index metadata.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, looking through the cache wrapper to
// report the real provider.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}
	if _, ok := inner.(*OpenAIEmbedder); ok {
		info.Provider = ProviderOpenAI
	} else {
		info.Provider = ProviderStatic
	}
	return info
}
