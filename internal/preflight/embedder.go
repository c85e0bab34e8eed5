package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/grantscout/grantscout/internal/embed"
)

// serviceProbeTimeout bounds the embedding service probe when no
// timeout is configured.
const serviceProbeTimeout = 10 * time.Second

// resolveProvider mirrors the embed factory's auto-detection: an
// explicit GRANTSCOUT_EMBEDDER wins, then the configured provider, then
// openai when an API key is present and static otherwise.
func (c *Checker) resolveProvider() embed.ProviderType {
	provider := c.embedCfg.Provider
	if env := os.Getenv("GRANTSCOUT_EMBEDDER"); env != "" {
		provider = env
	}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case string(embed.ProviderOpenAI):
		return embed.ProviderOpenAI
	case string(embed.ProviderStatic):
		return embed.ProviderStatic
	}

	if c.apiKey() != "" {
		return embed.ProviderOpenAI
	}
	return embed.ProviderStatic
}

// apiKey returns the configured API key, falling back to the
// environment the same way the config layer does.
func (c *Checker) apiKey() string {
	if c.embedCfg.APIKey != "" {
		return c.embedCfg.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// expectedIdentity returns the model name and dimensions the resolved
// provider would stamp on a fresh index. Used to detect indexes built
// with a different embedder.
func (c *Checker) expectedIdentity() (model string, dims int) {
	if c.resolveProvider() == embed.ProviderStatic {
		dims = c.embedCfg.Dimensions
		if dims <= 0 {
			dims = embed.StaticDimensions
		}
		return "static", dims
	}

	model = c.embedCfg.Model
	if env := os.Getenv("GRANTSCOUT_OPENAI_MODEL"); env != "" {
		model = env
	}
	if model == "" {
		model = embed.DefaultModel
	}
	dims = c.embedCfg.Dimensions
	if dims <= 0 {
		dims = embed.DefaultDimensions
	}
	return model, dims
}

// CheckEmbedderConfig reports which embedding provider the current
// configuration resolves to. Static resolution is a warning rather
// than a failure: the lexical matcher serves queries either way.
func (c *Checker) CheckEmbedderConfig() CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	model, dims := c.expectedIdentity()

	if c.resolveProvider() == embed.ProviderOpenAI {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("openai (%s, %d dims)", model, dims)
		if c.embedCfg.BaseURL != "" {
			result.Details = "endpoint: " + c.embedCfg.BaseURL
		}
		return result
	}

	result.Status = StatusWarn
	result.Message = "using static embeddings (reduced semantic quality)"
	result.Details = "set OPENAI_API_KEY or embeddings.provider in .grantscout.yaml to use a remote model"
	return result
}

// CheckEmbedderService verifies the embedding endpoint answers a probe
// request. Constructing the embedder runs the probe, so a successful
// build means the service is reachable and returns vectors of the
// expected dimension. Callers gate this on an openai resolution.
func (c *Checker) CheckEmbedderService(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedding_service",
		Required: false,
	}

	cfg := c.embedCfg
	cfg.Provider = string(embed.ProviderOpenAI)
	cfg.APIKey = c.apiKey()
	cfg.SkipProbe = false
	if cfg.Timeout <= 0 {
		cfg.Timeout = serviceProbeTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	embedder, err := embed.NewEmbedder(probeCtx, cfg)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("embedding service unreachable: %v", err)
		result.Details = "keyword search still works; semantic matching degrades until the service answers"
		return result
	}
	defer func() { _ = embedder.Close() }()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s answering (%d dims)", embedder.ModelName(), embedder.Dimensions())
	return result
}
