package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/grantscout/grantscout/internal/config"
	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/search"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/telemetry"
	"github.com/grantscout/grantscout/pkg/version"
)

// resultSetCacheSize bounds how many full result sets the server holds
// for refiltering. Least-recently-used sets are evicted; refiltering an
// evicted set returns ErrCodeUnknownResultSet.
const resultSetCacheSize = 32

// Server is the MCP server for GrantScout. It bridges AI clients with the
// hybrid grant search engine over stdio.
type Server struct {
	mcp      *mcp.Server
	engine   search.Searcher
	embedder embed.Embedder // Embedder for capability signaling
	config   *config.Config
	logger   *slog.Logger

	// resultSets holds full surviving result lists keyed by result-set ID.
	// They back refilter_grants: filters are re-applied to the cached list
	// without touching the indexes.
	resultSets *lru.Cache[string, []*store.Record]

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server. The embedder parameter is used for
// capability signaling only - clients query corpus_status to learn whether
// semantic matching is live before spending a semantic_query. It may be
// nil, which reports as unavailable.
func NewServer(engine search.Searcher, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	sets, err := lru.New[string, []*store.Record](resultSetCacheSize)
	if err != nil {
		return nil, fmt.Errorf("result set cache: %w", err)
	}

	s := &Server{
		engine:     engine,
		embedder:   embedder,
		config:     cfg,
		logger:     slog.Default(),
		resultSets: sets,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "GrantScout",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerCorpusResource()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "GrantScout", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search_grants",
			Description: searchGrantsDescription,
		},
		{
			Name:        "refilter_grants",
			Description: refilterGrantsDescription,
		},
		{
			Name:        "corpus_status",
			Description: corpusStatusDescription,
		},
	}
}

// Tool descriptions. Written for the AI client deciding which tool to
// call, so they explain when each one pays off.
const (
	searchGrantsDescription = "Search research grant records by keyword, by meaning, or both. " +
		"keyword_query requires every term (pipe alternatives allowed: 'neural|brain organoid'); " +
		"semantic_query finds conceptually similar abstracts. Returns results with facet counts " +
		"and a result_set_id for follow-up filtering."

	refilterGrantsDescription = "Re-apply a new filter combination to a previous search_grants " +
		"result set without re-searching. Much faster than a new search when only filters change. " +
		"Facet counts use cross-filter semantics: each dimension is counted with every other " +
		"active filter applied."

	corpusStatusDescription = "Check corpus and index statistics and whether semantic search is " +
		"available. Use before searching to decide if a semantic_query is worth sending."
)

// CallTool invokes a tool by name with the given arguments. This is the
// transport-independent entry point; the stdio transport reaches the same
// handlers through the SDK wrappers.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_grants":
		var in SearchGrantsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleSearchGrants(ctx, in)
	case "refilter_grants":
		var in RefilterGrantsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleRefilterGrants(ctx, in)
	case "corpus_status":
		return s.handleCorpusStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// decodeArgs converts loosely typed tool arguments into a typed input.
func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("malformed arguments: %v", err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("malformed arguments: %v", err))
	}
	return nil
}

// handleSearchGrants executes a hybrid search and caches the full result
// list under a fresh result-set ID.
func (s *Server) handleSearchGrants(ctx context.Context, in SearchGrantsInput) (*GrantsOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("search_grants started",
		slog.String("request_id", requestID),
		slog.String("keyword_query", in.KeywordQuery),
		slog.String("semantic_query", in.SemanticQuery),
		slog.Int("limit", in.Limit))

	req := &search.SearchRequest{
		KeywordQuery:  in.KeywordQuery,
		SemanticQuery: in.SemanticQuery,
		Filters:       in.filters(),
		Limit:         in.Limit,
	}

	resp, err := s.engine.Search(ctx, req)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search_grants failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	resultSetID := uuid.NewString()
	s.resultSets.Add(resultSetID, cacheableFull(resp))

	out := toGrantsOutput(resultSetID, resp)
	s.logger.Info("search_grants completed",
		slog.String("request_id", requestID),
		slog.String("result_set_id", resultSetID),
		slog.Duration("duration", duration),
		slog.Int("total_count", out.TotalCount),
		slog.Int("showing_count", out.ShowingCount))

	return out, nil
}

// handleRefilterGrants re-applies filters to a cached result set.
func (s *Server) handleRefilterGrants(ctx context.Context, in RefilterGrantsInput) (*GrantsOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if in.ResultSetID == "" {
		return nil, NewInvalidParamsError("result_set_id parameter is required")
	}

	full, ok := s.resultSets.Get(in.ResultSetID)
	if !ok {
		s.logger.Warn("refilter_grants unknown result set",
			slog.String("request_id", requestID),
			slog.String("result_set_id", in.ResultSetID))
		return nil, NewUnknownResultSetError(in.ResultSetID)
	}

	res, err := s.engine.Refilter(ctx, full, in.filters())
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("refilter_grants failed",
			slog.String("request_id", requestID),
			slog.String("result_set_id", in.ResultSetID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("refilter_grants completed",
		slog.String("request_id", requestID),
		slog.String("result_set_id", in.ResultSetID),
		slog.Duration("duration", duration),
		slog.Int("total_count", res.TotalCount))

	return toRefilterOutput(in.ResultSetID, res), nil
}

// handleCorpusStatus reports corpus counts and embedder capability.
func (s *Server) handleCorpusStatus(_ context.Context) (*CorpusStatusOutput, error) {
	stats := s.engine.Stats()

	out := &CorpusStatusOutput{
		Embeddings: EmbeddingInfo{
			Provider: s.config.Embeddings.Provider,
			Model:    s.config.Embeddings.Model,
			Status:   "unavailable",
		},
	}
	if stats != nil {
		out.Records.RecordCount = stats.RecordCount
		out.Records.VectorCount = stats.VectorCount
		if stats.TextStats != nil {
			out.Records.IndexedCount = stats.TextStats.DocumentCount
		}
	}

	if s.embedder != nil {
		out.Embeddings.ActualModel = s.embedder.ModelName()
		out.Embeddings.Dimensions = s.embedder.Dimensions()
		if s.embedder.Available(context.Background()) {
			out.Embeddings.Status = "ready"
		}
	} else {
		out.Embeddings.ActualModel = "none"
	}

	// Semantic matching needs a live embedder and stored vectors.
	out.Embeddings.SemanticAvailable = out.Embeddings.Status == "ready" && out.Records.VectorCount > 0

	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_grants",
		Description: searchGrantsDescription,
	}, s.mcpSearchGrantsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "refilter_grants",
		Description: refilterGrantsDescription,
	}, s.mcpRefilterGrantsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "corpus_status",
		Description: corpusStatusDescription,
	}, s.mcpCorpusStatusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 3))
}

// mcpSearchGrantsHandler is the MCP SDK handler for the search_grants tool.
func (s *Server) mcpSearchGrantsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchGrantsInput) (
	*mcp.CallToolResult,
	*GrantsOutput,
	error,
) {
	out, err := s.handleSearchGrants(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// mcpRefilterGrantsHandler is the MCP SDK handler for the refilter_grants tool.
func (s *Server) mcpRefilterGrantsHandler(ctx context.Context, _ *mcp.CallToolRequest, input RefilterGrantsInput) (
	*mcp.CallToolResult,
	*GrantsOutput,
	error,
) {
	out, err := s.handleRefilterGrants(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// mcpCorpusStatusHandler is the MCP SDK handler for the corpus_status tool.
func (s *Server) mcpCorpusStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ CorpusStatusInput) (
	*mcp.CallToolResult,
	*CorpusStatusOutput,
	error,
) {
	out, err := s.handleCorpusStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP server itself stops when its
// context is canceled; only the result-set cache is dropped here.
func (s *Server) Close() error {
	s.resultSets.Purge()
	return nil
}

// generateRequestID creates a unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()
}
