package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs served by the GrantScout MCP server. Everything is
// engine-generated JSON; there are no file-backed resources.
const (
	corpusResourceURI       = "grantscout://corpus"
	queryMetricsResourceURI = "grantscout://query_metrics"
)

// registerCorpusResource registers the corpus statistics resource.
// It serves the same payload as the corpus_status tool, for clients that
// prefer reading resources over calling tools.
func (s *Server) registerCorpusResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "corpus",
			URI:         corpusResourceURI,
			Description: "Grant corpus and index statistics, including semantic search availability",
			MIMEType:    "application/json",
		},
		s.makeCorpusHandler(),
	)
}

// makeCorpusHandler creates a read handler for the corpus resource.
func (s *Server) makeCorpusHandler() mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		status, err := s.handleCorpusStatus(ctx)
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResource(corpusResourceURI, status)
	}
}

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	TimePeriod    string  `json:"time_period"`
	ZeroResultPct float64 `json:"zero_result_pct"`
	DegradedPct   float64 `json:"degraded_pct"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsResourceURI,
			Description: "Query pattern telemetry: query types, zero-result queries, degraded-mode rate",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates a handler for the query_metrics resource.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		s.mu.RLock()
		metrics := s.metrics
		s.mu.RUnlock()

		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		snapshot := metrics.Snapshot()

		output := QueryMetricsOutput{
			Summary: QueryMetricsSummary{
				TotalQueries:  snapshot.TotalQueries,
				TimePeriod:    "session",
				ZeroResultPct: snapshot.ZeroResultPercentage(),
				DegradedPct:   snapshot.DegradedRate * 100,
			},
			QueryTypeCounts:     make(map[string]int64, len(snapshot.QueryTypeCounts)),
			TopTerms:            make([]QueryTermCount, 0, len(snapshot.TopTerms)),
			ZeroResultQueries:   snapshot.ZeroResultQueries,
			LatencyDistribution: make(map[string]int64, len(snapshot.LatencyDistribution)),
		}

		for qt, count := range snapshot.QueryTypeCounts {
			output.QueryTypeCounts[string(qt)] = count
		}
		for _, tc := range snapshot.TopTerms {
			output.TopTerms = append(output.TopTerms, QueryTermCount{
				Term:  tc.Term,
				Count: tc.Count,
			})
		}
		for bucket, count := range snapshot.LatencyDistribution {
			output.LatencyDistribution[string(bucket)] = count
		}

		return jsonResource(queryMetricsResourceURI, output)
	}
}

// jsonResource marshals a payload into a single-content resource result.
func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
