package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantscout/grantscout/internal/output"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/telemetry"
	"github.com/grantscout/grantscout/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics and query telemetry",
		Long: `Display statistics about the grant index: record counts, embedding
coverage, on-disk sizes, and funding totals by year.

Subcommands report query telemetry (patterns, latency, degradation).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsIndex(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newStatsQueriesCmd())
	return cmd
}

// StatsIndexOutput is the JSON output format for index stats.
type StatsIndexOutput struct {
	Location      string             `json:"location"`
	ProjectRoot   string             `json:"project_root"`
	RecordCount   int                `json:"record_count"`
	EmbeddedCount int                `json:"embedded_count"`
	IndexModel    string             `json:"index_model,omitempty"`
	IndexProvider string             `json:"index_provider,omitempty"`
	Dimensions    int                `json:"dimensions,omitempty"`
	Compatible    bool               `json:"compatible"`
	SizeBytes     int64              `json:"size_bytes"`
	UpdatedAt     string             `json:"updated_at,omitempty"`
	FundingByYear []YearFundingEntry `json:"funding_by_year,omitempty"`
}

// YearFundingEntry is one year's funding total in JSON output.
type YearFundingEntry struct {
	Year     int     `json:"year"`
	TotalUSD float64 `json:"total_usd"`
	Count    int     `json:"count"`
}

func runStatsIndex(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)

	recordsPath := store.GetRecordDBPath(dataDir)
	if !fileExists(recordsPath) {
		return fmt.Errorf("no index found in %s\nRun 'grantscout ingest <corpus.jsonl>' to create one", root)
	}

	records, err := store.NewSQLiteStore(recordsPath)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = records.Close() }()

	info, err := store.GatherIndexInfo(ctx, records, dataDir, root, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to gather index info: %w", err)
	}

	funding, err := records.FundingByYear(ctx)
	if err != nil {
		return fmt.Errorf("failed to read funding totals: %w", err)
	}

	if jsonOutput {
		out := &StatsIndexOutput{
			Location:      info.Location,
			ProjectRoot:   info.ProjectRoot,
			RecordCount:   info.RecordCount,
			EmbeddedCount: info.EmbeddedCount,
			IndexModel:    info.IndexModel,
			IndexProvider: info.IndexProvider,
			Dimensions:    info.IndexDimensions,
			Compatible:    info.Compatible,
			SizeBytes:     info.IndexSizeBytes,
		}
		if !info.UpdatedAt.IsZero() {
			out.UpdatedAt = info.UpdatedAt.Format(time.RFC3339)
		}
		for _, yf := range funding {
			out.FundingByYear = append(out.FundingByYear, YearFundingEntry{
				Year:     yf.Year,
				TotalUSD: yf.TotalUSD,
				Count:    yf.Count,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printStatsIndex(cmd, info, funding)
	return nil
}

func printStatsIndex(cmd *cobra.Command, info *store.IndexInfo, funding []store.YearFunding) {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Index Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Location:     %s\n", info.Location)
	fmt.Fprintf(w, "Project root: %s\n", info.ProjectRoot)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Records:      %d (%d embedded)\n", info.RecordCount, info.EmbeddedCount)
	fmt.Fprintf(w, "Index size:   %s (records %s, keyword %s, vectors %s)\n",
		store.FormatBytes(info.IndexSizeBytes),
		store.FormatBytes(info.RecordsSizeBytes),
		store.FormatBytes(info.TextSizeBytes),
		store.FormatBytes(info.VectorSizeBytes))
	fmt.Fprintf(w, "Updated:      %s\n", store.FormatTime(info.UpdatedAt))
	fmt.Fprintln(w)

	if info.IndexModel != "" {
		fmt.Fprintf(w, "Embedding model: %s (%s, %d dims)\n",
			info.IndexModel, info.IndexProvider, info.IndexDimensions)
	} else {
		fmt.Fprintln(w, "Embedding model: (none recorded)")
	}

	if !info.Compatible {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "⚠ Current embedder (%s, %d dims) is incompatible with this index.\n",
			info.CurrentModel, info.CurrentDimensions)
		fmt.Fprintln(w, "  Run 'grantscout ingest --force <corpus.jsonl>' to rebuild.")
	}

	if len(funding) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Funding by year:")
		totals := make([]float64, 0, len(funding))
		for _, yf := range funding {
			noun := "awards"
			if yf.Count == 1 {
				noun = "award"
			}
			fmt.Fprintf(w, "  %d  %-8s (%d %s)\n", yf.Year, output.FormatUSD(yf.TotalUSD), yf.Count, noun)
			totals = append(totals, yf.TotalUSD)
		}
		if spark := ui.RenderValues(totals); spark != "" {
			fmt.Fprintf(w, "  %s\n", spark)
		}
	}
}

func newStatsQueriesCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show query pattern statistics",
		Long: `Display query pattern telemetry including:
  - Query type distribution (lexical/semantic/hybrid)
  - Top query terms
  - Zero-result queries
  - Latency distribution and degraded-query rate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsQueries(cmd.Context(), cmd, jsonOutput, days)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")

	return cmd
}

// StatsQueriesOutput is the JSON output format for query stats.
type StatsQueriesOutput struct {
	Summary             StatsQueriesSummary   `json:"summary"`
	QueryTypeCounts     map[string]int64      `json:"query_type_counts"`
	TopTerms            []telemetry.TermCount `json:"top_terms"`
	ZeroResultQueries   []string              `json:"zero_result_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
}

// StatsQueriesSummary provides overview statistics.
type StatsQueriesSummary struct {
	Days          int     `json:"days"`
	TotalQueries  int64   `json:"total_queries"`
	DegradedCount int64   `json:"degraded_count"`
	DegradedPct   float64 `json:"degraded_pct"`
}

func runStatsQueries(ctx context.Context, cmd *cobra.Command, jsonOutput bool, days int) error {
	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)

	recordsPath := store.GetRecordDBPath(dataDir)
	if !fileExists(recordsPath) {
		return fmt.Errorf("no index found in %s\nRun 'grantscout ingest <corpus.jsonl>' to create one", root)
	}

	records, err := store.NewSQLiteStore(recordsPath)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = records.Close() }()

	// Telemetry shares the record database; make sure its tables exist
	// even if no server has run against this index yet.
	db := records.DB()
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return fmt.Errorf("failed to initialize telemetry schema: %w", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}

	output, err := getQueryStats(ctx, metricsStore, days)
	if err != nil {
		return fmt.Errorf("failed to get query stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	printStatsQueries(cmd, output)
	return nil
}

func getQueryStats(_ context.Context, metricsStore *telemetry.SQLiteMetricsStore, days int) (*StatsQueriesOutput, error) {
	if days < 1 {
		days = 1
	}
	now := time.Now()
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	typeCounts, err := metricsStore.GetQueryTypeCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get query type counts: %w", err)
	}

	latencyCounts, err := metricsStore.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("get latency counts: %w", err)
	}

	degraded, err := metricsStore.GetDegradedCount(from, to)
	if err != nil {
		return nil, fmt.Errorf("get degraded count: %w", err)
	}

	topTerms, err := metricsStore.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}

	zeroResults, err := metricsStore.GetZeroResultQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get zero-result queries: %w", err)
	}

	var total int64
	output := &StatsQueriesOutput{
		QueryTypeCounts:     make(map[string]int64, len(typeCounts)),
		TopTerms:            topTerms,
		ZeroResultQueries:   zeroResults,
		LatencyDistribution: make(map[string]int64, len(latencyCounts)),
	}
	for qt, count := range typeCounts {
		output.QueryTypeCounts[string(qt)] = count
		total += count
	}
	for bucket, count := range latencyCounts {
		output.LatencyDistribution[string(bucket)] = count
	}

	output.Summary = StatsQueriesSummary{
		Days:          days,
		TotalQueries:  total,
		DegradedCount: degraded,
	}
	if total > 0 {
		output.Summary.DegradedPct = float64(degraded) / float64(total) * 100
	}

	return output, nil
}

func printStatsQueries(cmd *cobra.Command, output *StatsQueriesOutput) {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Query Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Window:        last %d days\n", output.Summary.Days)
	fmt.Fprintf(w, "Total Queries: %d\n", output.Summary.TotalQueries)
	fmt.Fprintf(w, "Degraded:      %d (%.1f%%)\n", output.Summary.DegradedCount, output.Summary.DegradedPct)
	fmt.Fprintln(w)

	if len(output.QueryTypeCounts) > 0 {
		fmt.Fprintln(w, "Query Type Distribution:")
		for _, qt := range []telemetry.QueryType{telemetry.QueryTypeLexical, telemetry.QueryTypeSemantic, telemetry.QueryTypeHybrid} {
			if count, ok := output.QueryTypeCounts[string(qt)]; ok {
				fmt.Fprintf(w, "  %s: %d\n", qt, count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(output.TopTerms) > 0 {
		fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range output.TopTerms {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Top Query Terms: (none recorded yet)")
		fmt.Fprintln(w)
	}

	if len(output.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range output.ZeroResultQueries {
			fmt.Fprintf(w, "  - %q\n", q)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Recent Zero-Result Queries: (none)")
		fmt.Fprintln(w)
	}

	if len(output.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "Latency Distribution:")
		buckets := []telemetry.LatencyBucket{
			telemetry.BucketP10,
			telemetry.BucketP50,
			telemetry.BucketP100,
			telemetry.BucketP500,
			telemetry.BucketP1000,
		}
		labels := map[telemetry.LatencyBucket]string{
			telemetry.BucketP10:   "<10ms",
			telemetry.BucketP50:   "10-50ms",
			telemetry.BucketP100:  "50-100ms",
			telemetry.BucketP500:  "100-500ms",
			telemetry.BucketP1000: ">500ms",
		}
		for _, b := range buckets {
			if count, ok := output.LatencyDistribution[string(b)]; ok {
				fmt.Fprintf(w, "  %-10s %d\n", labels[b], count)
			}
		}
	}
}
