package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/logging"
	"github.com/grantscout/grantscout/internal/output"
	"github.com/grantscout/grantscout/internal/search"
	"github.com/grantscout/grantscout/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	semantic    string
	keywordOnly bool
	format      string // "text", "json"
	categories  []string
	orgTypes    []string
	states      []string
	minFunding  float64
	hasPatents  bool
	hasPubs     bool
	hasTrials   bool
	contacts    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the indexed grant corpus",
		Long: `Search the indexed corpus using hybrid retrieval.

Combines keyword matching (with morphological variants) and semantic
search, fused with Reciprocal Rank Fusion. A keyword position may carry
pipe-separated alternatives: "neural|brain organoid" means
(neural OR brain) AND organoid.

Examples:
  grantscout search "gene therapy"
  grantscout search "crispr" --category biotech --state CA --limit 5
  grantscout search --semantic "implantable glucose monitoring devices"
  grantscout search "vaccine" --min-funding 1000000 --has-patents
  grantscout search "microfluidics" --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" && strings.TrimSpace(opts.semantic) == "" {
				return fmt.Errorf("provide a keyword query, --semantic text, or both")
			}
			if opts.keywordOnly && opts.semantic != "" {
				return fmt.Errorf("--semantic and --keyword-only are mutually exclusive")
			}
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.semantic, "semantic", "", "Semantic query text (defaults to the keyword query)")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Skip semantic search entirely (no embedder, no network)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "Filter by category (repeatable)")
	cmd.Flags().StringSliceVar(&opts.orgTypes, "org-type", nil, "Filter by organization type (repeatable)")
	cmd.Flags().StringSliceVar(&opts.states, "state", nil, "Filter by two-letter state code (repeatable)")
	cmd.Flags().Float64Var(&opts.minFunding, "min-funding", 0, "Minimum funding in USD")
	cmd.Flags().BoolVar(&opts.hasPatents, "has-patents", false, "Only records with patents")
	cmd.Flags().BoolVar(&opts.hasPubs, "has-publications", false, "Only records with publications")
	cmd.Flags().BoolVar(&opts.hasTrials, "has-trials", false, "Only records with clinical trials")
	cmd.Flags().BoolVar(&opts.contacts, "contacts", false, "Include contact details on top-funded sample results")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	// File-only logging so results stay clean on stdout.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)

	recordsPath := store.GetRecordDBPath(dataDir)
	if !fileExists(recordsPath) {
		return fmt.Errorf("no index found. Run 'grantscout ingest <corpus.jsonl>' first")
	}

	records, err := store.NewSQLiteStore(recordsPath)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = records.Close() }()

	textBase := store.GetTextIndexBasePath(dataDir)
	backend := string(store.DetectTextBackend(textBase))
	if backend == "" {
		backend = cfg.Search.TextBackend
	}
	text, err := store.NewTextIndexWithBackend(textBase, backend)
	if err != nil {
		return fmt.Errorf("failed to open keyword index: %w", err)
	}
	defer func() { _ = text.Close() }()

	// Embedder: --keyword-only never touches the network; otherwise use
	// the configured provider and let a failed query embedding degrade
	// the search rather than abort it.
	var embedder embed.Embedder
	if opts.keywordOnly {
		embedder = embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	} else {
		embedder, err = embed.NewEmbedder(ctx, embed.Config{
			Provider:   cfg.Embeddings.Provider,
			BaseURL:    cfg.Embeddings.BaseURL,
			APIKey:     cfg.Embeddings.APIKey(),
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			CacheSize:  cfg.Embeddings.CacheSize,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.Embeddings.Timeout(),
			SkipProbe:  true,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w (use --keyword-only to search without one)", err)
		}
	}
	defer func() { _ = embedder.Close() }()

	vectorPath := store.GetVectorStorePath(dataDir)
	dims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil || dims == 0 {
		dims = embedder.Dimensions()
	}
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer func() { _ = vectors.Close() }()

	if fileExists(vectorPath) {
		if loadErr := vectors.Load(vectorPath); loadErr != nil {
			slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	engine, err := search.NewEngine(text, vectors, embedder, records, engineConfigFrom(cfg),
		search.WithContacts(opts.contacts))
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}
	// Stores are closed by the deferred closes above; engine.Close would
	// just repeat them.

	semantic := strings.TrimSpace(opts.semantic)
	if semantic == "" && !opts.keywordOnly {
		semantic = query
	}

	req := &search.SearchRequest{
		KeywordQuery:  query,
		SemanticQuery: semantic,
		Filters:       filtersFrom(opts),
		Limit:         opts.limit,
	}

	start := time.Now()
	resp, err := engine.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete",
		slog.Int("total", resp.TotalCount),
		slog.Int64("latency_ms", time.Since(start).Milliseconds()))

	label := query
	if label == "" {
		label = semantic
	}

	if resp.TotalCount == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", label))
		return nil
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return formatText(out, label, resp, opts.contacts)
	}
}

// filtersFrom maps CLI flags onto engine filters. State codes are
// normalized to upper case so --state ca works.
func filtersFrom(opts searchOptions) search.Filters {
	states := make([]string, 0, len(opts.states))
	for _, s := range opts.states {
		states = append(states, strings.ToUpper(strings.TrimSpace(s)))
	}
	if len(states) == 0 {
		states = nil
	}

	return search.Filters{
		Categories:      opts.categories,
		OrgTypes:        opts.orgTypes,
		States:          states,
		MinFunding:      opts.minFunding,
		HasPatents:      opts.hasPatents,
		HasPublications: opts.hasPubs,
		HasTrials:       opts.hasTrials,
	}
}

// formatText renders the response for humans: facet summary, ranked
// results with funding, then the top-funded sample when contacts were
// requested.
func formatText(out *output.Writer, label string, resp *search.SearchResponse, contacts bool) error {
	out.Statusf("🔍", "Found %d results for %q (showing %d):", resp.TotalCount, label, resp.ShowingCount)

	if line := facetLine(resp.ByCategory); line != "" {
		out.Status("", "Categories: "+line)
	}
	if line := facetLine(resp.ByOrgType); line != "" {
		out.Status("", "Org types:  "+line)
	}
	out.Newline()

	for i, r := range resp.AllResults {
		out.Result(i+1, r.Title, output.FormatUSD(r.FundingUSD))
		out.Field("Org", orgLabel(r))
		out.Field("State", r.State)
		if r.Year > 0 {
			out.Field("Year", fmt.Sprintf("%d", r.Year))
		}
		out.Field("Category", r.Category)
		if excerpt := abstractExcerpt(r.Abstract); excerpt != "" {
			out.Snippet(excerpt)
		}
		out.Newline()
	}

	if contacts && len(resp.SampleResults) > 0 {
		out.Header("Top funded")
		for i, s := range resp.SampleResults {
			out.Result(i+1, s.Title, output.FormatUSD(s.FundingUSD))
			if s.ContactName != nil {
				out.Field("Contact", *s.ContactName)
			}
			if s.ContactEmail != nil {
				out.Field("Email", *s.ContactEmail)
			}
		}
		out.Newline()
	}

	return nil
}

// facetLine renders facet counts as "name: n" pairs, largest first.
func facetLine(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	type facet struct {
		name  string
		count int
	}
	facets := make([]facet, 0, len(counts))
	for name, count := range counts {
		facets = append(facets, facet{name, count})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].count != facets[j].count {
			return facets[i].count > facets[j].count
		}
		return facets[i].name < facets[j].name
	})

	parts := make([]string, len(facets))
	for i, f := range facets {
		parts[i] = fmt.Sprintf("%s: %d", f.name, f.count)
	}
	return strings.Join(parts, ", ")
}

// orgLabel combines organization name and type for display.
func orgLabel(r *store.Record) string {
	switch {
	case r.OrgName == "":
		return ""
	case r.OrgType == "":
		return r.OrgName
	default:
		return fmt.Sprintf("%s (%s)", r.OrgName, r.OrgType)
	}
}

// abstractExcerpt returns the first sentence-ish fragment of an
// abstract, capped for terminal display.
func abstractExcerpt(abstract string) string {
	const maxLen = 200

	text := strings.TrimSpace(abstract)
	if text == "" {
		return ""
	}
	if line, _, found := strings.Cut(text, "\n"); found {
		text = line
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
