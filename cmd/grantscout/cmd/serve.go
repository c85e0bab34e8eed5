package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/grantscout/grantscout/internal/config"
	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/ingest"
	"github.com/grantscout/grantscout/internal/logging"
	"github.com/grantscout/grantscout/internal/mcp"
	"github.com/grantscout/grantscout/internal/search"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/telemetry"
	"github.com/grantscout/grantscout/internal/ui"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		debug     bool
		watch     bool
		corpus    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server over stdio.

The server exposes three tools to MCP clients:
  search_grants    hybrid keyword + semantic search with filters
  refilter_grants  re-filter a previous result set without re-searching
  corpus_status    index health, counts, and embedder compatibility

stdout carries JSON-RPC exclusively; logs go to ~/.grantscout/logs/.

With --watch, the corpus file is monitored and changes trigger a
background re-ingest followed by a hot reload of the vector index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport, watch, corpus, debug)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport protocol (stdio)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level logging")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-ingest automatically when the corpus file changes")
	cmd.Flags().StringVar(&corpus, "corpus", "", "Corpus file for --watch (defaults to the one last ingested)")

	return cmd
}

// runServe opens the index read path, wires the search engine, and
// serves MCP until the context is cancelled.
func runServe(ctx context.Context, transport string, watch bool, corpusOverride string, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catch the interactive-terminal mistake before anything else: the
	// server would otherwise sit silently waiting for JSON-RPC on stdin.
	if err := verifyStdinForMCP(); err != nil {
		return err
	}

	root := projectRoot()
	cfg := loadConfigOrDefault(root)

	// MCP-safe logging: file only. stdout carries JSON-RPC exclusively,
	// and clients treat stray stderr output as noise at best.
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	if cleanup, logErr := logging.SetupMCPModeWithLevel(level); logErr == nil {
		defer cleanup()
	}

	dataDir := cfg.DataDir(root)
	recordsPath := store.GetRecordDBPath(dataDir)
	if !fileExists(recordsPath) {
		return fmt.Errorf("no index found in %s: run 'grantscout ingest <corpus.jsonl>' first", dataDir)
	}

	// Record store
	records, err := store.NewSQLiteStore(recordsPath)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = records.Close() }()

	// Keyword index: trust what ingest actually built over the config,
	// so a config edit after ingest cannot point serve at a missing file.
	textBase := store.GetTextIndexBasePath(dataDir)
	backend := string(store.DetectTextBackend(textBase))
	if backend == "" {
		backend = cfg.Search.TextBackend
	}
	cfg.Search.TextBackend = backend
	text, err := store.NewTextIndexWithBackend(textBase, backend)
	if err != nil {
		return fmt.Errorf("failed to open keyword index: %w", err)
	}
	defer func() { _ = text.Close() }()

	// Query embedder. SkipProbe defers availability to query time: a
	// dead endpoint degrades searches to keyword-only instead of
	// failing startup.
	embedder, err := embed.NewEmbedder(ctx, embed.Config{
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
		return fmt.Errorf("embedder initialization failed: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	if indexModel, stateErr := records.GetState(ctx, store.StateKeyIndexModel); stateErr == nil &&
		indexModel != "" && indexModel != embedder.ModelName() {
		slog.Warn("query embedder differs from index embedder, semantic matching degraded",
			slog.String("index_model", indexModel),
			slog.String("query_model", embedder.ModelName()))
	}

	// Vector store: size from the on-disk index when present. A missing
	// or unreadable index leaves the store empty; the engine falls back
	// to an exact scan over stored embeddings.
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
		if err := vectors.Load(vectorPath); err != nil {
			slog.Warn("failed to load vector index, falling back to exact scan",
				slog.String("path", vectorPath),
				slog.String("error", err.Error()))
		}
	}

	// Telemetry shares the record database.
	var metrics *telemetry.QueryMetrics
	if err := telemetry.InitTelemetrySchema(records.DB()); err != nil {
		slog.Warn("telemetry schema init failed, metrics disabled", slog.String("error", err.Error()))
	} else if metricsStore, msErr := telemetry.NewSQLiteMetricsStore(records.DB()); msErr == nil {
		metrics = telemetry.NewQueryMetrics(metricsStore)
	}

	engineOpts := []search.EngineOption{search.WithContacts(cfg.Server.IncludeContacts)}
	if metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(metrics))
	}

	engine, err := search.NewEngine(text, vectors, embedder, records, engineConfigFrom(cfg), engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	server, err := mcp.NewServer(engine, embedder, cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()
	if metrics != nil {
		server.SetMetrics(metrics)
		// Deferred last so the final flush runs before the database closes.
		defer func() { _ = metrics.Close() }()
	}

	// Corpus watcher runs in the background so a slow filesystem can
	// never delay the MCP handshake.
	if watch {
		stopWatch, watchErr := startCorpusWatch(ctx, corpusOverride, dataDir, cfg, records, text, embedder, vectors)
		if watchErr != nil {
			slog.Warn("--watch disabled", slog.String("reason", watchErr.Error()))
		} else {
			defer stopWatch()
		}
	}

	slog.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("data_dir", dataDir),
		slog.Bool("watch", watch))

	return server.Serve(ctx, transport)
}

// startCorpusWatch begins watching the corpus file and re-ingests on
// change, hot-swapping the serving vector index afterwards. Returns a
// stop function, or an error describing why watching is impossible.
func startCorpusWatch(
	ctx context.Context,
	corpusOverride, dataDir string,
	cfg *config.Config,
	records *store.SQLiteStore,
	text store.TextIndex,
	embedder embed.Embedder,
	vectors *store.HNSWStore,
) (func(), error) {
	corpusPath := corpusOverride
	if corpusPath == "" {
		stored, err := records.GetState(ctx, store.StateKeyCorpusPath)
		if err != nil || stored == "" {
			return nil, fmt.Errorf("no corpus path known; pass --corpus or re-run ingest")
		}
		corpusPath = stored
	}
	if !fileExists(corpusPath) {
		return nil, fmt.Errorf("corpus file not found: %s", corpusPath)
	}

	vectorPath := store.GetVectorStorePath(dataDir)
	lock := ingest.NewFileLock(dataDir)

	watcher, err := ingest.NewCorpusWatcher(ingest.WatcherConfig{
		CorpusPath: corpusPath,
		OnChange: func(op ingest.Op) {
			if op == ingest.OpDelete {
				slog.Warn("corpus file deleted, keeping current index",
					slog.String("corpus", corpusPath))
				return
			}
			reingestCorpus(ctx, corpusPath, dataDir, vectorPath, cfg, lock, records, text, embedder, vectors)
		},
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("corpus watcher stopped", slog.String("error", err.Error()))
		}
	}()

	slog.Info("Watching corpus for changes", slog.String("corpus", corpusPath))
	return func() { _ = watcher.Stop() }, nil
}

// reingestCorpus rebuilds the index from the changed corpus and reloads
// the serving vector store. Runs on the watcher's timer goroutine; the
// engine keeps answering from the previous index throughout.
func reingestCorpus(
	ctx context.Context,
	corpusPath, dataDir, vectorPath string,
	cfg *config.Config,
	lock *ingest.FileLock,
	records *store.SQLiteStore,
	text store.TextIndex,
	embedder embed.Embedder,
	vectors *store.HNSWStore,
) {
	// Never overwrite embeddings built with a different model; that
	// silently corrupts semantic search for every stored record.
	if indexModel, err := records.GetState(ctx, store.StateKeyIndexModel); err == nil &&
		indexModel != "" && indexModel != embedder.ModelName() {
		slog.Warn("corpus changed but current embedder does not match the index, skipping re-ingest",
			slog.String("index_model", indexModel),
			slog.String("current_model", embedder.ModelName()))
		return
	}

	// Queue behind any manual ingest instead of failing.
	if err := lock.Lock(ctx); err != nil {
		slog.Warn("re-ingest skipped, could not acquire ingest lock", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = lock.Unlock() }()

	slog.Info("corpus changed, re-ingesting", slog.String("corpus", corpusPath))

	// Fresh build target; the serving store keeps answering until the
	// swap below.
	build, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		slog.Error("re-ingest failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = build.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(io.Discard, ui.WithForcePlain(true)))
	runner, err := ingest.NewRunner(ingest.RunnerDependencies{
		Renderer: renderer,
		Config:   cfg,
		Records:  records,
		Text:     text,
		Vectors:  build,
		Embedder: embedder,
	})
	if err != nil {
		slog.Error("re-ingest failed", slog.String("error", err.Error()))
		return
	}

	result, err := runner.Run(ctx, ingest.RunnerConfig{
		CorpusPath: corpusPath,
		DataDir:    dataDir,
	})
	if err != nil {
		slog.Error("re-ingest failed", slog.String("error", err.Error()))
		return
	}

	// Hot swap: the rebuilt index replaces the serving graph atomically
	// under the store's write lock.
	if err := vectors.Load(vectorPath); err != nil {
		slog.Error("vector index reload failed, still serving previous index",
			slog.String("error", err.Error()))
		return
	}

	slog.Info("re-ingest complete",
		slog.Int("records", result.Records),
		slog.Int("skipped", result.Skipped),
		slog.String("duration", result.Duration.String()))
}

// verifyStdinForMCP checks that stdin is a pipe rather than a terminal.
// MCP clients speak JSON-RPC over stdin; started interactively, the
// server would hang waiting for a handshake that never comes.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: the MCP server must be started by an MCP client; " +
			"use 'grantscout search <query>' for interactive queries")
	}
	return nil
}

// engineConfigFrom maps the search section of the file config onto the
// engine's tuning knobs.
func engineConfigFrom(cfg *config.Config) search.EngineConfig {
	return search.EngineConfig{
		RRFConstant:       cfg.Search.RRFConstant,
		SemanticThreshold: cfg.Search.SemanticThreshold,
		SemanticLimit:     cfg.Search.SemanticLimit,
		ScanLimit:         cfg.Search.ScanLimit,
		VariantPageSize:   cfg.Search.VariantPageSize,
		VariantCap:        cfg.Search.VariantCap,
		MaxSubqueries:     cfg.Search.MaxSubqueries,
		Fanout:            cfg.Search.Fanout,
		SubqueryTimeout:   cfg.Search.SubqueryTimeout(),
		TermsTimeout:      cfg.Search.TermsTimeout(),
		DisplayCap:        cfg.Search.DisplayCap,
		SampleSize:        cfg.Search.SampleSize,
		HydrateBatch:      cfg.Search.HydrateBatch,
	}
}
