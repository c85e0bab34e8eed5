package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantscout/grantscout/configs"
	"github.com/grantscout/grantscout/internal/config"
	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/ingest"
	"github.com/grantscout/grantscout/internal/logging"
	"github.com/grantscout/grantscout/internal/preflight"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/ui"
)

// ingestOptions carries the ingest command's flags.
type ingestOptions struct {
	noTUI       bool
	resume      bool
	force       bool
	noEmbed     bool
	writeConfig bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <corpus.jsonl>",
		Short: "Build the search index from a grant corpus",
		Long: `Ingest a JSONL corpus of grant awards into the local index.

Each line is one award record. Ingest validates records, stores them,
builds the keyword index, generates embeddings through the configured
provider, and writes the vector index. The index lives in .grantscout/
under the current project root.

Use --resume to continue a previously interrupted ingest.
Use --force to clear existing index data and rebuild from scratch.
Use --no-embed to skip embeddings entirely (keyword-only index).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Signal handling so Ctrl+C cancels in-flight embedding
			// batches instead of orphaning the checkpoint mid-write.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.force && opts.resume {
				return fmt.Errorf("--force and --resume are mutually exclusive")
			}

			return runIngestWithResume(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume from previous checkpoint if available")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Clear existing index and rebuild from scratch")
	cmd.Flags().BoolVar(&opts.noEmbed, "no-embed", false, "Skip embedding generation (keyword-only index)")
	cmd.Flags().BoolVar(&opts.writeConfig, "write-config", false, "Write a .grantscout.yaml template next to the index")

	return cmd
}

func runIngestWithResume(ctx context.Context, out, errOut io.Writer, corpusPath string, opts ingestOptions) error {
	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)
	recordsPath := store.GetRecordDBPath(dataDir)

	// Handle --force: clear all index data before proceeding
	if opts.force {
		if err := clearIndexData(dataDir); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Cleared existing index data, starting fresh...\n")
		slog.Info("ingest_force_clear", slog.String("data_dir", dataDir))
		return runIngest(ctx, out, corpusPath, opts, 0, "")
	}

	// Check context before database operations - allows Ctrl+C to work
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Check for a checkpoint from an interrupted run. Use a short
	// timeout so a concurrently running serve cannot block us here.
	resumeFrom := 0
	checkpointModel := ""
	if fileExists(recordsPath) {
		loadCtx, loadCancel := context.WithTimeout(ctx, 3*time.Second)
		defer loadCancel()

		records, err := store.NewSQLiteStore(recordsPath)
		if err == nil {
			checkpoint, loadErr := records.LoadIngestCheckpoint(loadCtx)
			_ = records.Close()

			if loadErr != nil {
				slog.Warn("checkpoint_load_failed", slog.String("error", loadErr.Error()))
			}

			if checkpoint != nil {
				if opts.resume {
					slog.Info("checkpoint_found",
						slog.String("stage", checkpoint.Stage),
						slog.Int("embedded", checkpoint.EmbeddedCount),
						slog.Int("total", checkpoint.Total))
					_, _ = fmt.Fprintf(out,
						"Resuming from checkpoint: %d/%d records embedded\n",
						checkpoint.EmbeddedCount, checkpoint.Total)
					resumeFrom = checkpoint.EmbeddedCount
					checkpointModel = checkpoint.EmbedderModel
				} else {
					pct := 0
					if checkpoint.Total > 0 {
						pct = checkpoint.EmbeddedCount * 100 / checkpoint.Total
					}
					_, _ = fmt.Fprintf(errOut,
						"Warning: Previous ingest was incomplete (stopped at %d%%).\n"+
							"Use --resume to continue, or --force to start fresh.\n",
						pct)
					return fmt.Errorf("incomplete checkpoint found, use --resume to continue")
				}
			}
		}
	}

	return runIngest(ctx, out, corpusPath, opts, resumeFrom, checkpointModel)
}

// clearIndexData removes all index files from the data directory. The
// project config (.grantscout.yaml at the root) is left alone.
func clearIndexData(dataDir string) error {
	indexFiles := []string{
		store.GetRecordDBPath(dataDir),
		store.GetRecordDBPath(dataDir) + "-shm", // SQLite WAL shared memory
		store.GetRecordDBPath(dataDir) + "-wal", // SQLite WAL journal
		store.GetTextIndexBasePath(dataDir) + ".db",
		store.GetTextIndexBasePath(dataDir) + ".db-shm",
		store.GetTextIndexBasePath(dataDir) + ".db-wal",
		store.GetTextIndexBasePath(dataDir) + ".bleve",
		store.GetVectorStorePath(dataDir),
		store.GetVectorStorePath(dataDir) + ".meta",
	}

	for _, path := range indexFiles {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// runIngestInternal runs ingest silently for the smart default flow.
func runIngestInternal(ctx context.Context, corpusPath string) error {
	return runIngest(ctx, io.Discard, corpusPath, ingestOptions{noTUI: true}, 0, "")
}

func runIngest(ctx context.Context, out io.Writer, corpusPath string, opts ingestOptions, resumeFrom int, checkpointModel string) error {
	// File-only logging so progress rendering stays clean.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}
	// Continue even if logging setup fails - not critical for CLI

	// Validate the corpus path before anything touches the index.
	absPath, err := filepath.Abs(corpusPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access corpus: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("corpus must be a JSONL file, not a directory: %s", absPath)
	}

	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// First ingest into a data directory runs the system checks. Offline
	// mode here: the embedder construction below surfaces service errors
	// with better context than a probe would.
	if preflight.NeedsCheck(dataDir) {
		checker := preflight.New(preflight.WithOutput(io.Discard), preflight.WithOffline(true))
		results := checker.RunAll(ctx, dataDir)
		for _, r := range results {
			if r.IsCritical() {
				return fmt.Errorf("system check failed: %s: %s (run 'grantscout doctor' for details)", r.Name, r.Message)
			}
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Warn("preflight_marker_write_failed", slog.String("error", err.Error()))
		}
		slog.Info("preflight_checks_passed", slog.Int("checks", len(results)))
	}

	// One ingest per data directory; fail fast instead of queueing.
	lock := ingest.NewFileLock(dataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another ingest is already running for %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	// Progress renderer (auto-detects TTY/CI, respects --no-tui)
	uiCfg := ui.NewConfig(out, ui.WithForcePlain(opts.noTUI), ui.WithCorpusPath(absPath))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	// Stores
	records, err := store.NewSQLiteStore(store.GetRecordDBPath(dataDir))
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	defer func() { _ = records.Close() }()

	text, err := store.NewTextIndexWithBackend(store.GetTextIndexBasePath(dataDir), cfg.Search.TextBackend)
	if err != nil {
		return fmt.Errorf("failed to create keyword index: %w", err)
	}
	defer func() { _ = text.Close() }()

	// Check context before potentially blocking embedder init
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Embedder. A selected provider that cannot be reached is an error,
	// never a silent static fallback: static vectors are incompatible
	// with an openai-built index.
	var embedder embed.Embedder
	if opts.noEmbed {
		embedder = embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	} else {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageLoading,
			Message: "Starting embedder...",
		})

		// Bounded init so an unreachable endpoint fails in seconds.
		embedCtx, embedCancel := context.WithTimeout(ctx, 15*time.Second)
		embedder, err = embed.NewEmbedder(embedCtx, embed.Config{
			Provider:   cfg.Embeddings.Provider,
			BaseURL:    cfg.Embeddings.BaseURL,
			APIKey:     cfg.Embeddings.APIKey(),
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			CacheSize:  cfg.Embeddings.CacheSize,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.Embeddings.Timeout(),
		})
		embedCancel()

		if err != nil {
			return fmt.Errorf("embedder initialization failed: %w", err)
		}
	}
	defer func() { _ = embedder.Close() }()

	// Vector store sized to the embedder
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer func() { _ = vectors.Close() }()

	runner, err := ingest.NewRunner(ingest.RunnerDependencies{
		Renderer: renderer,
		Config:   cfg,
		Records:  records,
		Text:     text,
		Vectors:  vectors,
		Embedder: embedder,
	})
	if err != nil {
		return fmt.Errorf("failed to create ingest runner: %w", err)
	}

	if _, err := runner.Run(ctx, ingest.RunnerConfig{
		CorpusPath:           absPath,
		DataDir:              dataDir,
		SkipEmbeddings:       opts.noEmbed,
		ResumeFromCheckpoint: resumeFrom,
		CheckpointModel:      checkpointModel,
	}); err != nil {
		return err
	}

	if opts.writeConfig {
		if err := writeProjectConfig(out, root); err != nil {
			return err
		}
	}

	return nil
}

// writeProjectConfig drops the project config template at the root,
// unless one already exists.
func writeProjectConfig(out io.Writer, root string) error {
	path := filepath.Join(root, ".grantscout.yaml")
	if fileExists(path) {
		_, _ = fmt.Fprintf(out, "Config already exists at %s, leaving it alone\n", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// projectRoot finds the enclosing project root, falling back to the
// working directory.
func projectRoot() string {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root
}

// loadConfigOrDefault loads layered config for the root, falling back
// to defaults when no config exists or it fails validation.
func loadConfigOrDefault(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		slog.Warn("config load failed, using defaults", slog.String("error", err.Error()))
		return config.NewConfig()
	}
	return cfg
}
