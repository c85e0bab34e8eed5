// Package cmd provides the CLI commands for GrantScout.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/logging"
	"github.com/grantscout/grantscout/internal/profiling"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/pkg/version"
)

// Diagnostics flags
var (
	debugMode      bool
	loggingCleanup func()

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// NewRootCmd creates the root command for the grantscout CLI.
func NewRootCmd() *cobra.Command {
	var corpus string
	var reindex bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "grantscout",
		Short: "Hybrid grant-search MCP server for research funding data",
		Long: `GrantScout provides hybrid search (keyword + semantic) over research
grant awards for AI assistants speaking the Model Context Protocol.

Point it at a JSONL corpus of awards and it builds a local index, then
serves the search_grants, refilter_grants, and corpus_status tools.

Just run 'grantscout' in a project with an ingested corpus to start.`,
		Version: version.Version,
		// main prints errors via the structured formatter instead.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If help was explicitly requested, show it
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), corpus, reindex, watch)
		},
	}

	// Set version template
	cmd.SetVersionTemplate("grantscout version {{.Version}}\n")

	// Root flags
	cmd.Flags().StringVar(&corpus, "corpus", "", "Corpus file to ingest when no index exists")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Force re-ingest even if an index exists")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-ingest automatically when the corpus file changes")

	// Diagnostics flags
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.grantscout/logs/")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	// Setup env, logging, and profiling hooks
	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging loads a project .env, starts debug logging if
// --debug is set, and starts CPU/trace profiling if requested. API keys
// commonly live in .env rather than the shell environment; loading here
// makes them visible to every subcommand.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	// Absence of a .env file is fine.
	_ = godotenv.Load()

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpuCleanup = cleanup
	}

	if profileTrace != "" {
		cleanup, err := profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
		traceCleanup = cleanup
	}

	return nil
}

// stopProfilingAndLogging stops profiling, writes the memory profile if
// requested, and closes the debug log if one was opened.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}

	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// runSmartDefault implements the "It Just Works" flow: ensure an index
// exists, then serve MCP over stdio.
func runSmartDefault(ctx context.Context, corpus string, reindex, watch bool) error {
	// The MCP protocol requires stdout to be used EXCLUSIVELY for
	// JSON-RPC messages. Nothing may write to stdout before the server
	// starts; all status output goes to file logging instead. Use
	// 'grantscout stats' for diagnostics.

	root := projectRoot()
	cfg := loadConfigOrDefault(root)
	dataDir := cfg.DataDir(root)

	// Check if an index exists
	recordsPath := store.GetRecordDBPath(dataDir)
	needsIngest := reindex || !fileExists(recordsPath)

	if needsIngest {
		corpusPath, err := resolveCorpusPath(ctx, corpus, recordsPath)
		if err != nil {
			slog.Error("No corpus to ingest", slog.String("error", err.Error()))
			return err
		}

		slog.Info("Index not found, ingesting corpus",
			slog.String("root", root),
			slog.String("corpus", corpusPath))

		// Run ingest silently: renderer output is discarded, progress
		// goes to the log file only.
		if err := runIngestInternal(ctx, corpusPath); err != nil {
			slog.Error("Ingest failed", gserrors.FormatForLog(err)...)
			return fmt.Errorf("ingest failed: %w", err)
		}
		slog.Info("Ingest complete")
	} else {
		slog.Debug("Index found", slog.String("path", recordsPath))
	}

	// Start MCP server directly - NO stdout output before this point
	return runServe(ctx, "stdio", watch, corpus, debugMode)
}

// resolveCorpusPath returns the corpus to ingest: the --corpus flag if
// given, otherwise the path remembered from the last ingest.
func resolveCorpusPath(ctx context.Context, corpus, recordsPath string) (string, error) {
	if corpus != "" {
		return corpus, nil
	}

	if fileExists(recordsPath) {
		records, err := store.NewSQLiteStore(recordsPath)
		if err == nil {
			stored, stateErr := records.GetState(ctx, store.StateKeyCorpusPath)
			_ = records.Close()
			if stateErr == nil && stored != "" && fileExists(stored) {
				return stored, nil
			}
		}
	}

	return "", fmt.Errorf("no index found: run 'grantscout ingest <corpus.jsonl>' first, or pass --corpus")
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
