// Package ui renders ingest progress to the terminal: a bubbletea TUI on
// interactive terminals, line-oriented plain text for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies one phase of the ingest pipeline, in execution order.
type Stage int

const (
	// StageLoading reads and validates the corpus JSONL.
	StageLoading Stage = iota
	// StageStoring persists records to the record store.
	StageStoring
	// StageIndexing builds the keyword index.
	StageIndexing
	// StageEmbedding generates embedding vectors.
	StageEmbedding
	// StageSaving builds and persists the vector index.
	StageSaving
	// StageComplete marks a finished ingest.
	StageComplete
)

// stageMeta maps stages to display names and the short tags the plain
// renderer brackets its lines with.
var stageMeta = [...]struct{ name, tag string }{
	StageLoading:   {"Loading", "LOAD"},
	StageStoring:   {"Storing", "STORE"},
	StageIndexing:  {"Indexing", "INDEX"},
	StageEmbedding: {"Embedding", "EMBED"},
	StageSaving:    {"Saving", "SAVE"},
	StageComplete:  {"Complete", "DONE"},
}

// String returns the display name of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageMeta) {
		return "Unknown"
	}
	return stageMeta[s].name
}

// Icon returns the short tag used in plain text lines.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageMeta) {
		return "???"
	}
	return stageMeta[s].tag
}

// ProgressEvent carries one progress update from the ingest pipeline.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentItem string // record ID or batch label being processed
	Message     string // free-form text shown instead of the item
}

// ErrorEvent reports a problem with a single item during ingest.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings is the wall-clock time spent in each pipeline stage.
type StageTimings struct {
	Load  time.Duration
	Store time.Duration
	Index time.Duration
	Embed time.Duration
	Save  time.Duration
}

// EmbedderInfo names the embedding backend an ingest ran with.
type EmbedderInfo struct {
	Backend    string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished ingest for the final report.
type CompletionStats struct {
	Records  int
	Contacts int
	Skipped  int // malformed corpus lines dropped by the loader
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Embedder EmbedderInfo
}

// Renderer receives ingest progress and puts it in front of the user.
// Implementations must be safe for concurrent use; pipeline workers
// report from multiple goroutines.
type Renderer interface {
	// Start begins rendering. The TUI takes over the terminal here.
	Start(ctx context.Context) error
	// UpdateProgress reports progress within the current stage.
	UpdateProgress(event ProgressEvent)
	// AddError reports a per-item error or warning.
	AddError(event ErrorEvent)
	// Complete renders the final summary.
	Complete(stats CompletionStats)
	// Stop tears the renderer down, restoring the terminal if needed.
	Stop() error
}

// Config selects and configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	CorpusPath string // shown in the TUI header when set
}

// ConfigOption mutates a Config under construction.
type ConfigOption func(*Config)

// WithForcePlain forces the plain line-oriented renderer.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor strips color from the TUI.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithCorpusPath sets the corpus path shown in the TUI header.
func WithCorpusPath(path string) ConfigOption {
	return func(c *Config) { c.CorpusPath = path }
}

// NewConfig builds a renderer config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the renderer for the environment: the rich TUI on
// interactive terminals, plain text when forced, piped, or under CI.
func NewRenderer(cfg Config) Renderer {
	if plainOnly(cfg) {
		return NewPlainRenderer(cfg)
	}
	if tui, err := NewTUIRenderer(cfg); err == nil {
		return tui
	}
	return NewPlainRenderer(cfg)
}

// plainOnly reports whether the TUI must not be used: its control
// sequences would end up in a pipe or a CI log.
func plainOnly(cfg Config) bool {
	return cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI()
}

// IsTTY reports whether w writes to an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ciEnvVars are set by the CI systems worth detecting.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// DetectCI reports whether the process appears to be running under CI.
func DetectCI() bool {
	for _, v := range ciEnvVars {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}

// DetectNoColor honors the NO_COLOR convention (https://no-color.org).
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}
