package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event with no escape codes. It is
// the renderer for pipes, CI logs, and --no-tui.
type PlainRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainRenderer returns a line-oriented renderer for cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{w: cfg.Output}
}

// Start implements Renderer. Nothing to set up.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Stop implements Renderer. Nothing to tear down.
func (r *PlainRenderer) Stop() error { return nil }

// UpdateProgress writes a bracketed progress line. Events with neither
// a count nor a label are dropped rather than printed empty.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	label := event.Message
	if label == "" {
		label = event.CurrentItem
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case event.Total > 0:
		fmt.Fprintf(r.w, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, label)
	case label != "":
		fmt.Fprintf(r.w, "[%s] %s\n", event.Stage.Icon(), label)
	}
}

// AddError writes an ERROR or WARN line as it happens.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	severity := "ERROR"
	if event.IsWarn {
		severity = "WARN"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Item != "" {
		fmt.Fprintf(r.w, "%s: %s: %v\n", severity, event.Item, event.Err)
	} else {
		fmt.Fprintf(r.w, "%s: %v\n", severity, event.Err)
	}
}

// Complete writes the summary: a headline, then the per-stage timing
// breakdown and embedding backend when recorded.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "Complete: %d records ingested in %s", stats.Records, roundTenth(stats.Duration))
	if stats.Skipped > 0 {
		fmt.Fprintf(r.w, " (%d lines skipped)", stats.Skipped)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		fmt.Fprintf(r.w, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	fmt.Fprintln(r.w)

	if stats.Stages != (StageTimings{}) {
		r.writeStageBreakdown(stats)
	}
	if stats.Embedder.Backend != "" {
		fmt.Fprintf(r.w, "\nBackend: %s (%s, %d dims)\n",
			stats.Embedder.Backend, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// writeStageBreakdown lists per-stage wall-clock times. Lock held.
func (r *PlainRenderer) writeStageBreakdown(stats CompletionStats) {
	fmt.Fprintln(r.w, "\nStage Breakdown:")
	fmt.Fprintf(r.w, "  Load:  %s (corpus parsed)\n", roundTenth(stats.Stages.Load))
	fmt.Fprintf(r.w, "  Store: %s (records saved)\n", roundTenth(stats.Stages.Store))
	fmt.Fprintf(r.w, "  Index: %s (keyword index)\n", roundTenth(stats.Stages.Index))
	if stats.Stages.Embed > 0 && stats.Records > 0 {
		rate := float64(stats.Records) / stats.Stages.Embed.Seconds()
		fmt.Fprintf(r.w, "  Embed: %s (%d records @ %.1f/sec)\n",
			roundTenth(stats.Stages.Embed), stats.Records, rate)
	}
	fmt.Fprintf(r.w, "  Save:  %s (vector index)\n", roundTenth(stats.Stages.Save))
}

// roundTenth trims durations for display; sub-tenth-of-a-second
// precision is noise in a summary.
func roundTenth(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}
