// Package output provides consistent CLI output formatting for search
// results, ingest summaries, and corpus statistics.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{
		out:      out,
		useColor: false, // Default to no color for simplicity
	}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.Status(icon, msg)
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a section header with an underline.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintf(w.out, "\n%s\n%s\n", title, strings.Repeat("─", len([]rune(title))))
}

// Result prints one search hit: rank, title, and a short parenthetical
// detail such as the funding amount.
func (w *Writer) Result(rank int, title, detail string) {
	if detail == "" {
		_, _ = fmt.Fprintf(w.out, "%2d. %s\n", rank, title)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%2d. %s  (%s)\n", rank, title, detail)
}

// Field prints an indented, aligned label/value pair under a result.
func (w *Writer) Field(label, value string) {
	if value == "" {
		return
	}
	_, _ = fmt.Fprintf(w.out, "    %-10s %s\n", label+":", value)
}

// Snippet prints an indented excerpt, typically an abstract fragment.
func (w *Writer) Snippet(content string) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for _, line := range lines {
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	// Use carriage return for in-place updates
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	// Add newline when complete
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone completes a progress line with newline.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

// FormatUSD renders a funding amount compactly: $950, $45.0K, $2.4M, $1.1B.
func FormatUSD(amount float64) string {
	switch {
	case amount >= 1e9:
		return fmt.Sprintf("$%.1fB", amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("$%.1fM", amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("$%.1fK", amount/1e3)
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
