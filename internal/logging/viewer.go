package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of the JSON server log.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attrs   map[string]any `json:"-"` // everything beyond the standard three keys
	Raw     string         `json:"-"` // the line as written
	IsValid bool           `json:"-"` // false when the line was not JSON
}

// ViewerConfig selects which entries the viewer shows and how.
type ViewerConfig struct {
	Level   string         // minimum level; empty shows everything
	Pattern *regexp.Regexp // raw-line match; nil disables
	NoColor bool
}

// Viewer reads, filters, and formats the server's JSON log. The MCP
// server owns stdout for the protocol, so the log file is the only
// place its diagnostics land; the viewer is how operators read them.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

// NewViewer creates a viewer writing formatted entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{config: cfg, out: out}
}

// followPollInterval paces the Follow loop. 100ms is far below the
// latency anyone notices in a terminal.
const followPollInterval = 100 * time.Millisecond

// maxLineBytes bounds a single log line; Debug entries can carry whole
// query plans.
const maxLineBytes = 1 << 20

// Tail returns the entries among the last n lines of the file that
// pass the configured filters. Filters run after the tail window is
// taken, so a filtered Tail can return fewer than n entries.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Keep only the trailing window while scanning; the log can be
	// many rotations of history long.
	window := make([]string, 0, n+1)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)
	for scanner.Scan() {
		window = append(window, scanner.Text())
		if len(window) > n {
			window = window[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var entries []LogEntry
	for _, line := range window {
		if entry := v.parseLine(line); v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow streams entries appended to the file after the call, polling
// for new data, until ctx is cancelled.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.drain(ctx, reader, entries); err != nil {
				return err
			}
		}
	}
}

// drain forwards every complete line currently buffered in reader.
func (v *Viewer) drain(ctx context.Context, reader *bufio.Reader, entries chan<- LogEntry) error {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Partial line; the rest arrives on a later poll.
			return nil
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		entry := v.parseLine(line)
		if !v.matchesFilter(entry) {
			continue
		}
		select {
		case entries <- entry:
		case <-ctx.Done():
			return nil
		}
	}
}

// FormatEntry renders one entry as a single display line. Lines that
// were not JSON pass through untouched; slog never writes those, but
// panics and child-process output can.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)

	for _, k := range sortedKeys(entry.Attrs) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

// Print writes every entry to the viewer's output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	entry.IsValid = true

	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = fields["level"].(string)
	entry.Msg, _ = fields["msg"].(string)

	entry.Attrs = make(map[string]any, len(fields))
	for k, val := range fields {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.config.Level != "" && ParseLevel(entry.Level) < ParseLevel(v.config.Level) {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// ANSI codes per level; debug is dimmed because it is mostly noise
// when skimming.
var levelColors = map[string]string{
	"debug": "\033[90m",
	"info":  "\033[32m",
	"warn":  "\033[33m",
	"error": "\033[31m",
}

func (v *Viewer) formatLevel(level string) string {
	text := strings.ToUpper(level)
	if len(text) > 5 {
		text = text[:5]
	}
	text = fmt.Sprintf("%-5s", text)

	color, ok := levelColors[strings.ToLower(level)]
	if v.config.NoColor || !ok {
		return text
	}
	return color + text + "\033[0m"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
