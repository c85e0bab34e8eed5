package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer drives a bubbletea program showing live ingest progress.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	tracker *ProgressTracker
	model   *ingestModel
	program *tea.Program
	done    chan struct{}
	started bool
}

// NewTUIRenderer builds the TUI renderer. It refuses non-terminal
// output; callers fall back to the plain renderer.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("tui requires a terminal")
	}

	tracker := NewProgressTracker()
	model := newIngestModel(tracker, cfg.CorpusPath)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the bubbletea program on its own goroutine. The
// alternate screen buffer keeps the shell scrollback clean.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.program = tea.NewProgram(r.model,
		tea.WithOutput(r.cfg.Output),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tracker.Stats().Stage != event.Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentItem)
	r.post(progressMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	r.post(errMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, 0)
	r.post(doneMsg(stats))
}

// post sends a message if the program is running. Lock held.
func (r *TUIRenderer) post(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Stop quits the program and waits briefly for the terminal to be
// restored. A wedged program is abandoned rather than blocking exit.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

var _ Renderer = (*TUIRenderer)(nil)

// Messages posted into the bubbletea loop.
type (
	progressMsg ProgressEvent
	errMsg      ErrorEvent
	doneMsg     CompletionStats
	frameMsg    time.Time
)

// frameInterval paces view refreshes between pipeline events so the
// spinner, ETA, and sparkline stay live.
const frameInterval = 100 * time.Millisecond

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// ingestModel is the bubbletea model for ingest progress. Durable state
// lives in the tracker; the model holds only view state.
type ingestModel struct {
	tracker *ProgressTracker
	styles  Styles
	spin    spinner.Model
	bar     progress.Model
	width   int
	height  int
	corpus  string

	quitting bool
	complete bool
	stats    CompletionStats
}

func newIngestModel(tracker *ProgressTracker, corpusPath string) *ingestModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	bar := progress.New(
		progress.WithSolidFill(string(colorAccent)),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &ingestModel{
		tracker: tracker,
		styles:  DefaultStyles(),
		spin:    sp,
		bar:     bar,
		width:   80,
		height:  24,
		corpus:  corpusPath,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, nextFrame())
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "q" || k == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(msg.Width-20, 20)

	case doneMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case frameMsg:
		return m, nextFrame()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// progressMsg and errMsg carry no view state of their own; the next
	// frame reads the tracker.
	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	switch {
	case m.quitting:
		return "Cancelled.\n"
	case m.complete:
		return m.viewSummary()
	default:
		return m.viewRunning()
	}
}

// contentWidth is the usable width inside the panel border.
func (m *ingestModel) contentWidth() int {
	return max(m.width-4, 40)
}

func (m *ingestModel) viewRunning() string {
	w := m.contentWidth()
	divider := m.styles.Border.Render(strings.Repeat("─", w))

	rows := []string{
		m.stageTrail(),
		divider,
		m.progressRow(),
		m.metricsRow(),
		divider,
		m.sparklineRow(w),
	}
	if item := m.tracker.Stats().CurrentItem; item != "" {
		rows = append(rows, divider, m.styles.Dim.Render(truncateItem(item, w-2)))
	}

	title := "GrantScout Ingest"
	if m.corpus != "" {
		title += " • " + m.corpus
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorFaint).
		Padding(0, 1).
		Width(w)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(rows, "\n")),
	) + "\n" + m.statusBar()
}

// pipelineStages is the display order of the stage trail.
var pipelineStages = []struct {
	stage Stage
	label string
}{
	{StageLoading, "Load"},
	{StageStoring, "Store"},
	{StageIndexing, "Index"},
	{StageEmbedding, "Embed"},
	{StageSaving, "Save"},
}

// stageTrail renders the pipeline position: finished stages get a
// filled dot, the active stage the spinner, pending stages a hollow
// dot.
func (m *ingestModel) stageTrail() string {
	active := m.tracker.Stats().Stage

	parts := make([]string, 0, len(pipelineStages))
	for _, ps := range pipelineStages {
		switch {
		case ps.stage < active:
			parts = append(parts, m.styles.Success.Render("● "+ps.label))
		case ps.stage == active:
			parts = append(parts, m.styles.Active.Render(m.spin.View()+" "+ps.label))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+ps.label))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// progressRow renders the bar with percentage and the item count, or a
// preparing notice while the stage total is still unknown.
func (m *ingestModel) progressRow() string {
	stats := m.tracker.Stats()
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...\n%s",
			m.spin.View(), stats.Stage, m.styles.Dim.Render("Preparing..."))
	}

	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d records", stats.Current, stats.Total))
	return fmt.Sprintf("%s  %s\n%s", m.bar.ViewAs(stats.Progress), pct, count)
}

// metricsRow renders throughput and the smoothed ETA.
func (m *ingestModel) metricsRow() string {
	stats := m.tracker.Stats()

	speed := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	row := m.styles.Speed.Render(speed)
	if stats.ETA > 0 {
		row += m.styles.Dim.Render("  •  ") + m.styles.Label.Render("ETA: "+formatDuration(stats.ETA))
	}
	return row
}

// sparklineRow renders the stage throughput history.
func (m *ingestModel) sparklineRow(width int) string {
	spark := m.tracker.RenderSparkline(max(width-10, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("throughput ─")
}

// statusBar renders warning and error tallies, or just the quit hint.
func (m *ingestModel) statusBar() string {
	stats := m.tracker.Stats()

	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  ")) + m.styles.Dim.Render("  │  q to quit")
}

// viewSummary renders the completion panel.
func (m *ingestModel) viewSummary() string {
	// Pad labels before styling; escape codes would defeat %-9s.
	label := func(s string) string {
		return m.styles.Label.Render(fmt.Sprintf("%-9s", s))
	}
	row := func(name, value string) string {
		return label(name) + " " + m.styles.Active.Render(value)
	}

	lines := []string{
		m.styles.Success.Render("✓ Ingest Complete"),
		"",
		row("Records:", fmt.Sprintf("%d", m.stats.Records)),
	}
	if m.stats.Contacts > 0 {
		lines = append(lines, row("Contacts:", fmt.Sprintf("%d", m.stats.Contacts)))
	}
	lines = append(lines, row("Duration:", formatDuration(m.stats.Duration)))
	if m.stats.Skipped > 0 {
		lines = append(lines, label("Skipped:")+" "+
			m.styles.Warning.Render(fmt.Sprintf("%d lines", m.stats.Skipped)))
	}
	if avg := m.tracker.SpeedStats().Avg; avg > 0 {
		lines = append(lines, label("Avg rate:")+" "+
			m.styles.Speed.Render(fmt.Sprintf("%.0f records/sec", avg)))
	}
	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
		if m.stats.Errors > 0 {
			lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
		}
		if m.stats.Warnings > 0 {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(m.contentWidth())

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders a duration as 42s, 3m 10s, or 1h 5m.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		mins, secs := int(d.Minutes()), int(d.Seconds())%60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncateItem shortens long record IDs or batch labels, keeping the
// tail where the distinguishing part lives.
func truncateItem(item string, maxLen int) string {
	if len(item) <= maxLen {
		return item
	}
	if maxLen < 4 {
		return "..."
	}
	return "..." + item[len(item)-maxLen+3:]
}
