package ui

import "strings"

// sparkRunes are the block characters a sparkline is drawn with, lowest
// bar first.
var sparkRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a rolling window of samples and draws them as a row
// of block characters. The ingest TUI feeds it throughput samples;
// RenderValues draws static series such as the funding-by-year
// histogram in stats.
type Sparkline struct {
	buf  []float64 // ring buffer, capacity = display width
	next int       // next write position
	n    int       // samples added so far
	peak float64   // scale ceiling
}

// NewSparkline returns a sparkline displaying the last width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{buf: make([]float64, width)}
}

// Add appends a sample, evicting the oldest once the window is full.
func (s *Sparkline) Add(v float64) {
	s.buf[s.next] = v
	s.next = (s.next + 1) % len(s.buf)
	s.n++
	if v > s.peak {
		s.peak = v
	}
	// The evicted sample may have been the peak; rescan once per lap.
	if s.n%len(s.buf) == 0 {
		s.rescale()
	}
}

// rescale recomputes the ceiling from the buffer, flooring it at 1 so
// the scale divisor stays nonzero.
func (s *Sparkline) rescale() {
	s.peak = 1
	for _, v := range s.buf {
		if v > s.peak {
			s.peak = v
		}
	}
}

// Clear resets the window to empty.
func (s *Sparkline) Clear() {
	clear(s.buf)
	s.next, s.n, s.peak = 0, 0, 0
}

// Count returns how many samples have been added.
func (s *Sparkline) Count() int { return s.n }

// Max returns the current scale ceiling.
func (s *Sparkline) Max() float64 { return s.peak }

// Render draws the window at its native width.
func (s *Sparkline) Render() string {
	return s.draw(len(s.buf))
}

// RenderWithWidth draws the most recent samples into width cells, for
// terminals narrower than the window.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width >= len(s.buf) {
		return s.Render()
	}
	return s.draw(width)
}

// draw renders the newest samples into width cells, right-padding when
// the window has not filled yet. An empty window draws as a baseline
// row rather than blank space.
func (s *Sparkline) draw(width int) string {
	if s.n == 0 {
		return strings.Repeat(string(sparkRunes[0]), width)
	}

	samples := s.window()
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	scale := s.peak
	if scale <= 0 {
		scale = 1
	}

	var b strings.Builder
	b.Grow(width * 3)
	for _, v := range samples {
		b.WriteRune(barRune(v, scale))
	}
	for pad := width - len(samples); pad > 0; pad-- {
		b.WriteByte(' ')
	}
	return b.String()
}

// window returns the buffered samples oldest first.
func (s *Sparkline) window() []float64 {
	if s.n < len(s.buf) {
		return s.buf[:s.n]
	}
	out := make([]float64, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}

// barRune maps a value to a block character against the scale ceiling.
func barRune(v, scale float64) rune {
	if v < 0 {
		v = 0
	}
	idx := int(v / scale * float64(len(sparkRunes)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sparkRunes) {
		idx = len(sparkRunes) - 1
	}
	return sparkRunes[idx]
}

// RenderValues draws a static series one bar per value, scaled to the
// series maximum.
func RenderValues(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	scale := 0.0
	for _, v := range values {
		if v > scale {
			scale = v
		}
	}
	if scale <= 0 {
		return strings.Repeat(string(sparkRunes[0]), len(values))
	}

	var b strings.Builder
	b.Grow(len(values) * 3)
	for _, v := range values {
		b.WriteRune(barRune(v, scale))
	}
	return b.String()
}
