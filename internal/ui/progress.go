package ui

import (
	"sync"
	"time"
)

// Smoothing and sampling knobs for the live metrics. The embed stage
// advances one batch at a time, so raw readings swing hard between
// frames; exponential smoothing keeps the display steady.
const (
	etaAlpha         = 0.3 // weight of the newest ETA estimate
	speedAlpha       = 0.2 // weight of the newest throughput sample
	speedSampleEvery = 500 * time.Millisecond
	speedWindow      = 60 // sparkline samples retained
)

// speedMeter derives throughput from progress counts.
type speedMeter struct {
	lastCount  int
	lastSample time.Time
	current    float64
	avg        float64
	peak       float64
	samples    int
	history    *Sparkline
}

func newSpeedMeter(now time.Time) *speedMeter {
	return &speedMeter{lastSample: now, history: NewSparkline(speedWindow)}
}

// reset clears the meter for a new stage.
func (m *speedMeter) reset(now time.Time) {
	m.lastCount = 0
	m.lastSample = now
	m.current, m.avg, m.peak = 0, 0, 0
	m.samples = 0
	m.history.Clear()
}

// observe takes a throughput sample once enough time has passed since
// the previous one. Sampling every update would just measure noise.
func (m *speedMeter) observe(count int, now time.Time) {
	elapsed := now.Sub(m.lastSample)
	if elapsed < speedSampleEvery {
		return
	}

	if delta := count - m.lastCount; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		m.current = speed
		m.samples++
		if m.samples == 1 {
			m.avg = speed
		} else {
			m.avg = speedAlpha*speed + (1-speedAlpha)*m.avg
		}
		if speed > m.peak {
			m.peak = speed
		}
		m.history.Add(speed)
	}

	m.lastCount = count
	m.lastSample = now
}

func (m *speedMeter) stats() SpeedStats {
	return SpeedStats{Current: m.current, Avg: m.avg, Peak: m.peak}
}

// SpeedStats is a throughput snapshot: instantaneous, smoothed average,
// and the peak observed this stage. Units are items per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a point-in-time snapshot of ingest progress.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentItem string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// ProgressTracker accumulates progress reports across pipeline stages
// and answers display queries. Safe for concurrent use.
type ProgressTracker struct {
	mu          sync.Mutex
	stage       Stage
	current     int
	total       int
	currentItem string
	started     time.Time
	stageStart  time.Time
	errCount    int
	warnCount   int
	prevETA     time.Duration // smoothing state
	speed       *speedMeter
}

// NewProgressTracker returns a tracker positioned at the loading stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageLoading,
		started:    now,
		stageStart: now,
		speed:      newSpeedMeter(now),
	}
}

// SetStage moves to a new stage and resets per-stage state.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.currentItem = ""
	p.stageStart = now
	p.prevETA = 0
	p.speed.reset(now)
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, item string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if item != "" {
		p.currentItem = item
	}
	p.speed.observe(current, time.Now())
}

// AddError counts an error or warning. The events themselves are
// rendered as they arrive; only the tallies are kept.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnCount++
	} else {
		p.errCount++
	}
}

// Progress returns stage completion in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction()
}

// ETA estimates the time left in the current stage.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.smoothedETA()
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.started)
}

// Stats returns a consistent snapshot of everything the views render.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    p.fraction(),
		ETA:         p.smoothedETA(),
		CurrentItem: p.currentItem,
		ErrorCount:  p.errCount,
		WarnCount:   p.warnCount,
		Speed:       p.speed.stats(),
	}
}

// RenderSparkline draws the throughput history at the given width, or
// at its native width when width <= 0.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if width <= 0 {
		return p.speed.history.Render()
	}
	return p.speed.history.RenderWithWidth(width)
}

// SpeedStats returns the current throughput snapshot.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed.stats()
}

// fraction computes completion with the lock held.
func (p *ProgressTracker) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	f := float64(p.current) / float64(p.total)
	if f > 1 {
		f = 1
	}
	return f
}

// smoothedETA projects the stage's remaining time from its rate so far,
// blended against the previous estimate. Lock held.
func (p *ProgressTracker) smoothedETA() time.Duration {
	f := p.fraction()
	if f <= 0 || f >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/f) - elapsed
	if remaining < 0 {
		return 0
	}
	if p.prevETA > 0 {
		remaining = time.Duration(etaAlpha*float64(remaining) + (1-etaAlpha)*float64(p.prevETA))
	}
	p.prevETA = remaining
	return remaining
}
