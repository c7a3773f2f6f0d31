// Package rate adapts target FPS, bitrate, and QP bounds from damage
// statistics, frame-bus queue depth, and a latency-mode knob, per
// spec.md §4.9. New code: the teacher has no equivalent adaptive-rate
// component, but the counter/threshold style (plain integer state,
// checked every tick) follows the move-count and drop-count counters
// already tracked in desktop.go.
package rate

import (
	"sync"
)

// LatencyMode biases the governor's keyframe interval, encoder
// buffering, and QP choice toward responsiveness or image quality.
type LatencyMode int

const (
	LatencyModeBalanced LatencyMode = iota
	LatencyModeInteractive
	LatencyModeQuality
)

// ActivityLevel classifies how much of the frame is changing.
type ActivityLevel int

const (
	ActivityStatic ActivityLevel = iota
	ActivityLow
	ActivityMedium
	ActivityHigh
)

// Classify buckets a dirty-tile fraction (0..1) per spec.md §4.9.
func Classify(dirtyFraction float64) ActivityLevel {
	switch {
	case dirtyFraction < 0.01:
		return ActivityStatic
	case dirtyFraction < 0.10:
		return ActivityLow
	case dirtyFraction < 0.30:
		return ActivityMedium
	default:
		return ActivityHigh
	}
}

// targetFPSFor returns the default FPS ceiling for an activity level.
func targetFPSFor(level ActivityLevel) float64 {
	switch level {
	case ActivityStatic:
		return 5
	case ActivityLow:
		return 15
	case ActivityMedium:
		return 27.5 // midpoint of the 25-30 band
	default:
		return 60
	}
}

// Options configures the governor's ramp rates and bounds. Zero-value
// Options is replaced with DefaultOptions by NewGovernor.
type Options struct {
	// RampUp/RampDown are the maximum fraction of the gap to the new
	// FPS target closed per tick, preventing oscillation. Not named by
	// spec.md with numeric defaults; chosen conservatively and
	// recorded as an Open Question resolution in DESIGN.md.
	RampUp   float64
	RampDown float64

	QPMin     int
	QPMax     int
	QPDefault int

	// DropRateThreshold (0..1, drops per published frame) above which
	// the governor steps FPS down and narrows QP upward (lower
	// quality) until drops subside.
	DropRateThreshold float64

	BaseKeyframeInterval int // frames, at LatencyModeBalanced
}

func DefaultOptions() Options {
	return Options{
		RampUp:               0.25,
		RampDown:             0.5,
		QPMin:                18,
		QPMax:                38,
		QPDefault:            26,
		DropRateThreshold:    0.02,
		BaseKeyframeInterval: 120,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RampUp <= 0 {
		o.RampUp = d.RampUp
	}
	if o.RampDown <= 0 {
		o.RampDown = d.RampDown
	}
	if o.QPMin <= 0 {
		o.QPMin = d.QPMin
	}
	if o.QPMax <= 0 {
		o.QPMax = d.QPMax
	}
	if o.QPDefault <= 0 {
		o.QPDefault = d.QPDefault
	}
	if o.DropRateThreshold <= 0 {
		o.DropRateThreshold = d.DropRateThreshold
	}
	if o.BaseKeyframeInterval <= 0 {
		o.BaseKeyframeInterval = d.BaseKeyframeInterval
	}
	return o
}

// Decision is the governor's output for the current tick.
type Decision struct {
	FPS              float64
	BitrateBps        int
	QPMin, QPMax, QP  int
	KeyframeInterval  int
	Activity          ActivityLevel
}

// Governor holds the running FPS state across ticks (ramping needs
// memory of the previous decision) and the configured mode/bounds.
type Governor struct {
	mu sync.Mutex

	opts Options
	mode LatencyMode

	currentFPS   float64
	qualityBias  int // added to QPMin/QPMax while drops are elevated
	maxBitrateForFPS func(fps float64) int
}

// NewGovernor builds a governor. bitrateForFPS maps a target FPS to a
// target bitrate at the session's configured quality preset; callers
// own that mapping since it depends on resolution and preset
// (spec.md: "bitrate target scales with FPS and quality preset").
func NewGovernor(opts Options, mode LatencyMode, bitrateForFPS func(fps float64) int) *Governor {
	return &Governor{
		opts:             opts.withDefaults(),
		mode:             mode,
		currentFPS:       targetFPSFor(ActivityStatic),
		maxBitrateForFPS: bitrateForFPS,
	}
}

// Tick consumes this interval's damage statistics (dirtyFraction,
// 0..1) and frame-bus drop rate (drops per published frame, 0..1) and
// produces the next Decision.
func (g *Governor) Tick(dirtyFraction, dropRate float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	activity := Classify(dirtyFraction)
	target := targetFPSFor(activity)

	if dropRate > g.opts.DropRateThreshold {
		target = stepDown(g.currentFPS)
		if g.qualityBias < g.opts.QPMax-g.opts.QPMin {
			g.qualityBias++
		}
	} else if g.qualityBias > 0 {
		g.qualityBias--
	}

	g.currentFPS = ramp(g.currentFPS, target, g.opts.RampUp, g.opts.RampDown)

	qpMin := g.opts.QPMin + g.qualityBias
	qpMax := g.opts.QPMax + g.qualityBias
	qpDefault := g.opts.QPDefault + g.qualityBias

	keyframeInterval := g.opts.BaseKeyframeInterval
	switch g.mode {
	case LatencyModeInteractive:
		keyframeInterval /= 2
		qpDefault += 4
	case LatencyModeQuality:
		keyframeInterval *= 2
		qpDefault -= 4
	}
	qpDefault = clampInt(qpDefault, qpMin, qpMax)

	bitrate := 0
	if g.maxBitrateForFPS != nil {
		bitrate = g.maxBitrateForFPS(g.currentFPS)
	}

	return Decision{
		FPS:              g.currentFPS,
		BitrateBps:       bitrate,
		QPMin:            qpMin,
		QPMax:            qpMax,
		QP:               qpDefault,
		KeyframeInterval: keyframeInterval,
		Activity:         activity,
	}
}

// stepDown returns the next FPS band below current (30, 15, 5, then
// 1), a single discrete "step down" per spec.md's drop-rate rule.
func stepDown(current float64) float64 {
	switch {
	case current > 30:
		return 30
	case current > 15:
		return 15
	case current > 5:
		return 5
	default:
		return 1
	}
}

func ramp(current, target, rampUp, rampDown float64) float64 {
	if target > current {
		return current + (target-current)*rampUp
	}
	return current + (target-current)*rampDown
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
