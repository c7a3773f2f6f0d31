// Package cursor turns compositor-provided pointer samples into a
// velocity estimate so the session controller can decide whether to
// send the real position (Metadata), let the client render locally
// (Hidden), or extrapolate ahead of the next real sample
// (Predictive), per spec.md §4.11. Grounded on the teacher's
// CursorState (api/pkg/desktop/cursor_state.go: sync.RWMutex-guarded
// position/shape struct), generalized with a velocity field the
// teacher's screenshot-compositing use case never needed. The velocity
// is the displacement between the last two samples over their time
// gap; it is not smoothed over a longer window, and no acceleration is
// tracked.
package cursor

import (
	"math"
	"sync"
	"time"
)

// Mode selects how the predictor's output should be delivered.
type Mode int

const (
	// ModeAuto switches between Predictive and Metadata based on
	// measured RTT and sample stability.
	ModeAuto Mode = iota
	ModeMetadata
	ModeHidden
	ModePredictive
)

// Options configures the predictor's thresholds. Zero-value Options is
// replaced with DefaultOptions by NewPredictor.
type Options struct {
	// RTTThreshold is the measured round-trip time above which Auto
	// mode prefers Predictive.
	RTTThreshold time.Duration
	// MaxPredictionAhead bounds how far past the last real sample the
	// predictor will extrapolate.
	MaxPredictionAhead time.Duration
	// SnapThreshold is the pixel distance beyond which a predicted
	// position is considered too erratic to trust, disabling
	// prediction until fresh samples stabilize.
	SnapThreshold float64
}

func DefaultOptions() Options {
	return Options{
		RTTThreshold:       20 * time.Millisecond,
		MaxPredictionAhead: 100 * time.Millisecond,
		SnapThreshold:      48,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RTTThreshold <= 0 {
		o.RTTThreshold = d.RTTThreshold
	}
	if o.MaxPredictionAhead <= 0 {
		o.MaxPredictionAhead = d.MaxPredictionAhead
	}
	if o.SnapThreshold <= 0 {
		o.SnapThreshold = d.SnapThreshold
	}
	return o
}

type sample struct {
	x, y float64
	t    time.Time
}

// Position is the predictor's current best estimate, tagged with how
// it should be delivered.
type Position struct {
	X, Y float64
	Mode Mode
}

// Predictor holds the last sample and velocity for one cursor. Safe for
// concurrent use: samples typically arrive on a compositor-event
// goroutine while Estimate is read from the encode/EGFX goroutine.
type Predictor struct {
	mu   sync.RWMutex
	opts Options
	mode Mode

	have     bool
	last     sample
	velocity struct{ x, y float64 } // px/sec
	rtt      time.Duration

	erratic bool
}

// NewPredictor builds a predictor in the given mode (typically
// ModeAuto). A zero Options uses DefaultOptions.
func NewPredictor(mode Mode, opts Options) *Predictor {
	return &Predictor{mode: mode, opts: opts.withDefaults()}
}

// Observe records a new real cursor sample from the compositor, at
// time t (pass a captured timestamp, not time.Now(), so callers
// control the clock and tests are deterministic).
func (p *Predictor) Observe(x, y float64, t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.have {
		dt := t.Sub(p.last.t).Seconds()
		if dt > 0 {
			newVX := (x - p.last.x) / dt
			newVY := (y - p.last.y) / dt

			predX := p.last.x + p.velocity.x*dt
			predY := p.last.y + p.velocity.y*dt
			dist := distance(predX, predY, x, y)
			p.erratic = dist > p.opts.SnapThreshold

			p.velocity.x = newVX
			p.velocity.y = newVY
		}
	}

	p.last = sample{x: x, y: y, t: t}
	p.have = true
}

// SetMeasuredRTT feeds the transport's measured round-trip time, used
// by ModeAuto to decide whether prediction is worthwhile.
func (p *Predictor) SetMeasuredRTT(rtt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rtt = rtt
}

// SetMode overrides Auto selection with an explicit mode.
func (p *Predictor) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Estimate returns the predictor's best position for delivery at time
// t. In Predictive mode the extrapolation stops at MaxPredictionAhead
// past the last real sample and holds there until the next Observe
// replaces it with the true position. In Auto mode, an erratic last
// sample (or an RTT below RTTThreshold) yields the true last sample in
// Metadata mode instead.
func (p *Predictor) Estimate(t time.Time) Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	effectiveMode := p.mode
	if effectiveMode == ModeAuto {
		if p.erratic || p.rtt < p.opts.RTTThreshold {
			effectiveMode = ModeMetadata
		} else {
			effectiveMode = ModePredictive
		}
	}

	if !p.have || effectiveMode != ModePredictive {
		x, y := p.last.x, p.last.y
		return Position{X: x, Y: y, Mode: modeOrMetadata(effectiveMode)}
	}

	elapsed := t.Sub(p.last.t)
	if elapsed > p.opts.MaxPredictionAhead {
		elapsed = p.opts.MaxPredictionAhead
	}
	if elapsed < 0 {
		elapsed = 0
	}

	dt := elapsed.Seconds()
	return Position{
		X:    p.last.x + p.velocity.x*dt,
		Y:    p.last.y + p.velocity.y*dt,
		Mode: ModePredictive,
	}
}

func modeOrMetadata(m Mode) Mode {
	if m == ModeHidden {
		return ModeHidden
	}
	return ModeMetadata
}

func distance(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return math.Sqrt(dx*dx + dy*dy)
}
