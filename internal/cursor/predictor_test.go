package cursor

import (
	"testing"
	"time"
)

func TestPredictorAutoPrefersMetadataBelowRTTThreshold(t *testing.T) {
	p := NewPredictor(ModeAuto, Options{})
	base := time.Unix(0, 0)
	p.Observe(10, 10, base)
	p.SetMeasuredRTT(5 * time.Millisecond)

	pos := p.Estimate(base.Add(10 * time.Millisecond))
	if pos.Mode != ModeMetadata {
		t.Fatalf("expected ModeMetadata under low RTT, got %v", pos.Mode)
	}
}

func TestPredictorAutoPrefersPredictiveAboveRTTThreshold(t *testing.T) {
	p := NewPredictor(ModeAuto, Options{})
	base := time.Unix(0, 0)
	p.Observe(0, 0, base)
	p.Observe(10, 0, base.Add(10*time.Millisecond))
	p.SetMeasuredRTT(50 * time.Millisecond)

	pos := p.Estimate(base.Add(20 * time.Millisecond))
	if pos.Mode != ModePredictive {
		t.Fatalf("expected ModePredictive under high RTT, got %v", pos.Mode)
	}
	if pos.X <= 10 {
		t.Fatalf("expected extrapolated X beyond the last sample, got %v", pos.X)
	}
}

func TestPredictorCapsPredictionAtMaxPredictionAhead(t *testing.T) {
	p := NewPredictor(ModePredictive, Options{MaxPredictionAhead: 50 * time.Millisecond})
	base := time.Unix(0, 0)
	p.Observe(0, 0, base)
	p.Observe(100, 0, base.Add(10*time.Millisecond))

	farFuture := p.Estimate(base.Add(10*time.Millisecond + time.Second))
	atCap := p.Estimate(base.Add(10*time.Millisecond + 50*time.Millisecond))
	if farFuture.X != atCap.X {
		t.Fatalf("expected prediction to cap at MaxPredictionAhead, got %v vs %v", farFuture.X, atCap.X)
	}
}

func TestPredictorFallsBackToMetadataWhenErratic(t *testing.T) {
	p := NewPredictor(ModeAuto, Options{SnapThreshold: 5})
	base := time.Unix(0, 0)
	p.SetMeasuredRTT(50 * time.Millisecond)

	p.Observe(0, 0, base)
	p.Observe(10, 0, base.Add(10*time.Millisecond))
	// Sudden large jump inconsistent with prior velocity.
	p.Observe(500, 500, base.Add(20*time.Millisecond))

	pos := p.Estimate(base.Add(25 * time.Millisecond))
	if pos.Mode != ModeMetadata {
		t.Fatalf("expected an erratic sample to fall back to ModeMetadata, got %v", pos.Mode)
	}
}

func TestPredictorExplicitModeOverridesAuto(t *testing.T) {
	p := NewPredictor(ModeAuto, Options{})
	p.SetMode(ModeHidden)
	base := time.Unix(0, 0)
	p.Observe(1, 1, base)

	pos := p.Estimate(base)
	if pos.Mode != ModeHidden {
		t.Fatalf("expected explicit ModeHidden to override Auto selection, got %v", pos.Mode)
	}
}
