package rate

import "testing"

func TestClassifyBuckets(t *testing.T) {
	cases := map[float64]ActivityLevel{
		0.0:  ActivityStatic,
		0.05: ActivityLow,
		0.20: ActivityMedium,
		0.50: ActivityHigh,
	}
	for frac, want := range cases {
		if got := Classify(frac); got != want {
			t.Fatalf("Classify(%v) = %v, want %v", frac, got, want)
		}
	}
}

func TestGovernorRampsTowardStaticTarget(t *testing.T) {
	g := NewGovernor(Options{}, LatencyModeBalanced, func(fps float64) int { return int(fps * 100_000) })

	d := g.Tick(0.0, 0.0)
	if d.FPS >= 60 {
		t.Fatalf("expected FPS to ramp gradually toward the static target, got %v immediately", d.FPS)
	}
}

func TestGovernorReachesHighActivityTargetEventually(t *testing.T) {
	g := NewGovernor(Options{}, LatencyModeBalanced, func(fps float64) int { return int(fps * 100_000) })

	var d Decision
	for i := 0; i < 50; i++ {
		d = g.Tick(0.5, 0.0)
	}
	if d.FPS < 55 {
		t.Fatalf("expected FPS to converge near 60 for sustained high activity, got %v", d.FPS)
	}
}

func TestGovernorLowersFPSAndNarrowsQPOnDropRate(t *testing.T) {
	g := NewGovernor(Options{}, LatencyModeBalanced, func(fps float64) int { return int(fps * 100_000) })

	for i := 0; i < 30; i++ {
		g.Tick(0.5, 0.0)
	}
	before := g.Tick(0.5, 0.0)

	var after Decision
	for i := 0; i < 5; i++ {
		after = g.Tick(0.5, 0.10)
	}

	if after.FPS >= before.FPS {
		t.Fatalf("expected FPS to step down under elevated drop rate, before=%v after=%v", before.FPS, after.FPS)
	}
	if after.QPMin <= before.QPMin {
		t.Fatalf("expected QP range to narrow upward (lower quality) under drops, before min=%v after min=%v", before.QPMin, after.QPMin)
	}
}

func TestGovernorInteractiveModeShortensKeyframeInterval(t *testing.T) {
	balanced := NewGovernor(Options{}, LatencyModeBalanced, func(fps float64) int { return 1_000_000 })
	interactive := NewGovernor(Options{}, LatencyModeInteractive, func(fps float64) int { return 1_000_000 })

	db := balanced.Tick(0.5, 0.0)
	di := interactive.Tick(0.5, 0.0)

	if di.KeyframeInterval >= db.KeyframeInterval {
		t.Fatalf("expected interactive mode to shorten keyframe interval, balanced=%d interactive=%d", db.KeyframeInterval, di.KeyframeInterval)
	}
}

func TestGovernorQualityModeLengthensKeyframeInterval(t *testing.T) {
	balanced := NewGovernor(Options{}, LatencyModeBalanced, func(fps float64) int { return 1_000_000 })
	quality := NewGovernor(Options{}, LatencyModeQuality, func(fps float64) int { return 1_000_000 })

	db := balanced.Tick(0.5, 0.0)
	dq := quality.Tick(0.5, 0.0)

	if dq.KeyframeInterval <= db.KeyframeInterval {
		t.Fatalf("expected quality mode to lengthen keyframe interval, balanced=%d quality=%d", db.KeyframeInterval, dq.KeyframeInterval)
	}
}
