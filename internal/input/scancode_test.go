package input

import "testing"

func TestScancodeToEvdevKnownKeys(t *testing.T) {
	cases := []struct {
		name      string
		scancode  uint32
		extended  bool
		wantEvdev int
	}{
		{"A", 0x1E, false, 30},
		{"ENTER", 0x1C, false, 28},
		{"LEFTCTRL", 0x1D, false, 29},
		{"RIGHTCTRL extended", 0x1D, true, 97},
		{"KPENTER extended", 0x1C, true, 96},
		{"UP arrow extended", 0x48, true, 103},
		{"F12", 0x58, false, 88},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ScancodeToEvdev(c.scancode, c.extended)
			if got != c.wantEvdev {
				t.Fatalf("ScancodeToEvdev(%#x, extended=%v) = %d, want %d", c.scancode, c.extended, got, c.wantEvdev)
			}
		})
	}
}

func TestScancodeToEvdevUnknownReturnsZero(t *testing.T) {
	if got := ScancodeToEvdev(0xFF, false); got != 0 {
		t.Fatalf("expected 0 for unknown scancode, got %d", got)
	}
	if got := ScancodeToEvdev(0x99, true); got != 0 {
		t.Fatalf("expected 0 for unknown extended scancode, got %d", got)
	}
}

func TestScancodeTableMeetsMinimumCoverage(t *testing.T) {
	total := len(scancodeToEvdev) + len(extendedScancodeToEvdev)
	if total < 200 {
		t.Fatalf("combined scancode table has %d entries, want at least 200", total)
	}
}

// TestScancodeEvdevRoundTrip walks every entry in both forward tables
// and checks that EvdevToScancode inverts ScancodeToEvdev exactly,
// since the two forward tables are disjoint on evdev codes.
func TestScancodeEvdevRoundTrip(t *testing.T) {
	for sc, wantEvdev := range scancodeToEvdev {
		gotEvdev := ScancodeToEvdev(sc, false)
		if gotEvdev != wantEvdev {
			t.Fatalf("ScancodeToEvdev(%#x, false) = %d, want %d", sc, gotEvdev, wantEvdev)
		}
		backSc, backExtended, ok := EvdevToScancode(gotEvdev)
		if !ok {
			t.Fatalf("EvdevToScancode(%d) not found for base scancode %#x", gotEvdev, sc)
		}
		if backSc != sc || backExtended {
			t.Fatalf("EvdevToScancode(%d) = (%#x, extended=%v), want (%#x, extended=false)", gotEvdev, backSc, backExtended, sc)
		}
	}

	for sc, wantEvdev := range extendedScancodeToEvdev {
		gotEvdev := ScancodeToEvdev(sc, true)
		if gotEvdev != wantEvdev {
			t.Fatalf("ScancodeToEvdev(%#x, true) = %d, want %d", sc, gotEvdev, wantEvdev)
		}
		backSc, backExtended, ok := EvdevToScancode(gotEvdev)
		if !ok {
			t.Fatalf("EvdevToScancode(%d) not found for extended scancode %#x", gotEvdev, sc)
		}
		if backSc != sc || !backExtended {
			t.Fatalf("EvdevToScancode(%d) = (%#x, extended=%v), want (%#x, extended=true)", gotEvdev, backSc, backExtended, sc)
		}
	}
}

func TestEvdevToScancodeUnknownReturnsNotOK(t *testing.T) {
	if _, _, ok := EvdevToScancode(99999); ok {
		t.Fatalf("expected ok=false for an evdev code with no RDP scancode")
	}
}

func TestMonitorLayoutResolveSingleOutput(t *testing.T) {
	layout := MonitorLayout{Outputs: []OutputRect{
		{OutputID: "primary", X: 0, Y: 0, W: 1920, H: 1080},
	}}
	id, lx, ly := layout.Resolve(100, 200)
	if id != "primary" || lx != 100 || ly != 200 {
		t.Fatalf("got (%s, %d, %d)", id, lx, ly)
	}
}

func TestMonitorLayoutResolveSecondOutput(t *testing.T) {
	layout := MonitorLayout{Outputs: []OutputRect{
		{OutputID: "left", X: 0, Y: 0, W: 1920, H: 1080},
		{OutputID: "right", X: 1920, Y: 0, W: 1920, H: 1080},
	}}
	id, lx, ly := layout.Resolve(2020, 50)
	if id != "right" || lx != 100 || ly != 50 {
		t.Fatalf("got (%s, %d, %d)", id, lx, ly)
	}
}

func TestMonitorLayoutResolveClampsOutOfBounds(t *testing.T) {
	layout := MonitorLayout{Outputs: []OutputRect{
		{OutputID: "only", X: 0, Y: 0, W: 100, H: 100},
	}}
	id, lx, ly := layout.Resolve(-5, 500)
	if id != "only" || lx != 0 || ly != 99 {
		t.Fatalf("got (%s, %d, %d)", id, lx, ly)
	}
}
