package damage

import (
	"testing"

	"github.com/wrd-project/wrd-server/internal/capture"
)

func solidFrame(w, h int, value byte) *capture.VideoFrame {
	data := make([]byte, w*h*4)
	for i := range data {
		data[i] = value
	}
	return capture.NewFrame("s1", data, w, h, w*4, capture.FormatBGRA, 0)
}

func TestDetectFirstFrameIsFullDamage(t *testing.T) {
	d := NewDetector(Options{})
	f := solidFrame(128, 128, 10)

	rects := d.Detect(f)
	if len(rects) != 1 {
		t.Fatalf("expected one full-frame rect, got %v", rects)
	}
	if rects[0] != (Rect{X: 0, Y: 0, W: 128, H: 128}) {
		t.Fatalf("expected full-frame rect, got %+v", rects[0])
	}
}

func TestDetectIdenticalFramesReportNoDamage(t *testing.T) {
	d := NewDetector(Options{})
	d.Detect(solidFrame(128, 128, 10))

	rects := d.Detect(solidFrame(128, 128, 10))
	if len(rects) != 0 {
		t.Fatalf("expected no damage for identical frames, got %v", rects)
	}
}

func TestDetectResolutionChangeForcesFullDamage(t *testing.T) {
	d := NewDetector(Options{})
	d.Detect(solidFrame(128, 128, 10))

	rects := d.Detect(solidFrame(256, 256, 10))
	if len(rects) != 1 || rects[0].W != 256 || rects[0].H != 256 {
		t.Fatalf("expected full-frame damage after resize, got %v", rects)
	}
}

func TestDetectLocalizedChangeReportsSubRegion(t *testing.T) {
	d := NewDetector(Options{TileSize: 64, PixelThreshold: 4, DiffThreshold: 0.05, MergeDistance: 16, MinRegionArea: 1})
	base := solidFrame(256, 256, 10)
	d.Detect(base)

	changed := solidFrame(256, 256, 10)
	data := changed.Bytes()
	// Paint the bottom-right 64x64 tile a very different color.
	for y := 192; y < 256; y++ {
		for x := 192; x < 256; x++ {
			off := y*256*4 + x*4
			data[off] = 250
			data[off+1] = 250
			data[off+2] = 250
		}
	}

	rects := d.Detect(changed)
	if len(rects) == 0 {
		t.Fatal("expected localized damage, got none")
	}
	for _, r := range rects {
		if r.W == 256 && r.H == 256 {
			t.Fatalf("expected a sub-region, got full-frame damage: %+v", r)
		}
	}
}

func TestDetectUnknownFormatFallsBackToFullDamage(t *testing.T) {
	d := NewDetector(Options{})
	f := capture.NewFrame("s1", make([]byte, 64*64*4), 64, 64, 64*4, capture.FormatUnknown, 0)

	rects := d.Detect(f)
	if len(rects) != 1 {
		t.Fatalf("expected full-frame fallback for unknown format, got %v", rects)
	}
}

func TestDetectRegionsConvertsToDamageRegion(t *testing.T) {
	d := NewDetector(Options{})
	f := solidFrame(64, 64, 1)

	regions := d.DetectRegions(f)
	if len(regions) != 1 || regions[0].W != 64 {
		t.Fatalf("expected converted full-frame region, got %v", regions)
	}
}
