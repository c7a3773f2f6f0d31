// Package damage compares successive captured frames and reports the
// rectangles that changed, so the encoder can be skipped entirely on
// a static desktop and the EGFX sender can carry a tight damage list
// instead of "the whole screen changed" on every tick. This is new
// code: the teacher's own diff.go is a git-diff HTTP handler, unrelated
// to pixel comparison, and contributes nothing here. The buffer-safety
// discipline (map, copy, never hold a pointer past the callback) follows
// the teacher's gst_pipeline.go buffer.Map conventions.
package damage

import "github.com/wrd-project/wrd-server/internal/capture"

// Rect is an axis-aligned rectangle in pixels, identical in shape to
// capture.DamageRegion but kept as its own type so this package does
// not otherwise depend on capture's internals beyond VideoFrame.Bytes.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) area() int { return r.W * r.H }

// toCaptureRegions converts detector output into the shape VideoFrame
// and the EGFX sender expect.
func toCaptureRegions(rects []Rect) []capture.DamageRegion {
	out := make([]capture.DamageRegion, len(rects))
	for i, r := range rects {
		out[i] = capture.DamageRegion{X: r.X, Y: r.Y, W: r.W, H: r.H}
	}
	return out
}

// adjacent reports whether two rectangles are within dist pixels of
// touching or overlapping, in either axis.
func adjacent(a, b Rect, dist int) bool {
	aLeft, aRight := a.X-dist, a.X+a.W+dist
	aTop, aBottom := a.Y-dist, a.Y+a.H+dist
	if aRight < b.X || b.X+b.W < aLeft {
		return false
	}
	if aBottom < b.Y || b.Y+b.H < aTop {
		return false
	}
	return true
}

// union returns the smallest rectangle containing both a and b.
func union(a, b Rect) Rect {
	minX, minY := min(a.X, b.X), min(a.Y, b.Y)
	maxX, maxY := max(a.X+a.W, b.X+b.W), max(a.Y+a.H, b.Y+b.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// mergeAdjacent repeatedly unions rectangles within mergeDistance of
// each other until no further merges apply. O(n²) per pass; tile
// counts at 64px tiles on desktop-sized frames keep this cheap.
func mergeAdjacent(rects []Rect, mergeDistance int) []Rect {
	merged := append([]Rect(nil), rects...)
	for {
		didMerge := false
		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); j++ {
				if adjacent(merged[i], merged[j], mergeDistance) {
					merged[i] = union(merged[i], merged[j])
					merged = append(merged[:j], merged[j+1:]...)
					didMerge = true
					break
				}
			}
			if didMerge {
				break
			}
		}
		if !didMerge {
			break
		}
	}
	return merged
}

// filterSmall drops rectangles whose area is below minArea.
func filterSmall(rects []Rect, minArea int) []Rect {
	out := rects[:0]
	for _, r := range rects {
		if r.area() >= minArea {
			out = append(out, r)
		}
	}
	return out
}
