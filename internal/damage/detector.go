package damage

import (
	"github.com/wrd-project/wrd-server/internal/capture"
)

// Options configures tile-diff thresholds. Zero-value Options is
// replaced with defaults by NewDetector.
type Options struct {
	// TileSize is the edge length, in pixels, of a comparison tile.
	TileSize int
	// PixelThreshold is the per-component byte difference that must be
	// exceeded for a pixel to count as "this pixel differs".
	PixelThreshold int
	// DiffThreshold is the fraction of differing pixels within a tile
	// (0..1) required to mark the tile dirty.
	DiffThreshold float64
	// MergeDistance is the pixel gap within which adjacent dirty tiles
	// are merged into one rectangle.
	MergeDistance int
	// MinRegionArea discards merged regions smaller than this, in px².
	MinRegionArea int
}

// DefaultOptions match spec.md's stated defaults.
func DefaultOptions() Options {
	return Options{
		TileSize:       64,
		PixelThreshold: 4,
		DiffThreshold:  0.05,
		MergeDistance:  32,
		MinRegionArea:  256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TileSize <= 0 {
		o.TileSize = d.TileSize
	}
	if o.PixelThreshold <= 0 {
		o.PixelThreshold = d.PixelThreshold
	}
	if o.DiffThreshold <= 0 {
		o.DiffThreshold = d.DiffThreshold
	}
	if o.MergeDistance <= 0 {
		o.MergeDistance = d.MergeDistance
	}
	if o.MinRegionArea <= 0 {
		o.MinRegionArea = d.MinRegionArea
	}
	return o
}

// Detector holds at most one reference frame per stream and reports
// the rectangles that changed since it. Not safe for concurrent use
// by multiple goroutines on the same stream; the capture pipeline
// processes one stream's frames serially.
type Detector struct {
	opts Options

	haveRef  bool
	refData  []byte
	width    int
	height   int
	stride   int
	format   capture.PixelFormat
}

// NewDetector builds a detector; a zero Options uses DefaultOptions.
func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// bytesPerPixel returns the pixel stride for the formats this package
// understands; both BGRA and BGRx are 4 bytes per pixel.
func bytesPerPixel(f capture.PixelFormat) int {
	switch f {
	case capture.FormatBGRA, capture.FormatBGRx:
		return 4
	default:
		return 0
	}
}

// Detect compares frame against the held reference frame and returns
// the damaged rectangles. An empty, non-nil slice means no damage: the
// caller should skip encoding this frame entirely. A configuration
// change (resolution or format) resets the reference and forces full
// damage, per spec.md's "first frame after a configuration change is
// always full damage" rule.
func (d *Detector) Detect(frame *capture.VideoFrame) []Rect {
	bpp := bytesPerPixel(frame.Format)
	if bpp == 0 {
		// Unknown format: cannot diff meaningfully, treat as full damage.
		return d.resetAndFull(frame)
	}

	if !d.haveRef || d.width != frame.Width || d.height != frame.Height || d.format != frame.Format {
		return d.resetAndFull(frame)
	}

	cur := frame.Bytes()
	full := []Rect{{X: 0, Y: 0, W: frame.Width, H: frame.Height}}
	if len(cur) != len(d.refData) {
		d.storeRef(frame)
		return full
	}

	tiles := d.diffTiles(cur, bpp)
	d.storeRef(frame)

	if len(tiles) == 0 {
		return []Rect{}
	}
	merged := mergeAdjacent(tiles, d.opts.MergeDistance)
	return filterSmall(merged, d.opts.MinRegionArea)
}

func (d *Detector) resetAndFull(frame *capture.VideoFrame) []Rect {
	d.storeRef(frame)
	return []Rect{{X: 0, Y: 0, W: frame.Width, H: frame.Height}}
}

func (d *Detector) storeRef(frame *capture.VideoFrame) {
	data := frame.Bytes()
	if cap(d.refData) < len(data) {
		d.refData = make([]byte, len(data))
	}
	d.refData = d.refData[:len(data)]
	copy(d.refData, data)

	d.haveRef = true
	d.width = frame.Width
	d.height = frame.Height
	d.stride = frame.Stride
	d.format = frame.Format
}

// diffTiles performs the scalar per-tile compare. SIMD dispatch
// (AVX2/NEON) is a documented limitation: this is a portable scalar
// fallback used unconditionally.
func (d *Detector) diffTiles(cur []byte, bpp int) []Rect {
	var dirty []Rect
	stride := d.stride
	if stride == 0 {
		stride = d.width * bpp
	}

	tile := d.opts.TileSize
	for ty := 0; ty < d.height; ty += tile {
		th := min(tile, d.height-ty)
		for tx := 0; tx < d.width; tx += tile {
			tw := min(tile, d.width-tx)
			if d.tileDirty(cur, tx, ty, tw, th, stride, bpp) {
				dirty = append(dirty, Rect{X: tx, Y: ty, W: tw, H: th})
			}
		}
	}
	return dirty
}

func (d *Detector) tileDirty(cur []byte, tx, ty, tw, th, stride, bpp int) bool {
	total := tw * th
	if total == 0 {
		return false
	}
	differing := 0
	for y := 0; y < th; y++ {
		rowOff := (ty+y)*stride + tx*bpp
		if rowOff+tw*bpp > len(cur) || rowOff+tw*bpp > len(d.refData) {
			return true // out-of-bounds mismatch: treat conservatively as dirty
		}
		for x := 0; x < tw; x++ {
			px := rowOff + x*bpp
			if componentsDiffer(cur[px:px+bpp], d.refData[px:px+bpp], d.opts.PixelThreshold) {
				differing++
			}
		}
	}
	return float64(differing)/float64(total) > d.opts.DiffThreshold
}

func componentsDiffer(a, b []byte, threshold int) bool {
	for i := range a {
		diff := int(a[i]) - int(b[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > threshold {
			return true
		}
	}
	return false
}

// DetectRegions is Detect, converted into the capture.DamageRegion
// shape VideoFrame and the EGFX sender consume.
func (d *Detector) DetectRegions(frame *capture.VideoFrame) []capture.DamageRegion {
	return toCaptureRegions(d.Detect(frame))
}

// Reset discards the held reference frame; the next Detect call will
// report full damage. Used when the capture source resets a stream
// (resolution or format change) outside of Detect's own change check.
func (d *Detector) Reset() {
	d.haveRef = false
	d.refData = nil
}
