// Package encoder turns raw VideoFrames into H.264 EncodedUnits behind
// one contract implemented by three concrete backends — software
// (OpenH264/x264), VA-API, and NVENC — each selecting a GStreamer
// encoder element the way the teacher's GstPipeline already does.
// Grounded throughout on api/pkg/desktop/gst_pipeline.go and
// h264_sps.go.
package encoder

import (
	"context"
	"time"

	"github.com/wrd-project/wrd-server/internal/capture"
)

// NALUnitType mirrors the subset of H.264 NAL unit types this package
// cares about.
type NALUnitType int

const (
	NALUnitTypeUnknown NALUnitType = iota
	NALUnitTypeSlice
	NALUnitTypeIDRSlice
	NALUnitTypeSPS
	NALUnitTypePPS
)

// EncodedUnit is one NAL unit produced for a presentation time.
type EncodedUnit struct {
	Type       NALUnitType
	Data       []byte
	PTSNanos   int64
	IsKeyframe bool
}

// RateControlMode selects how the encoder targets bitrate/quality.
type RateControlMode int

const (
	RateControlConstantQP RateControlMode = iota
	RateControlVariableBitrate
	RateControlCappedConstantQuality
)

// Config is the mutable, reconfigurable state of an encoder instance.
// Width/Height/Format/Color changes force an IDR on the next Encode;
// everything else (Mode parameters, KeyframeInterval) applies without
// one.
type Config struct {
	Width, Height int
	Format        capture.PixelFormat
	Color         ColorSpec

	Mode              RateControlMode
	ConstantQP        int
	TargetBitrateBps  int
	MaxBitrateBps     int
	CRF               int
	KeyframeInterval  int // frames between forced IDRs, 0 disables periodic IDR
}

// Stats reports cumulative encoder health, surfaced to the rate
// governor and diagnostics.
type Stats struct {
	FramesEncoded   uint64
	KeyframesForced uint64
	BytesProduced   uint64
	LastEncodeTime  time.Duration
	Backend         string
}

// Backend is one concrete H.264 encoder implementation.
type Backend interface {
	// Encode produces zero or more NAL units for one frame. The very
	// first call on a freshly constructed backend always yields an
	// IDR as its first unit.
	Encode(ctx context.Context, frame *capture.VideoFrame, forceIDR bool) ([]EncodedUnit, error)
	// Reconfigure applies a new Config. Implementations must force an
	// IDR on the next Encode if Width/Height/Format/Color changed.
	Reconfigure(cfg Config) error
	// ForceKeyframe arms the next Encode call to produce an IDR.
	ForceKeyframe()
	Stats() Stats
	Close() error
}

// dimsOrColorChanged reports whether a reconfigure must force an IDR.
func dimsOrColorChanged(old, new Config) bool {
	return old.Width != new.Width ||
		old.Height != new.Height ||
		old.Format != new.Format ||
		old.Color != new.Color
}
