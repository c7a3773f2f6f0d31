// Package capture owns a PipeWire (or, for WlrDirect, a
// wlr-screencopy) connection per monitor and delivers raw VideoFrames
// with timestamps and damage to the rest of the pipeline (spec.md
// §4.5). Grounded throughout on the teacher's GstPipeline
// (api/pkg/desktop/gst_pipeline.go), generalized from one fused
// capture+encode pipeline into a raw-pixel capture stage so the
// Damage Detector and Encoder can sit between capture and transport as
// independent components, per the spec's layered data model.
package capture

import "github.com/wrd-project/wrd-server/internal/wrderr"

// PixelFormat is the negotiated buffer layout. The source advertises a
// preference order DmaBuf(BGRA/BGRx) -> Shm(BGRA/BGRx) -> Mmap(BGRA/BGRx).
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatBGRA
	FormatBGRx
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "BGRA"
	case FormatBGRx:
		return "BGRx"
	default:
		return "unknown"
	}
}

// StreamDescriptor identifies one capture stream's negotiated
// parameters. Width/height may be unknown (zero) until the first
// frame arrives.
type StreamDescriptor struct {
	StreamID string

	// Exactly one of these is meaningful, matching the PipeWireAccess
	// the owning strategy reported; NodeID/Fd are zero when this
	// stream bypasses PipeWire entirely (WlrDirect).
	PwNodeID uint32
	PwFd     int

	Width, Height, Stride int
	Format                PixelFormat

	ColorPrimaries string
	Transfer       string
	Matrix         string
	FullRange      bool

	OutputPositionX, OutputPositionY int
}

// ErrFormatUnsupported is returned when negotiation exhausts the
// preference order without finding a usable format.
var ErrFormatUnsupported = wrderr.New(wrderr.CapabilityMissing, "no supported pixel format negotiated")
