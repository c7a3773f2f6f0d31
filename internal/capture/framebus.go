package capture

import (
	"log/slog"
	"sync/atomic"
)

// FrameBus is a bounded, single-producer hand-off channel between a
// Source and its consumer (ordinarily the damage detector). It is the
// concrete, GStreamer-free implementation of the appsink buffering
// pattern in the teacher's GstPipeline: max-buffers=2, drop=true
// becomes a fixed-capacity channel that drops the oldest queued frame
// (releasing it) rather than blocking the capture callback or growing
// without bound.
type FrameBus struct {
	ch        chan *VideoFrame
	logger    *slog.Logger
	dropCount atomic.Uint64
	closed    atomic.Bool
}

// NewFrameBus builds a bus with the given capacity. Capacity 0 is
// coerced to 1: a bus that can hold nothing cannot do its job.
func NewFrameBus(capacity int, logger *slog.Logger) *FrameBus {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameBus{
		ch:     make(chan *VideoFrame, capacity),
		logger: logger,
	}
}

// Publish hands a frame to the bus. If the bus is full, the oldest
// queued frame is released and dropped to make room for the new one;
// Publish never blocks. Publish after Close is a no-op that releases
// the frame immediately.
func (b *FrameBus) Publish(frame *VideoFrame) {
	if b.closed.Load() {
		frame.Release()
		return
	}

	select {
	case b.ch <- frame:
		return
	default:
	}

	select {
	case old := <-b.ch:
		b.dropCount.Add(1)
		old.Release()
		if b.logger != nil {
			b.logger.Debug("frame bus full, dropped oldest frame", "stream_id", frame.StreamID)
		}
	default:
	}

	select {
	case b.ch <- frame:
	default:
		// Raced with another publisher draining the slot we just
		// freed; drop the new frame rather than block.
		b.dropCount.Add(1)
		frame.Release()
	}
}

// Frames returns the channel consumers read from.
func (b *FrameBus) Frames() <-chan *VideoFrame { return b.ch }

// DropCount returns the number of frames dropped so far due to a full
// bus.
func (b *FrameBus) DropCount() uint64 { return b.dropCount.Load() }

// Close marks the bus closed and drains+releases any frames still
// queued, then closes the channel. Safe to call once.
func (b *FrameBus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	close(b.ch)
	for frame := range b.ch {
		frame.Release()
	}
}
