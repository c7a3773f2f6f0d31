// Package rdpio defines the two adapter contracts between the core
// and the RDP protocol engine, which spec.md §1 puts out of scope: the
// engine's connection setup, PDU codec, capability negotiation, and
// channel framing are all external. Only the boundary interfaces live
// here.
package rdpio

import "context"

// InputHandler is implemented by the session controller and driven by
// the RDP protocol engine as it decodes input PDUs off the client's
// input channel. Calls must be delivered in arrival order; the engine
// must not drop or reorder them (spec.md §5).
type InputHandler interface {
	KeyEvent(ctx context.Context, rdpScancode uint32, extended, down bool) error
	PointerMotion(ctx context.Context, dx, dy int32) error
	PointerMotionAbsolute(ctx context.Context, x, y int32) error
	PointerButton(ctx context.Context, button uint32, down bool) error
	PointerAxis(ctx context.Context, deltaX, deltaY int32) error
	// SyncEvent reports the client's lock-key state (num/caps/scroll),
	// sent once on activation and whenever the client resyncs.
	SyncEvent(ctx context.Context, scrollLock, numLock, capsLock bool) error
}

// DisplaySink is implemented by the RDP protocol engine's graphics
// channel and consumed by the core's EGFX sender (internal/egfx.Sender
// uses its Write method through egfx.Transport). Activated/
// EGFXNegotiated let the session controller gate the Ready->Active
// transition on the engine's own handshake state instead of guessing.
type DisplaySink interface {
	// Write sends one complete graphics-channel PDU. Implementations
	// must not reorder or coalesce PDUs across calls.
	Write(pdu []byte) error
	// Activated reports whether the RDP connection has completed its
	// capability exchange and is ready to receive graphics updates.
	Activated() bool
	// EGFXNegotiated reports whether the client advertised and the
	// engine accepted the Graphics Pipeline Extension channel.
	EGFXNegotiated() bool
}
