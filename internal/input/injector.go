// Package input translates RDP input PDUs into one of four injection
// backends selected by the active session strategy (spec.md §4.12).
package input

import "context"

// MouseButton enumerates the Linux evdev button codes RDP pointer
// button events are translated to/from.
type MouseButton uint32

const (
	ButtonLeft   MouseButton = 272
	ButtonRight  MouseButton = 273
	ButtonMiddle MouseButton = 274
)

// OutputRect is one monitor's rectangle in the unified logical
// coordinate space the RDP client's absolute pointer reports are
// expressed in.
type OutputRect struct {
	OutputID string
	X, Y     int32
	W, H     int32
}

// MonitorLayout maps unified virtual-desktop coordinates to a
// specific output's local coordinates, per spec.md §4.12's
// multi-monitor coordinate translation rule.
type MonitorLayout struct {
	Outputs []OutputRect
}

// Resolve maps an absolute point in the unified coordinate space to
// (outputID, localX, localY). If no output contains the point, it is
// clamped into the first output in layout order.
func (m MonitorLayout) Resolve(x, y int32) (outputID string, localX, localY int32) {
	for _, o := range m.Outputs {
		if x >= o.X && x < o.X+o.W && y >= o.Y && y < o.Y+o.H {
			return o.OutputID, x - o.X, y - o.Y
		}
	}
	if len(m.Outputs) == 0 {
		return "", x, y
	}
	o := m.Outputs[0]
	lx, ly := x-o.X, y-o.Y
	if lx < 0 {
		lx = 0
	}
	if lx >= o.W {
		lx = o.W - 1
	}
	if ly < 0 {
		ly = 0
	}
	if ly >= o.H {
		ly = o.H - 1
	}
	return o.OutputID, lx, ly
}

// Injector is the common contract every input backend implements.
// Implementations must release every virtual device / portal session
// promptly when Close is called, including on a partially-constructed
// injector (LIFO teardown of whatever was already created).
type Injector interface {
	// KeyEvent injects a key transition. rdpScancode is the RDP
	// scancode (possibly extended); down is true for key-down.
	KeyEvent(ctx context.Context, rdpScancode uint32, extended bool, down bool) error
	// PointerMotion injects a relative pointer motion in pixels.
	PointerMotion(ctx context.Context, dx, dy int32) error
	// PointerMotionAbsolute injects an absolute pointer position in
	// unified virtual-desktop coordinates; the injector resolves it
	// against its MonitorLayout before calling into the backend.
	PointerMotionAbsolute(ctx context.Context, x, y int32) error
	// PointerButton injects a button transition.
	PointerButton(ctx context.Context, button MouseButton, down bool) error
	// PointerAxis injects a scroll/wheel delta (positive = away from
	// the user, matching RDP's axis convention).
	PointerAxis(ctx context.Context, deltaX, deltaY int32) error
	// Close releases all virtual devices / portal sessions. Safe to
	// call multiple times.
	Close() error
}
