package session

import (
	"context"

	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/rdpio"
)

var _ rdpio.InputHandler = InputAdapter{}

// InputAdapter implements rdpio.InputHandler against one Controller's
// active injector, forwarding every call and additionally feeding
// pointer samples to the cursor predictor — mirroring the teacher's
// UpdateCursorPosition call from its own input-handling path
// (api/pkg/desktop/desktop.go).
type InputAdapter struct {
	c *Controller
}

func (a InputAdapter) KeyEvent(ctx context.Context, rdpScancode uint32, extended, down bool) error {
	return a.c.injector.KeyEvent(ctx, rdpScancode, extended, down)
}

func (a InputAdapter) PointerMotion(ctx context.Context, dx, dy int32) error {
	return a.c.injector.PointerMotion(ctx, dx, dy)
}

func (a InputAdapter) PointerMotionAbsolute(ctx context.Context, x, y int32) error {
	a.c.cursorObserve(x, y)
	return a.c.injector.PointerMotionAbsolute(ctx, x, y)
}

func (a InputAdapter) PointerButton(ctx context.Context, button uint32, down bool) error {
	return a.c.injector.PointerButton(ctx, input.MouseButton(button), down)
}

func (a InputAdapter) PointerAxis(ctx context.Context, deltaX, deltaY int32) error {
	return a.c.injector.PointerAxis(ctx, deltaX, deltaY)
}

// SyncEvent has no compositor-side equivalent in any of the four
// injection backends (lock-key state is tracked client-side); it is
// accepted and ignored so the RDP engine's SyncEvent PDU handling
// doesn't need a special case for this adapter.
func (a InputAdapter) SyncEvent(ctx context.Context, scrollLock, numLock, capsLock bool) error {
	return nil
}
