package session

import (
	"context"
	"testing"
	"time"

	"github.com/wrd-project/wrd-server/internal/cursor"
	"github.com/wrd-project/wrd-server/internal/input"
)

type fakeInjector struct {
	keyEvents   []uint32
	motions     [][2]int32
	absMotions  [][2]int32
	buttons     []input.MouseButton
	axisEvents  [][2]int32
	closeCalled bool
}

func (f *fakeInjector) KeyEvent(_ context.Context, rdpScancode uint32, _ bool, _ bool) error {
	f.keyEvents = append(f.keyEvents, rdpScancode)
	return nil
}

func (f *fakeInjector) PointerMotion(_ context.Context, dx, dy int32) error {
	f.motions = append(f.motions, [2]int32{dx, dy})
	return nil
}

func (f *fakeInjector) PointerMotionAbsolute(_ context.Context, x, y int32) error {
	f.absMotions = append(f.absMotions, [2]int32{x, y})
	return nil
}

func (f *fakeInjector) PointerButton(_ context.Context, button input.MouseButton, _ bool) error {
	f.buttons = append(f.buttons, button)
	return nil
}

func (f *fakeInjector) PointerAxis(_ context.Context, deltaX, deltaY int32) error {
	f.axisEvents = append(f.axisEvents, [2]int32{deltaX, deltaY})
	return nil
}

func (f *fakeInjector) Close() error {
	f.closeCalled = true
	return nil
}

func newTestControllerWithInjector(inj input.Injector) *Controller {
	c := NewController(Config{SessionID: "s1"}, nil, nil, nil, nil)
	c.injector = inj
	return c
}

func TestInputAdapterForwardsKeyEvent(t *testing.T) {
	fi := &fakeInjector{}
	c := newTestControllerWithInjector(fi)
	a := c.HandleInput()

	if err := a.KeyEvent(context.Background(), 0x1e, false, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fi.keyEvents) != 1 || fi.keyEvents[0] != 0x1e {
		t.Fatalf("expected the scancode forwarded to the injector, got %v", fi.keyEvents)
	}
}

func TestInputAdapterPointerMotionAbsoluteObservesCursor(t *testing.T) {
	fi := &fakeInjector{}
	c := newTestControllerWithInjector(fi)
	a := c.HandleInput()

	if err := a.PointerMotionAbsolute(context.Background(), 100, 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fi.absMotions) != 1 || fi.absMotions[0] != [2]int32{100, 200} {
		t.Fatalf("expected the motion forwarded to the injector, got %v", fi.absMotions)
	}

	pos := c.CursorEstimate(time.Now())
	if pos.X != 100 || pos.Y != 200 {
		t.Fatalf("expected the predictor to have observed (100,200), got %+v", pos)
	}
	if pos.Mode != cursor.ModeMetadata {
		t.Fatalf("expected ModeMetadata with no RTT sample, got %v", pos.Mode)
	}
}

func TestInputAdapterButtonConvertsToMouseButton(t *testing.T) {
	fi := &fakeInjector{}
	c := newTestControllerWithInjector(fi)
	a := c.HandleInput()

	if err := a.PointerButton(context.Background(), uint32(input.ButtonRight), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fi.buttons) != 1 || fi.buttons[0] != input.ButtonRight {
		t.Fatalf("expected ButtonRight forwarded, got %v", fi.buttons)
	}
}

func TestInputAdapterSyncEventIsNoop(t *testing.T) {
	fi := &fakeInjector{}
	c := newTestControllerWithInjector(fi)
	a := c.HandleInput()

	if err := a.SyncEvent(context.Background(), true, true, false); err != nil {
		t.Fatalf("expected SyncEvent to be accepted without error, got %v", err)
	}
}
