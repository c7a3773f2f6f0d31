package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/wayland-virtual-input-go/virtual_keyboard"
	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
)

// WlrInjector constructs a zwp_virtual_keyboard_v1 + zwlr_virtual_pointer_v1
// pair directly against the wlroots compositor. No /dev/uinput or root
// privileges required. Grounded on the same package and LIFO
// construction/teardown discipline the teacher's WaylandInput uses.
type WlrInjector struct {
	pointerManager  *virtual_pointer.VirtualPointerManager
	pointer         *virtual_pointer.VirtualPointer
	keyboardManager *virtual_keyboard.VirtualKeyboardManager
	keyboard        *virtual_keyboard.VirtualKeyboard
	logger          *slog.Logger
	layout          MonitorLayout

	mu                   sync.Mutex
	closed               bool
	currentX, currentY   float64
	screenWidth, screenHeight int
}

// NewWlrInjector connects to the compositor and creates the virtual
// devices, cleaning up in LIFO order on a partial failure.
func NewWlrInjector(ctx context.Context, logger *slog.Logger, screenWidth, screenHeight int, layout MonitorLayout) (*WlrInjector, error) {
	pointerManager, err := virtual_pointer.NewVirtualPointerManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("create virtual pointer manager: %w", err)
	}

	pointer, err := pointerManager.CreatePointer()
	if err != nil {
		pointerManager.Close()
		return nil, fmt.Errorf("create virtual pointer: %w", err)
	}

	keyboardManager, err := virtual_keyboard.NewVirtualKeyboardManager(ctx)
	if err != nil {
		pointer.Close()
		pointerManager.Close()
		return nil, fmt.Errorf("create virtual keyboard manager: %w", err)
	}

	keyboard, err := keyboardManager.CreateKeyboard()
	if err != nil {
		keyboardManager.Close()
		pointer.Close()
		pointerManager.Close()
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}

	logger.Info("wlr virtual input created", "screen_width", screenWidth, "screen_height", screenHeight)

	return &WlrInjector{
		pointerManager:  pointerManager,
		pointer:         pointer,
		keyboardManager: keyboardManager,
		keyboard:        keyboard,
		logger:          logger,
		layout:          layout,
		screenWidth:     screenWidth,
		screenHeight:    screenHeight,
		currentX:        float64(screenWidth) / 2,
		currentY:        float64(screenHeight) / 2,
	}
}

func (w *WlrInjector) KeyEvent(_ context.Context, rdpScancode uint32, extended bool, down bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	evdev := ScancodeToEvdev(rdpScancode, extended)
	if evdev == 0 {
		w.logger.Debug("unmapped rdp scancode", "scancode", rdpScancode, "extended", extended)
		return nil
	}
	state := virtual_keyboard.KeyStateReleased
	if down {
		state = virtual_keyboard.KeyStatePressed
	}
	return w.keyboard.Key(time.Now(), uint32(evdev), state)
}

func (w *WlrInjector) PointerMotion(_ context.Context, dx, dy int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.currentX = clampF(w.currentX+float64(dx), 0, float64(w.screenWidth)-1)
	w.currentY = clampF(w.currentY+float64(dy), 0, float64(w.screenHeight)-1)
	w.pointer.MoveRelative(float64(dx), float64(dy))
	return nil
}

// PointerMotionAbsolute converts an absolute unified-coordinate target
// into a relative delta, since zwlr_virtual_pointer_v1 only supports
// relative movement.
func (w *WlrInjector) PointerMotionAbsolute(_ context.Context, x, y int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	_, lx, ly := w.layout.Resolve(x, y)
	targetX, targetY := float64(lx), float64(ly)
	dx, dy := targetX-w.currentX, targetY-w.currentY
	w.currentX, w.currentY = targetX, targetY
	if dx != 0 || dy != 0 {
		w.pointer.MoveRelative(dx, dy)
	}
	return nil
}

func (w *WlrInjector) PointerButton(_ context.Context, button MouseButton, down bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	var btn uint32
	switch button {
	case ButtonLeft:
		btn = virtual_pointer.BTN_LEFT
	case ButtonRight:
		btn = virtual_pointer.BTN_RIGHT
	case ButtonMiddle:
		btn = virtual_pointer.BTN_MIDDLE
	default:
		return nil
	}
	state := virtual_pointer.BUTTON_STATE_RELEASED
	if down {
		state = virtual_pointer.BUTTON_STATE_PRESSED
	}
	w.pointer.Button(time.Now(), btn, state)
	w.pointer.Frame()
	return nil
}

func (w *WlrInjector) PointerAxis(_ context.Context, deltaX, deltaY int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if deltaY != 0 {
		w.pointer.ScrollVertical(float64(deltaY))
	}
	if deltaX != 0 {
		w.pointer.ScrollHorizontal(float64(deltaX))
	}
	w.pointer.Frame()
	return nil
}

func (w *WlrInjector) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.keyboard.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close keyboard: %w", err))
	}
	if err := w.keyboardManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close keyboard manager: %w", err))
	}
	if err := w.pointer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pointer: %w", err))
	}
	if err := w.pointerManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pointer manager: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	w.logger.Info("wlr virtual input closed")
	return nil
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
