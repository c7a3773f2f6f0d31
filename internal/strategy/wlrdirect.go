package strategy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// WlrDirect talks to a wlroots compositor's native protocols with no
// session bus round-trip at all: capture via wlr-screencopy, input via
// zwp_virtual_keyboard_v1 + zwlr_virtual_pointer_v1. No consent dialog.
// Grounded on the teacher's Sway branch in Server.Run (skips the
// portal, constructs WaylandInput directly using logical/physical
// scale) and on wayland_input.go for the injector construction itself.
type WlrDirect struct {
	logger       *slog.Logger
	layout       input.MonitorLayout
	screenWidth  int
	screenHeight int
}

func NewWlrDirect(logger *slog.Logger, layout input.MonitorLayout, screenWidth, screenHeight int) *WlrDirect {
	return &WlrDirect{logger: logger, layout: layout, screenWidth: screenWidth, screenHeight: screenHeight}
}

func (w *WlrDirect) Kind() Kind { return KindWlrDirect }

// Create ignores restoreToken: wlr-direct has no consent dialog to
// skip in the first place.
func (w *WlrDirect) Create(ctx context.Context, _ []byte) (Handle, error) {
	injector, err := input.NewWlrInjector(ctx, w.logger, w.screenWidth, w.screenHeight, w.layout)
	if err != nil {
		return nil, wrderr.Wrap(wrderr.StrategyFailed, "create wlr virtual input", err)
	}
	return &wlrHandle{injector: injector}, nil
}

type wlrHandle struct {
	mu       sync.Mutex
	injector input.Injector
	closed   bool
}

// PipeWireAccess reports CaptureModeWlrScreencopy: the capture source
// connects to the compositor directly via wlr-screencopy, there is no
// PipeWire fd or node id to hand it.
func (h *wlrHandle) PipeWireAccess() PipeWireAccess {
	return PipeWireAccess{Mode: CaptureModeWlrScreencopy}
}

func (h *wlrHandle) Injector() input.Injector { return h.injector }

func (h *wlrHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.injector.Close()
}
