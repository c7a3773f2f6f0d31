package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const portalRemoteDesktopIface = "org.freedesktop.portal.RemoteDesktop"

// PortalInjector drives the XDG Desktop Portal RemoteDesktop interface
// over the already-established session handle. Method names mirror
// the portal's actual D-Bus API (NotifyKeyboardKeycode,
// NotifyPointerMotion, NotifyPointerMotionAbsolute,
// NotifyPointerButton, NotifyPointerAxis), following the same
// synchronous method-call convention the ScreenCast portal calls in
// this codebase already use.
type PortalInjector struct {
	mu       sync.Mutex
	conn     *dbus.Conn
	session  dbus.ObjectPath
	streamID uint32
	layout   MonitorLayout
	closed   bool
}

// NewPortalInjector wraps an already-created RemoteDesktop portal
// session. streamID identifies the ScreenCast stream absolute pointer
// coordinates are reported against.
func NewPortalInjector(conn *dbus.Conn, session dbus.ObjectPath, streamID uint32, layout MonitorLayout) *PortalInjector {
	return &PortalInjector{conn: conn, session: session, streamID: streamID, layout: layout}
}

func (p *PortalInjector) call(method string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("portal injector closed")
	}
	obj := p.conn.Object("org.freedesktop.portal.Desktop", "/org/freedesktop/portal/desktop")
	callArgs := append([]interface{}{p.session, map[string]dbus.Variant{}}, args...)
	call := obj.Call(portalRemoteDesktopIface+"."+method, 0, callArgs...)
	return call.Err
}

func (p *PortalInjector) KeyEvent(_ context.Context, rdpScancode uint32, extended bool, down bool) error {
	evdev := ScancodeToEvdev(rdpScancode, extended)
	if evdev == 0 {
		return nil
	}
	state := int32(0)
	if down {
		state = 1
	}
	return p.call("NotifyKeyboardKeycode", int32(evdev), state)
}

func (p *PortalInjector) PointerMotion(_ context.Context, dx, dy int32) error {
	return p.call("NotifyPointerMotion", float64(dx), float64(dy))
}

func (p *PortalInjector) PointerMotionAbsolute(_ context.Context, x, y int32) error {
	_, lx, ly := p.layout.Resolve(x, y)
	return p.call("NotifyPointerMotionAbsolute", p.streamID, float64(lx), float64(ly))
}

func (p *PortalInjector) PointerButton(_ context.Context, button MouseButton, down bool) error {
	state := int32(0)
	if down {
		state = 1
	}
	return p.call("NotifyPointerButton", int32(button), state)
}

func (p *PortalInjector) PointerAxis(_ context.Context, deltaX, deltaY int32) error {
	if err := p.call("NotifyPointerAxis", float64(deltaX), float64(0)); err != nil {
		return err
	}
	return p.call("NotifyPointerAxis", float64(0), float64(deltaY))
}

func (p *PortalInjector) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
