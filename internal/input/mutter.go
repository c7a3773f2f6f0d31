package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const mutterRemoteDesktopIface = "org.gnome.Mutter.RemoteDesktop"

// MutterInjector drives GNOME Mutter's privileged RemoteDesktop D-Bus
// interface directly, bypassing the portal entirely — available only
// when the compositor is GNOME and the process is unsandboxed. API
// shape mirrors the portal's (spec.md §4.12 calls it "analogous"): the
// same method names, minus the portal's options dictionary.
type MutterInjector struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	session dbus.ObjectPath
	layout  MonitorLayout
	closed  bool
}

func NewMutterInjector(conn *dbus.Conn, session dbus.ObjectPath, layout MonitorLayout) *MutterInjector {
	return &MutterInjector{conn: conn, session: session, layout: layout}
}

func (m *MutterInjector) call(method string, args ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mutter injector closed")
	}
	obj := m.conn.Object("org.gnome.Mutter.RemoteDesktop", m.session)
	call := obj.Call(mutterRemoteDesktopIface+"."+method, 0, args...)
	return call.Err
}

func (m *MutterInjector) KeyEvent(_ context.Context, rdpScancode uint32, extended bool, down bool) error {
	evdev := ScancodeToEvdev(rdpScancode, extended)
	if evdev == 0 {
		return nil
	}
	state := int32(0)
	if down {
		state = 1
	}
	return m.call("NotifyKeyboardKeycode", int32(evdev), state)
}

func (m *MutterInjector) PointerMotion(_ context.Context, dx, dy int32) error {
	return m.call("NotifyPointerMotion", float64(dx), float64(dy))
}

func (m *MutterInjector) PointerMotionAbsolute(_ context.Context, x, y int32) error {
	outputID, lx, ly := m.layout.Resolve(x, y)
	return m.call("NotifyPointerMotionAbsolute", outputID, float64(lx), float64(ly))
}

func (m *MutterInjector) PointerButton(_ context.Context, button MouseButton, down bool) error {
	state := int32(0)
	if down {
		state = 1
	}
	return m.call("NotifyPointerButton", int32(button), state)
}

func (m *MutterInjector) PointerAxis(_ context.Context, deltaX, deltaY int32) error {
	return m.call("NotifyPointerAxis", float64(deltaX), float64(deltaY), uint32(0))
}

func (m *MutterInjector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
