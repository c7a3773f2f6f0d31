package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalBus            = "org.freedesktop.portal.Desktop"
	portalPath           = "/org/freedesktop/portal/desktop"
	portalScreenCastIface    = "org.freedesktop.portal.ScreenCast"
	portalRemoteDesktopIface = "org.freedesktop.portal.RemoteDesktop"
	portalRequestIface       = "org.freedesktop.portal.Request"

	portalSourceMonitor = uint32(1)
	portalCursorHidden  = uint32(1)

	portalPersistModeNone      = uint32(0)
	portalPersistModePersist   = uint32(2)

	portalResponseTimeout = 30 * time.Second
)

// requestPath derives the well-known object path the portal's
// Request.Response signal fires on for a given handle token, following
// the sender-name-mangling scheme org.freedesktop.portal.Request
// documents (leading ':' stripped, each '.' replaced with '_').
func requestPath(conn *dbus.Conn, token string) dbus.ObjectPath {
	sender := conn.Names()[0]
	var b strings.Builder
	for _, c := range sender[1:] { // skip leading ':'
		if c == '.' {
			b.WriteByte('_')
		} else {
			b.WriteRune(c)
		}
	}
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", b.String(), token))
}

// subscribeResponse arranges to receive the Response signal for a
// just-issued request and returns a channel plus its cleanup func.
func subscribeResponse(conn *dbus.Conn, path dbus.ObjectPath) (chan *dbus.Signal, func(), error) {
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(portalRequestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, nil, fmt.Errorf("add signal match: %w", err)
	}
	ch := make(chan *dbus.Signal, 10)
	conn.Signal(ch)
	return ch, func() { conn.RemoveSignal(ch) }, nil
}

// waitForResponse blocks for the Response signal and returns its
// results dictionary.
func waitForResponse(ctx context.Context, ch chan *dbus.Signal) (map[string]dbus.Variant, error) {
	timeout := time.After(portalResponseTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig := <-ch:
			if sig.Name != portalRequestIface+".Response" || len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, _ := sig.Body[1].(map[string]dbus.Variant)
			return results, nil
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for portal response")
		}
	}
}

func resultString(results map[string]dbus.Variant, key string) string {
	if v, ok := results[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func uniqueToken(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}
