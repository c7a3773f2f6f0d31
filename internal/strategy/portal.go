package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// PortalToken is the universal fallback strategy: it drives the XDG
// Desktop Portal ScreenCast + RemoteDesktop interfaces and, when a
// restore token was supplied, asks the portal to skip the consent
// dialog. Grounded end-to-end on the teacher's portal D-Bus call
// sequence (CreateSession → SelectSources → Start →
// OpenPipeWireRemote), generalized to accept/emit a restore token and
// to also create the RemoteDesktop session for input.
type PortalToken struct {
	logger *slog.Logger
	layout input.MonitorLayout
}

func NewPortalToken(logger *slog.Logger, layout input.MonitorLayout) *PortalToken {
	return &PortalToken{logger: logger, layout: layout}
}

func (p *PortalToken) Kind() Kind { return KindPortalToken }

func (p *PortalToken) Create(ctx context.Context, restoreToken []byte) (Handle, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, wrderr.Wrap(wrderr.StrategyFailed, "connect session bus", err)
	}

	screencastSession, err := createScreenCastSession(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := selectSources(ctx, conn, screencastSession, restoreToken); err != nil {
		conn.Close()
		return nil, err
	}

	nodeID, newRestoreToken, err := startScreenCast(ctx, conn, screencastSession)
	if err != nil {
		conn.Close()
		return nil, err
	}

	fd, err := openPipeWireRemote(conn, screencastSession)
	if err != nil {
		p.logger.Warn("OpenPipeWireRemote failed, continuing without dup'd fd", "error", err)
	}

	rdSession, rdErr := createRemoteDesktopSession(ctx, conn)
	var injector input.Injector
	if rdErr != nil {
		p.logger.Warn("portal RemoteDesktop unavailable for this session", "error", rdErr)
		injector = noopInjector{}
	} else {
		injector = input.NewPortalInjector(conn, rdSession, nodeID, p.layout)
	}

	return &portalHandle{
		conn:         conn,
		access:       pwAccess(fd, nodeID),
		injector:     injector,
		restoreToken: newRestoreToken,
		session:      screencastSession,
	}, nil
}

func pwAccess(fd int, nodeID uint32) PipeWireAccess {
	if fd > 0 {
		return PipeWireAccess{Mode: CaptureModePipeWireFd, Fd: fd}
	}
	return PipeWireAccess{Mode: CaptureModePipeWireNodeID, NodeID: nodeID}
}

func createScreenCastSession(ctx context.Context, conn *dbus.Conn) (dbus.ObjectPath, error) {
	requestToken := uniqueToken("wrd_req")
	path := requestPath(conn, requestToken)
	ch, cleanup, err := subscribeResponse(conn, path)
	if err != nil {
		return "", wrderr.Wrap(wrderr.StrategyFailed, "subscribe CreateSession response", err)
	}
	defer cleanup()

	obj := conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(requestToken),
		"session_handle_token": dbus.MakeVariant(uniqueToken("wrd_sess")),
	}
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".CreateSession", 0, options).Store(&returnedPath); err != nil {
		return "", wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.CreateSession", err)
	}

	results, err := waitForResponse(ctx, ch)
	if err != nil {
		return "", wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.CreateSession response", err)
	}
	handle := resultString(results, "session_handle")
	if handle == "" {
		return "", wrderr.New(wrderr.PermissionDenied, "portal did not return a session_handle")
	}
	return dbus.ObjectPath(handle), nil
}

func selectSources(ctx context.Context, conn *dbus.Conn, session dbus.ObjectPath, restoreToken []byte) error {
	requestToken := uniqueToken("wrd_req")
	path := requestPath(conn, requestToken)
	ch, cleanup, err := subscribeResponse(conn, path)
	if err != nil {
		return wrderr.Wrap(wrderr.StrategyFailed, "subscribe SelectSources response", err)
	}
	defer cleanup()

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(requestToken),
		"types":        dbus.MakeVariant(portalSourceMonitor),
		"cursor_mode":  dbus.MakeVariant(portalCursorHidden),
	}
	if len(restoreToken) > 0 {
		options["persist_mode"] = dbus.MakeVariant(portalPersistModePersist)
		options["restore_token"] = dbus.MakeVariant(string(restoreToken))
	} else {
		options["persist_mode"] = dbus.MakeVariant(portalPersistModePersist)
	}

	obj := conn.Object(portalBus, portalPath)
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".SelectSources", 0, session, options).Store(&returnedPath); err != nil {
		return wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.SelectSources", err)
	}
	if _, err := waitForResponse(ctx, ch); err != nil {
		return wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.SelectSources response", err)
	}
	return nil
}

func startScreenCast(ctx context.Context, conn *dbus.Conn, session dbus.ObjectPath) (nodeID uint32, restoreToken []byte, err error) {
	requestToken := uniqueToken("wrd_req")
	path := requestPath(conn, requestToken)
	ch, cleanup, err := subscribeResponse(conn, path)
	if err != nil {
		return 0, nil, wrderr.Wrap(wrderr.StrategyFailed, "subscribe Start response", err)
	}
	defer cleanup()

	obj := conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{"handle_token": dbus.MakeVariant(requestToken)}
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".Start", 0, session, "", options).Store(&returnedPath); err != nil {
		return 0, nil, wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.Start", err)
	}

	results, err := waitForResponse(ctx, ch)
	if err != nil {
		return 0, nil, wrderr.Wrap(wrderr.PermissionDenied, "ScreenCast.Start response", err)
	}

	if rt := resultString(results, "restore_token"); rt != "" {
		restoreToken = []byte(rt)
	}

	streamsVariant, ok := results["streams"]
	if !ok {
		return 0, nil, wrderr.New(wrderr.PermissionDenied, "portal Start response missing streams")
	}
	nodeID, err = extractNodeID(streamsVariant.Value())
	if err != nil {
		return 0, nil, wrderr.Wrap(wrderr.PermissionDenied, "extract node id", err)
	}
	return nodeID, restoreToken, nil
}

func extractNodeID(v interface{}) (uint32, error) {
	switch streams := v.(type) {
	case [][]interface{}:
		if len(streams) == 0 || len(streams[0]) == 0 {
			return 0, fmt.Errorf("empty streams array")
		}
		if nid, ok := streams[0][0].(uint32); ok {
			return nid, nil
		}
	case []interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("empty streams array")
		}
		if inner, ok := streams[0].([]interface{}); ok && len(inner) > 0 {
			if nid, ok := inner[0].(uint32); ok {
				return nid, nil
			}
		}
		if nid, ok := streams[0].(uint32); ok {
			return nid, nil
		}
	}
	return 0, fmt.Errorf("unrecognized streams shape: %#v", v)
}

func openPipeWireRemote(conn *dbus.Conn, session dbus.ObjectPath) (int, error) {
	obj := conn.Object(portalBus, portalPath)
	var fd dbus.UnixFD
	if err := obj.Call(portalScreenCastIface+".OpenPipeWireRemote", 0, session, map[string]dbus.Variant{}).Store(&fd); err != nil {
		return 0, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}
	// D-Bus may close the fd it passed once the message is garbage
	// collected; dup it so the capture source can outlive that.
	dup, err := syscall.Dup(int(fd))
	if err != nil {
		return int(fd), nil
	}
	return dup, nil
}

func createRemoteDesktopSession(ctx context.Context, conn *dbus.Conn) (dbus.ObjectPath, error) {
	requestToken := uniqueToken("wrd_rd_req")
	path := requestPath(conn, requestToken)
	ch, cleanup, err := subscribeResponse(conn, path)
	if err != nil {
		return "", err
	}
	defer cleanup()

	obj := conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(requestToken),
		"session_handle_token": dbus.MakeVariant(uniqueToken("wrd_rd_sess")),
	}
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalRemoteDesktopIface+".CreateSession", 0, options).Store(&returnedPath); err != nil {
		return "", err
	}
	results, err := waitForResponse(ctx, ch)
	if err != nil {
		return "", err
	}
	handle := resultString(results, "session_handle")
	if handle == "" {
		return "", fmt.Errorf("no session_handle in RemoteDesktop.CreateSession response")
	}
	return dbus.ObjectPath(handle), nil
}

// portalHandle is the live session handle Create returns.
type portalHandle struct {
	mu           sync.Mutex
	conn         *dbus.Conn
	access       PipeWireAccess
	injector     input.Injector
	restoreToken []byte
	session      dbus.ObjectPath
	closed       bool
}

func (h *portalHandle) PipeWireAccess() PipeWireAccess { return h.access }
func (h *portalHandle) Injector() input.Injector       { return h.injector }

// RestoreToken returns the token the portal issued for this session,
// if any, so the session controller can persist it for next time.
func (h *portalHandle) RestoreToken() []byte { return h.restoreToken }

func (h *portalHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	_ = h.injector.Close()
	obj := h.conn.Object(portalBus, h.session)
	_ = obj.Call("org.freedesktop.portal.Session.Close", 0).Err
	return h.conn.Close()
}

// noopInjector is used when the portal RemoteDesktop interface is
// unavailable for a PortalToken session; capture still proceeds, input
// is simply not delivered through this strategy.
type noopInjector struct{}

func (noopInjector) KeyEvent(context.Context, uint32, bool, bool) error          { return nil }
func (noopInjector) PointerMotion(context.Context, int32, int32) error           { return nil }
func (noopInjector) PointerMotionAbsolute(context.Context, int32, int32) error   { return nil }
func (noopInjector) PointerButton(context.Context, input.MouseButton, bool) error { return nil }
func (noopInjector) PointerAxis(context.Context, int32, int32) error             { return nil }
func (noopInjector) Close() error                                               { return nil }
