package strategy

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

const (
	mutterRemoteDesktopBus          = "org.gnome.Mutter.RemoteDesktop"
	mutterRemoteDesktopPath         = "/org/gnome/Mutter/RemoteDesktop"
	mutterRemoteDesktopIface        = "org.gnome.Mutter.RemoteDesktop"
	mutterRemoteDesktopSessionIface = "org.gnome.Mutter.RemoteDesktop.Session"

	mutterScreenCastBus          = "org.gnome.Mutter.ScreenCast"
	mutterScreenCastPath         = "/org/gnome/Mutter/ScreenCast"
	mutterScreenCastIface        = "org.gnome.Mutter.ScreenCast"
	mutterScreenCastSessionIface = "org.gnome.Mutter.ScreenCast.Session"
	mutterScreenCastStreamIface  = "org.gnome.Mutter.ScreenCast.Stream"
)

// MutterDirect drives GNOME's private Mutter RemoteDesktop/ScreenCast
// D-Bus interfaces directly: no portal consent dialog, because it
// requires privileged bus access only granted to trusted unsandboxed
// processes. Grounded end-to-end on the teacher's createSession/
// startSession pair.
type MutterDirect struct {
	logger  *slog.Logger
	layout  input.MonitorLayout
	monitor string // Mutter connector name to record, e.g. "Meta-0"
}

func NewMutterDirect(logger *slog.Logger, layout input.MonitorLayout, monitor string) *MutterDirect {
	if monitor == "" {
		monitor = "Meta-0"
	}
	return &MutterDirect{logger: logger, layout: layout, monitor: monitor}
}

func (m *MutterDirect) Kind() Kind { return KindMutterDirect }

// Create ignores restoreToken: Mutter direct access has no consent
// dialog to skip in the first place.
func (m *MutterDirect) Create(ctx context.Context, _ []byte) (Handle, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, wrderr.Wrap(wrderr.StrategyFailed, "connect session bus", err)
	}

	rdSessionPath, err := m.createRemoteDesktopSession(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	scStreamPath, err := m.createLinkedScreenCastSession(conn, rdSessionPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	nodeID, err := m.start(ctx, conn, rdSessionPath, scStreamPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	injector := input.NewMutterInjector(conn, rdSessionPath, m.layout)

	return &mutterHandle{
		conn:     conn,
		nodeID:   nodeID,
		injector: injector,
		session:  rdSessionPath,
	}, nil
}

func (m *MutterDirect) createRemoteDesktopSession(conn *dbus.Conn) (dbus.ObjectPath, error) {
	obj := conn.Object(mutterRemoteDesktopBus, mutterRemoteDesktopPath)
	var session dbus.ObjectPath
	if err := obj.Call(mutterRemoteDesktopIface+".CreateSession", 0).Store(&session); err != nil {
		return "", wrderr.Wrap(wrderr.PermissionDenied, "Mutter RemoteDesktop.CreateSession", err)
	}
	return session, nil
}

func (m *MutterDirect) createLinkedScreenCastSession(conn *dbus.Conn, rdSession dbus.ObjectPath) (dbus.ObjectPath, error) {
	sessionID := string(rdSession)
	if idx := strings.LastIndex(sessionID, "/"); idx >= 0 {
		sessionID = sessionID[idx+1:]
	}

	scObj := conn.Object(mutterScreenCastBus, mutterScreenCastPath)
	options := map[string]dbus.Variant{"remote-desktop-session-id": dbus.MakeVariant(sessionID)}
	var scSession dbus.ObjectPath
	if err := scObj.Call(mutterScreenCastIface+".CreateSession", 0, options).Store(&scSession); err != nil {
		return "", wrderr.Wrap(wrderr.PermissionDenied, "Mutter ScreenCast.CreateSession", err)
	}

	streamObj := conn.Object(mutterScreenCastBus, scSession)
	recordOptions := map[string]dbus.Variant{"cursor-mode": dbus.MakeVariant(uint32(1))}
	var streamPath dbus.ObjectPath
	if err := streamObj.Call(mutterScreenCastSessionIface+".RecordMonitor", 0, m.monitor, recordOptions).Store(&streamPath); err != nil {
		return "", wrderr.Wrap(wrderr.PermissionDenied, "Mutter ScreenCast.RecordMonitor", err)
	}
	return streamPath, nil
}

func (m *MutterDirect) start(ctx context.Context, conn *dbus.Conn, rdSession, scStream dbus.ObjectPath) (uint32, error) {
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(scStream),
		dbus.WithMatchInterface(mutterScreenCastStreamIface),
		dbus.WithMatchMember("PipeWireStreamAdded"),
	); err != nil {
		return 0, wrderr.Wrap(wrderr.StrategyFailed, "subscribe PipeWireStreamAdded", err)
	}
	signalChan := make(chan *dbus.Signal, 10)
	conn.Signal(signalChan)
	defer conn.RemoveSignal(signalChan)

	rdObj := conn.Object(mutterRemoteDesktopBus, rdSession)
	if err := rdObj.Call(mutterRemoteDesktopSessionIface+".Start", 0).Err; err != nil {
		return 0, wrderr.Wrap(wrderr.PermissionDenied, "Mutter RemoteDesktop.Session.Start", err)
	}

	timeout := time.After(10 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case sig := <-signalChan:
			if sig.Name == mutterScreenCastStreamIface+".PipeWireStreamAdded" && len(sig.Body) > 0 {
				if nodeID, ok := sig.Body[0].(uint32); ok {
					return nodeID, nil
				}
			}
		case <-timeout:
			return 0, wrderr.New(wrderr.PermissionDenied, "timeout waiting for PipeWireStreamAdded")
		}
	}
}

type mutterHandle struct {
	mu       sync.Mutex
	conn     *dbus.Conn
	nodeID   uint32
	injector input.Injector
	session  dbus.ObjectPath
	closed   bool
}

func (h *mutterHandle) PipeWireAccess() PipeWireAccess {
	return PipeWireAccess{Mode: CaptureModePipeWireNodeID, NodeID: h.nodeID}
}
func (h *mutterHandle) Injector() input.Injector       { return h.injector }

func (h *mutterHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	_ = h.injector.Close()
	obj := h.conn.Object(mutterRemoteDesktopBus, h.session)
	_ = obj.Call(mutterRemoteDesktopSessionIface+".Stop", 0).Err
	return h.conn.Close()
}
