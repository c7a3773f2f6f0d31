package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
)

// probeIntrospectable reports Guaranteed if the given bus name exposes
// path, Unavailable otherwise. gnomeHint pre-biases the diagnostic.
func probeIntrospectable(ctx context.Context, conn *dbus.Conn, busName, path string, gnomeHint bool) Entry {
	if conn == nil {
		return Entry{Level: Unavailable, Diagnostic: "no session bus connection"}
	}
	cctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	obj := conn.Object(busName, dbus.ObjectPath(path))
	call := obj.CallWithContext(cctx, introspectableIface+".Introspect", 0)
	if call.Err != nil {
		diag := fmt.Sprintf("%s not reachable: %v", busName, call.Err)
		if gnomeHint {
			diag += " (install gnome-shell / mutter, or check XDG_CURRENT_DESKTOP)"
		}
		return Entry{Level: Unavailable, Diagnostic: diag}
	}
	return Entry{Level: Guaranteed, Variant: &Variant{Name: busName}}
}

// probeCompositorType classifies the compositor from env hints first,
// falling back to a D-Bus introspection probe of Mutter's ScreenCast
// interface when the environment is ambiguous.
func probeCompositorType(ctx context.Context, conn *dbus.Conn, deploy DeploymentContext) Entry {
	if deploy.Compositor != CompositorUnknown {
		return Entry{Level: Guaranteed, Variant: &Variant{Name: deploy.Compositor.String()}}
	}
	e := probeIntrospectable(ctx, conn, mutterScreenCastBus, mutterScreenCastPath, false)
	if e.Level == Guaranteed {
		return Entry{Level: BestEffort, Variant: &Variant{Name: "gnome"}, Diagnostic: "detected via D-Bus introspection fallback"}
	}
	return Entry{Level: Unavailable, Diagnostic: "could not determine compositor from environment or D-Bus"}
}

// probePortalVersion reads the portal interface's "version" property.
// Presence of the method/property is the sole reliable signal; version
// strings are never used to infer unrelated capabilities (e.g. EIS).
func probePortalVersion(ctx context.Context, conn *dbus.Conn, iface string) Entry {
	if conn == nil {
		return Entry{Level: Unavailable, Diagnostic: "no session bus connection"}
	}
	cctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	obj := conn.Object(portalBus, dbus.ObjectPath(portalPath))
	var version dbus.Variant
	err := obj.CallWithContext(cctx, portalPropsIface+".Get", 0, iface, "version").Store(&version)
	if err != nil {
		return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("%s.version unreadable: %v (is xdg-desktop-portal running?)", iface, err)}
	}
	v, _ := version.Value().(uint32)
	level := BestEffort
	if v >= 4 {
		level = Guaranteed
	}
	return Entry{Level: level, Variant: &Variant{Name: iface, Data: map[string]string{"version": fmt.Sprintf("%d", v)}}}
}

// probeLibei checks whether the RemoteDesktop portal actually exposes
// ConnectToEIS as a method; that is the only signal used, never a
// version number, per the Open Question resolution in SPEC_FULL.md.
func probeLibei(ctx context.Context, conn *dbus.Conn) Entry {
	if conn == nil {
		return Entry{Level: Unavailable, Diagnostic: "no session bus connection"}
	}
	cctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	obj := conn.Object(portalBus, dbus.ObjectPath(portalPath))
	var xml string
	if err := obj.CallWithContext(cctx, introspectableIface+".Introspect", 0).Store(&xml); err != nil {
		return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("portal introspection failed: %v", err)}
	}
	if strings.Contains(xml, "ConnectToEIS") {
		return Entry{Level: BestEffort, Variant: &Variant{Name: "eis"}}
	}
	return Entry{Level: Unavailable, Diagnostic: "portal RemoteDesktop does not expose ConnectToEIS"}
}

func probeWlrProtocol(deploy DeploymentContext) Entry {
	if deploy.Sandbox != SandboxNone {
		return Entry{Level: Unavailable, Diagnostic: "sandboxed (Flatpak/Snap): wlroots protocols are not exposed through the sandbox"}
	}
	if deploy.Compositor == CompositorSway || deploy.Compositor == CompositorHyprland {
		return Entry{Level: BestEffort, Variant: &Variant{Name: deploy.Compositor.String()}}
	}
	return Entry{Level: Unavailable, Diagnostic: "not a wlroots-family compositor"}
}

func probePipeWire() Entry {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return Entry{Level: Unavailable, Diagnostic: "XDG_RUNTIME_DIR not set"}
	}
	candidates := []string{"pipewire-0", "pipewire-0-manager"}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(runtimeDir, c)); err == nil {
			return Entry{Level: Guaranteed, Variant: &Variant{Name: c}}
		}
	}
	return Entry{Level: Unavailable, Diagnostic: "no pipewire socket found in XDG_RUNTIME_DIR (install/start pipewire)"}
}

func probeDmaBuf() Entry {
	entries, err := os.ReadDir("/dev/dri")
	if err != nil {
		return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("/dev/dri unreadable: %v", err)}
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "renderD") {
			return Entry{Level: BestEffort, Variant: &Variant{Name: e.Name()}}
		}
	}
	return Entry{Level: Unavailable, Diagnostic: "no render nodes found under /dev/dri"}
}

func probeDeviceGlob(dir, prefix string) Entry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("%s unreadable: %v", dir, err)}
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			return Entry{Level: BestEffort, Variant: &Variant{Name: e.Name()}}
		}
	}
	return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("no %s* device found under %s", prefix, dir)}
}

func probeCredentialBackend(kind string, conn *dbus.Conn, deploy DeploymentContext) Entry {
	switch kind {
	case "secret-service":
		if conn == nil {
			return Entry{Level: Unavailable, Diagnostic: "no session bus connection"}
		}
		cctx, cancel := context.WithTimeout(context.Background(), ProbeTimeout)
		defer cancel()
		obj := conn.Object(secretServiceBus, "/org/freedesktop/secrets")
		if err := obj.CallWithContext(cctx, introspectableIface+".Introspect", 0).Err; err != nil {
			return Entry{Level: Unavailable, Diagnostic: fmt.Sprintf("secret service not reachable: %v", err)}
		}
		return Entry{Level: Guaranteed}
	case "tpm":
		if _, err := os.Stat("/dev/tpmrm0"); err != nil {
			return Entry{Level: Unavailable, Diagnostic: "/dev/tpmrm0 not present"}
		}
		return Entry{Level: BestEffort}
	case "encrypted-file":
		return Entry{Level: Guaranteed}
	case "flatpak-portal":
		if deploy.Sandbox != SandboxFlatpak {
			return Entry{Level: Unavailable, Diagnostic: "not running under Flatpak"}
		}
		return Entry{Level: BestEffort}
	default:
		return Entry{Level: Unavailable, Diagnostic: "unknown backend kind"}
	}
}

// derivePersistence folds portal restore-token support into a single
// capability: persistence requires portal ScreenCast v4+.
func derivePersistence(portalScreenCast Entry) Entry {
	// probePortalVersion grades v4+ as Guaranteed and older versions as
	// BestEffort, so only Guaranteed means restore tokens exist.
	if portalScreenCast.Level == Guaranteed {
		return Entry{Level: Guaranteed, Diagnostic: "restore tokens available via portal v4+"}
	}
	return Entry{Level: Unavailable, Diagnostic: "portal ScreenCast does not support restore tokens (v4+ required)"}
}

// deriveUnattended is Guaranteed only when some path to zero-dialog
// reconnect exists: Mutter (no dialog ever) or portal persistence.
func deriveUnattended(entries map[Tag]Entry) Entry {
	if entries[MutterRemoteDesktop].Level >= BestEffort {
		return Entry{Level: Guaranteed, Diagnostic: "Mutter direct D-Bus requires no user dialog"}
	}
	if entries[SessionPersistence].Level >= BestEffort {
		return Entry{Level: BestEffort, Diagnostic: "portal restore token enables no-dialog reconnect after first grant"}
	}
	return Entry{Level: Unavailable, Diagnostic: "no unattended-capable path detected"}
}
