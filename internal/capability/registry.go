package capability

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	portalBus            = "org.freedesktop.portal.Desktop"
	portalPath           = "/org/freedesktop/portal/desktop"
	portalPropsIface     = "org.freedesktop.DBus.Properties"
	introspectableIface  = "org.freedesktop.DBus.Introspectable"
	mutterScreenCastBus  = "org.gnome.Mutter.ScreenCast"
	mutterScreenCastPath = "/org/gnome/Mutter/ScreenCast"
	mutterRemoteDeskBus  = "org.gnome.Mutter.RemoteDesktop"
	secretServiceBus     = "org.freedesktop.secrets"
)

// Registry is an immutable, once-built CapabilityMap. It is safe for
// concurrent reads from any number of goroutines; it is never mutated
// after Probe returns except by an explicit Invalidate+re-Probe cycle.
type Registry struct {
	mu      sync.RWMutex
	entries map[Tag]Entry
	deploy  DeploymentContext
	logger  *slog.Logger
}

// New creates an empty registry. Call Probe to populate it.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{entries: make(map[Tag]Entry), logger: logger}
}

// Probe performs one-shot introspection of the host and (re)populates
// the registry. A failure probing any single capability is recorded as
// Unavailable with a diagnostic and never aborts the rest of the probe.
func (r *Registry) Probe(ctx context.Context) error {
	entries := make(map[Tag]Entry, len(AllStaticTags())+4)

	deploy := detectDeploymentContext()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		r.logger.Warn("session bus unavailable during capability probe", "err", err)
		conn = nil
	} else {
		defer conn.Close()
	}

	entries[CompositorType] = probeCompositorType(ctx, conn, deploy)
	entries[PortalScreencastVersion] = probePortalVersion(ctx, conn, "org.freedesktop.portal.ScreenCast")
	entries[PortalRemoteDesktopVersion] = probePortalVersion(ctx, conn, "org.freedesktop.portal.RemoteDesktop")
	entries[MutterRemoteDesktop] = probeIntrospectable(ctx, conn, mutterRemoteDeskBus, "/org/gnome/Mutter/RemoteDesktop", deploy.Compositor == CompositorGNOME)
	entries[WlrScreencopy] = probeWlrProtocol(deploy)
	entries[WlrDirectInput] = probeWlrProtocol(deploy)
	entries[LibeiInput] = probeLibei(ctx, conn)
	entries[PipeWire] = probePipeWire()
	entries[DmaBuf] = probeDmaBuf()
	entries[HardwareEncodeVaapi] = probeDeviceGlob("/dev/dri", "renderD")
	entries[HardwareEncodeNvenc] = probeDeviceGlob("/dev", "nvidia")
	entries[SessionPersistence] = derivePersistence(entries[PortalScreencastVersion])
	entries[UnattendedAccess] = deriveUnattended(entries)

	for _, kind := range []string{"secret-service", "tpm", "encrypted-file", "flatpak-portal"} {
		entries[CredentialBackendTag(kind)] = probeCredentialBackend(kind, conn, deploy)
	}

	r.mu.Lock()
	r.entries = entries
	r.deploy = deploy
	r.mu.Unlock()
	return nil
}

// Invalidate clears the registry; the next Probe call rebuilds it from
// scratch. Capabilities are otherwise immutable between Probe calls.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.entries = make(map[Tag]Entry)
	r.mu.Unlock()
}

// Level returns the ServiceLevel for tag, or Unavailable if never probed.
func (r *Registry) Level(tag Tag) ServiceLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[tag].Level
}

// Variant returns the detected Variant for tag, if any.
func (r *Registry) Variant(tag Tag) *Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[tag].Variant
}

// Diagnostic returns the diagnostic string for tag, if any.
func (r *Registry) Diagnostic(tag Tag) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[tag].Diagnostic
}

// DeploymentContext returns the detected deployment context.
func (r *Registry) DeploymentContext() DeploymentContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deploy
}

// Snapshot returns a defensive copy of the full map, useful for
// --show-capabilities style diagnostics.
func (r *Registry) Snapshot() map[Tag]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Tag]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

func detectDeploymentContext() DeploymentContext {
	desktop := os.Getenv("XDG_CURRENT_DESKTOP")
	session := os.Getenv("DESKTOP_SESSION")
	upper := strings.ToUpper(desktop)

	ctx := DeploymentContext{SessionType: SessionTypeUnknown}

	switch {
	case strings.Contains(upper, "GNOME") || os.Getenv("GNOME_DESKTOP_SESSION_ID") != "":
		ctx.Compositor = CompositorGNOME
	case strings.Contains(upper, "SWAY") || os.Getenv("SWAYSOCK") != "":
		ctx.Compositor = CompositorSway
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		ctx.Compositor = CompositorHyprland
	case strings.Contains(upper, "KDE") || os.Getenv("KDE_FULL_SESSION") != "" || strings.Contains(strings.ToLower(session), "plasma"):
		ctx.Compositor = CompositorKDE
	default:
		ctx.Compositor = CompositorUnknown
	}

	if os.Getenv("WAYLAND_DISPLAY") != "" {
		ctx.SessionType = SessionTypeWayland
	}
	if os.Getenv("XDG_SESSION_TYPE") == "wayland" {
		ctx.SessionType = SessionTypeWayland
	}

	switch {
	case os.Getenv("FLATPAK_ID") != "":
		ctx.Sandbox = SandboxFlatpak
	case os.Getenv("SNAP") != "":
		ctx.Sandbox = SandboxSnap
	default:
		ctx.Sandbox = SandboxNone
	}

	return ctx
}
