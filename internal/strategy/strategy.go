// Package strategy implements the four mutually exclusive ways of
// obtaining screen capture and input injection from a Wayland
// compositor (spec.md §4.3), and the arbiter that picks among them.
package strategy

import (
	"context"
	"fmt"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/input"
)

// CaptureMode distinguishes how the capture source should obtain
// frames: through PipeWire (by inherited fd or session-bus node id) or
// directly through the wlr-screencopy protocol, which bypasses
// PipeWire entirely.
type CaptureMode int

const (
	CaptureModePipeWireFd CaptureMode = iota
	CaptureModePipeWireNodeID
	CaptureModeWlrScreencopy
)

// PipeWireAccess is how the capture source should connect to its
// frame source: by inherited file descriptor (Portal/LibEi), by node
// id on the session bus (Mutter), or directly via wlr-screencopy
// (WlrDirect, no PipeWire connection at all).
type PipeWireAccess struct {
	Mode   CaptureMode
	Fd     int
	NodeID uint32
}

// Handle is a live session produced by a Strategy's Create. Close must
// be safe to call multiple times and from a deferred cleanup path.
type Handle interface {
	PipeWireAccess() PipeWireAccess
	Injector() input.Injector
	Close() error
}

// Kind names a strategy variant for logging, arbiter fallback records,
// and capability variant tagging.
type Kind string

const (
	KindMutterDirect Kind = "mutter_direct"
	KindWlrDirect    Kind = "wlr_direct"
	KindLibEi        Kind = "libei"
	KindPortalToken  Kind = "portal_token"
)

// Strategy is the common contract every variant implements.
type Strategy interface {
	Kind() Kind
	// Create yields a live session. restoreToken may be nil. Failures
	// are classified via wrderr.Kind: the arbiter retries a
	// StrategyFailed or PermissionDenied failure once, and on any
	// remaining failure falls back to the next candidate.
	Create(ctx context.Context, restoreToken []byte) (Handle, error)
}

// ErrUnsupported describes a variant that the current
// DeploymentContext/CapabilityMap rules out entirely (not a runtime
// Create failure, a structural mismatch — e.g. asking for MutterDirect
// on Sway). No constructor in this package returns it; the arbiter
// rules such variants out through its candidate list instead.
type ErrUnsupported struct {
	Kind   Kind
	Reason string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("strategy %s unsupported: %s", e.Kind, e.Reason)
}

// RestoreTokenProvider is implemented by strategies that can emit a
// new restore token from a just-completed Create call (currently only
// PortalToken — the others have no consent dialog to skip).
type RestoreTokenProvider interface {
	RestoreToken() []byte
}

// Dependencies bundles the capability registry and deployment context.
// Neither the variant constructors nor NewArbiter take it; NewArbiter
// receives the registry and layout as separate arguments.
type Dependencies struct {
	Registry *capability.Registry
	Deploy   capability.DeploymentContext
}
