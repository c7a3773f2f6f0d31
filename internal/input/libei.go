package input

import (
	"context"

	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// LibEiInjector is meant to post events to an EIS seat's keyboard and
// pointer devices over libei. No Go binding for libei/EIS exists
// anywhere in the reference corpus this repo was grounded on, and one
// is not fabricated here: every method returns CapabilityMissing so
// the strategy arbiter (which only selects LibEi when the
// LibeiInput capability probe already reports better than
// Unavailable) falls through to PortalToken rather than silently
// dropping input.
type LibEiInjector struct{}

func NewLibEiInjector() (*LibEiInjector, error) {
	return nil, wrderr.New(wrderr.CapabilityMissing, "no libei/EIS client binding available")
}

func (l *LibEiInjector) KeyEvent(context.Context, uint32, bool, bool) error {
	return wrderr.New(wrderr.CapabilityMissing, "libei not available")
}

func (l *LibEiInjector) PointerMotion(context.Context, int32, int32) error {
	return wrderr.New(wrderr.CapabilityMissing, "libei not available")
}

func (l *LibEiInjector) PointerMotionAbsolute(context.Context, int32, int32) error {
	return wrderr.New(wrderr.CapabilityMissing, "libei not available")
}

func (l *LibEiInjector) PointerButton(context.Context, MouseButton, bool) error {
	return wrderr.New(wrderr.CapabilityMissing, "libei not available")
}

func (l *LibEiInjector) PointerAxis(context.Context, int32, int32) error {
	return wrderr.New(wrderr.CapabilityMissing, "libei not available")
}

func (l *LibEiInjector) Close() error { return nil }
