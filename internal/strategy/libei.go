package strategy

import (
	"context"
	"log/slog"

	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// LibEi captures via the portal ScreenCast (same as PortalToken) but
// injects input through an EIS seat instead of portal RemoteDesktop.
// No Go libei/EIS client binding exists in the reference corpus, so
// Create always fails with CapabilityMissing; the arbiter's priority
// list (spec.md §4.4) only reaches LibEi after MutterDirect/WlrDirect,
// and falls through to PortalToken when it reports this. See
// internal/input/libei.go for the same honesty-over-fabrication
// decision applied at the injector level.
type LibEi struct {
	logger *slog.Logger
	layout input.MonitorLayout
}

func NewLibEi(logger *slog.Logger, layout input.MonitorLayout) *LibEi {
	return &LibEi{logger: logger, layout: layout}
}

func (l *LibEi) Kind() Kind { return KindLibEi }

func (l *LibEi) Create(ctx context.Context, restoreToken []byte) (Handle, error) {
	return nil, wrderr.New(wrderr.CapabilityMissing, "no libei/EIS client binding available")
}
