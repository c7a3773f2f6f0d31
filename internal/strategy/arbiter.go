package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// candidate pairs a strategy with the capability tag that must clear
// BestEffort before the arbiter will even attempt Create.
type candidate struct {
	strategy Strategy
	gate     capability.Tag
}

// Attempt records one strategy's outcome, kept for diagnostics surfaced
// to the client when every candidate fails.
type Attempt struct {
	Kind  Kind
	Error error
}

// Arbiter selects the highest-guarantee viable strategy at startup,
// per spec.md §4.4's priority list, and falls back on a strategy's
// Create failure. Grounded on the teacher's GNOME/Sway/unknown
// branching in Server.Run, generalized into a data-driven candidate
// list plus bounded per-strategy retry via retry-go.
type Arbiter struct {
	registry *capability.Registry
	logger   *slog.Logger

	mutter *MutterDirect
	wlr    *WlrDirect
	libei  *LibEi
	portal *PortalToken
}

// NewArbiter builds every strategy variant against the same
// registry/layout so Select can try them in priority order.
func NewArbiter(registry *capability.Registry, logger *slog.Logger, layout input.MonitorLayout, screenWidth, screenHeight int, mutterMonitor string) *Arbiter {
	return &Arbiter{
		registry: registry,
		logger:   logger,
		mutter:   NewMutterDirect(logger, layout, mutterMonitor),
		wlr:      NewWlrDirect(logger, layout, screenWidth, screenHeight),
		libei:    NewLibEi(logger, layout),
		portal:   NewPortalToken(logger, layout),
	}
}

func (a *Arbiter) candidates(deploy capability.DeploymentContext) []candidate {
	var cs []candidate
	if deploy.Compositor == capability.CompositorGNOME {
		cs = append(cs, candidate{a.mutter, capability.MutterRemoteDesktop})
	}
	if deploy.Compositor != capability.CompositorGNOME && deploy.Sandbox == capability.SandboxNone {
		cs = append(cs, candidate{a.wlr, capability.WlrDirectInput})
	}
	if deploy.Compositor != capability.CompositorGNOME {
		cs = append(cs, candidate{a.libei, capability.LibeiInput})
	}
	cs = append(cs, candidate{a.portal, capability.PortalScreencastVersion})
	return cs
}

// Select tries each viable candidate in priority order, retrying an
// individual strategy's Create a bounded number of times before moving
// on, and returns the first live Handle. restoreToken is only
// consulted by PortalToken.
func (a *Arbiter) Select(ctx context.Context, restoreToken []byte) (Handle, []Attempt, error) {
	var attempts []Attempt

	for _, c := range a.candidates(a.registry.DeploymentContext()) {
		if a.registry.Level(c.gate) < capability.BestEffort {
			attempts = append(attempts, Attempt{Kind: c.strategy.Kind(), Error: wrderr.New(wrderr.CapabilityMissing, fmt.Sprintf("%s below best_effort", c.gate))})
			continue
		}

		handle, err := a.createWithRetry(ctx, c.strategy, restoreToken)
		if err == nil {
			a.logger.Info("strategy selected", "kind", c.strategy.Kind())
			return handle, attempts, nil
		}
		a.logger.Warn("strategy create failed, falling back", "kind", c.strategy.Kind(), "error", err)
		attempts = append(attempts, Attempt{Kind: c.strategy.Kind(), Error: err})
	}

	return nil, attempts, wrderr.New(wrderr.StrategyFailed, "no viable session strategy succeeded")
}

func (a *Arbiter) createWithRetry(ctx context.Context, s Strategy, restoreToken []byte) (Handle, error) {
	var handle Handle
	err := retry.Do(
		func() error {
			h, err := s.Create(ctx, restoreToken)
			if err != nil {
				return err
			}
			handle = h
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// A structural mismatch or a missing capability will never
			// succeed on retry; only transient PermissionDenied/
			// StrategyFailed causes are worth a second attempt.
			kind := wrderr.KindOf(err)
			return kind == wrderr.StrategyFailed || kind == wrderr.PermissionDenied
		}),
	)
	return handle, err
}
