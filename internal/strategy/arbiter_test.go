package strategy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/input"
)

func TestArbiterFallsThroughWhenEveryCandidateGated(t *testing.T) {
	registry := capability.New(slog.Default())
	// A fresh, unprobed registry reports Unavailable for every tag, so
	// every candidate must be gated out and Select must report failure
	// rather than panicking or blocking.
	arbiter := NewArbiter(registry, slog.Default(), input.MonitorLayout{}, 1920, 1080, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	handle, attempts, err := arbiter.Select(ctx, nil)
	if handle != nil {
		t.Fatalf("expected no handle, got %v", handle)
	}
	if err == nil {
		t.Fatal("expected an error when every candidate is gated")
	}
	if len(attempts) == 0 {
		t.Fatal("expected at least one recorded attempt explaining why")
	}
}

func TestArbiterCandidateOrderGNOME(t *testing.T) {
	registry := capability.New(slog.Default())
	arbiter := NewArbiter(registry, slog.Default(), input.MonitorLayout{}, 1920, 1080, "")

	cs := arbiter.candidates(capability.DeploymentContext{Compositor: capability.CompositorGNOME})
	if len(cs) == 0 || cs[0].strategy.Kind() != KindMutterDirect {
		t.Fatalf("expected MutterDirect first on GNOME, got %+v", cs)
	}
	last := cs[len(cs)-1]
	if last.strategy.Kind() != KindPortalToken {
		t.Fatalf("expected PortalToken as universal fallback last, got %v", last.strategy.Kind())
	}
}

func TestArbiterCandidateOrderSwayNonSandboxed(t *testing.T) {
	registry := capability.New(slog.Default())
	arbiter := NewArbiter(registry, slog.Default(), input.MonitorLayout{}, 1920, 1080, "")

	cs := arbiter.candidates(capability.DeploymentContext{Compositor: capability.CompositorSway, Sandbox: capability.SandboxNone})
	if cs[0].strategy.Kind() != KindWlrDirect {
		t.Fatalf("expected WlrDirect first on non-sandboxed Sway, got %+v", cs)
	}
}

func TestArbiterSkipsWlrDirectWhenSandboxed(t *testing.T) {
	registry := capability.New(slog.Default())
	arbiter := NewArbiter(registry, slog.Default(), input.MonitorLayout{}, 1920, 1080, "")

	cs := arbiter.candidates(capability.DeploymentContext{Compositor: capability.CompositorSway, Sandbox: capability.SandboxFlatpak})
	for _, c := range cs {
		if c.strategy.Kind() == KindWlrDirect {
			t.Fatalf("WlrDirect must not be offered when sandboxed")
		}
	}
}
