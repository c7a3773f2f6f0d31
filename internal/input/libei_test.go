package input

import (
	"context"
	"testing"

	"github.com/wrd-project/wrd-server/internal/wrderr"
)

func TestLibEiInjectorReportsCapabilityMissing(t *testing.T) {
	_, err := NewLibEiInjector()
	if err == nil {
		t.Fatal("expected an error from NewLibEiInjector")
	}
	if !wrderr.Is(err, wrderr.CapabilityMissing) {
		t.Fatalf("expected CapabilityMissing kind, got %v", wrderr.KindOf(err))
	}

	var l *LibEiInjector
	if err := l.KeyEvent(context.Background(), 0x1E, false, true); !wrderr.Is(err, wrderr.CapabilityMissing) {
		t.Fatalf("expected CapabilityMissing from KeyEvent, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close on nil-backed injector should be a no-op, got %v", err)
	}
}
