package encoder

import (
	"context"
	"log/slog"
	"testing"
)

func TestAVC444SkipsAuxWhenChromaStableAndWithinInterval(t *testing.T) {
	main := &fakeBackend{label: "main"}
	aux := &fakeBackend{label: "aux"}
	enc := NewAVC444Encoder(main, aux, 0.1, 30, slog.Default())

	unit, err := enc.Encode(context.Background(), testFrame(), testFrame(), false, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Aux != nil {
		t.Fatalf("expected aux to be omitted, got %v", unit.Aux)
	}
	if aux.encodes != 0 {
		t.Fatalf("expected aux backend untouched, got %d calls", aux.encodes)
	}
}

func TestAVC444SendsAuxWhenChromaChangedBeyondThreshold(t *testing.T) {
	main := &fakeBackend{label: "main"}
	aux := &fakeBackend{label: "aux"}
	enc := NewAVC444Encoder(main, aux, 0.1, 30, slog.Default())

	unit, err := enc.Encode(context.Background(), testFrame(), testFrame(), false, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Aux == nil {
		t.Fatal("expected aux to be sent when chroma changed beyond threshold")
	}
}

func TestAVC444AlwaysSendsAuxOnMainIDR(t *testing.T) {
	main := &fakeBackend{label: "main"}
	aux := &fakeBackend{label: "aux"}
	enc := NewAVC444Encoder(main, aux, 0.9, 1000, slog.Default())

	// forceIDR=true makes main's fake backend report IsKeyframe=true.
	unit, err := enc.Encode(context.Background(), testFrame(), testFrame(), true, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Aux == nil {
		t.Fatal("expected every main IDR to force an aux frame")
	}
}

func TestAVC444SendsAuxAfterMaxInterval(t *testing.T) {
	main := &fakeBackend{label: "main"}
	aux := &fakeBackend{label: "aux"}
	enc := NewAVC444Encoder(main, aux, 0.9, 2, slog.Default())

	for i := 0; i < 2; i++ {
		unit, err := enc.Encode(context.Background(), testFrame(), testFrame(), false, 0.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if unit.Aux != nil {
			t.Fatalf("did not expect aux before max interval elapsed, iteration %d", i)
		}
	}

	unit, err := enc.Encode(context.Background(), testFrame(), testFrame(), false, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Aux == nil {
		t.Fatal("expected aux to be sent once max interval elapsed")
	}
}
