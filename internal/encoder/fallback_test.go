package encoder

import (
	"context"
	"log/slog"
	"testing"

	"github.com/wrd-project/wrd-server/internal/capture"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// fakeBackend is a minimal in-memory Backend for testing orchestration
// logic (fallback, AVC444 aux policy) without a GStreamer runtime.
type fakeBackend struct {
	label     string
	failNext  int // number of upcoming Encode calls that should fail
	failKind  wrderr.Kind
	encodes   int
	closed    bool
	lastForce bool
}

func (f *fakeBackend) Encode(ctx context.Context, frame *capture.VideoFrame, forceIDR bool) ([]EncodedUnit, error) {
	f.encodes++
	f.lastForce = forceIDR
	if f.failNext > 0 {
		f.failNext--
		kind := f.failKind
		if kind == "" {
			kind = wrderr.TransientEncode
		}
		return nil, wrderr.New(kind, f.label+" simulated failure")
	}
	return []EncodedUnit{{Type: NALUnitTypeSlice, Data: []byte{0x01}, IsKeyframe: forceIDR}}, nil
}
func (f *fakeBackend) Reconfigure(Config) error { return nil }
func (f *fakeBackend) ForceKeyframe()           {}
func (f *fakeBackend) Stats() Stats             { return Stats{Backend: f.label, FramesEncoded: uint64(f.encodes)} }
func (f *fakeBackend) Close() error             { f.closed = true; return nil }

func testFrame() *capture.VideoFrame {
	return capture.NewFrame("s1", []byte{1, 2, 3, 4}, 2, 1, 8, capture.FormatBGRA, 0)
}

func TestHardwareFallbackUsesHardwareWhenHealthy(t *testing.T) {
	hw := &fakeBackend{label: "hw"}
	sw := &fakeBackend{label: "sw"}
	fb := NewHardwareFallback(hw, sw, slog.Default())

	_, err := fb.Encode(context.Background(), testFrame(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw.encodes != 1 || sw.encodes != 0 {
		t.Fatalf("expected hardware to serve the frame, got hw=%d sw=%d", hw.encodes, sw.encodes)
	}
}

func TestHardwareFallbackFirstFailureUsesSoftwareButKeepsHardware(t *testing.T) {
	hw := &fakeBackend{label: "hw", failNext: 1}
	sw := &fakeBackend{label: "sw"}
	fb := NewHardwareFallback(hw, sw, slog.Default())

	_, err := fb.Encode(context.Background(), testFrame(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw.encodes != 1 {
		t.Fatalf("expected software to serve the failed frame, got %d", sw.encodes)
	}

	// Hardware recovers; next call should go back to hardware.
	_, err = fb.Encode(context.Background(), testFrame(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw.encodes != 2 {
		t.Fatalf("expected hardware to serve the recovered frame, got %d", hw.encodes)
	}
}

func TestHardwareFallbackSecondConsecutiveFailureDowngradesPermanently(t *testing.T) {
	hw := &fakeBackend{label: "hw", failNext: 2}
	sw := &fakeBackend{label: "sw"}
	fb := NewHardwareFallback(hw, sw, slog.Default())

	fb.Encode(context.Background(), testFrame(), false)
	fb.Encode(context.Background(), testFrame(), false)

	if !fb.downgraded {
		t.Fatal("expected session to be downgraded after two consecutive hardware failures")
	}

	// A subsequent frame must not touch hardware at all.
	hw.failNext = 0
	_, err := fb.Encode(context.Background(), testFrame(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw.encodes != 2 {
		t.Fatalf("expected hardware to never be called again after downgrade, got %d calls", hw.encodes)
	}
}

func TestHardwareFallbackFatalErrorPropagatesWithoutFallback(t *testing.T) {
	hw := &fakeBackend{label: "hw", failNext: 1, failKind: wrderr.FatalEncode}
	sw := &fakeBackend{label: "sw"}
	fb := NewHardwareFallback(hw, sw, slog.Default())

	_, err := fb.Encode(context.Background(), testFrame(), false)
	if err == nil {
		t.Fatal("expected fatal encode error to propagate")
	}
	if wrderr.KindOf(err) != wrderr.FatalEncode {
		t.Fatalf("expected FatalEncode kind, got %v", wrderr.KindOf(err))
	}
	if sw.encodes != 0 {
		t.Fatalf("expected no software fallback on a fatal error, got %d", sw.encodes)
	}
}
