package capture

import (
	"log/slog"
	"testing"
)

func newTestFrame(streamID string, pts int64) *VideoFrame {
	f := &VideoFrame{StreamID: streamID, Storage: StorageMmap, data: []byte{1, 2, 3}, PTSNanos: pts}
	f.refs.Store(1)
	return f
}

func TestFrameBusDeliversInOrderUnderCapacity(t *testing.T) {
	bus := NewFrameBus(4, slog.Default())
	defer bus.Close()

	bus.Publish(newTestFrame("s1", 1))
	bus.Publish(newTestFrame("s1", 2))

	first := <-bus.Frames()
	second := <-bus.Frames()
	if first.PTSNanos != 1 || second.PTSNanos != 2 {
		t.Fatalf("expected in-order delivery, got %d then %d", first.PTSNanos, second.PTSNanos)
	}
}

func TestFrameBusDropsOldestWhenFull(t *testing.T) {
	bus := NewFrameBus(1, slog.Default())
	defer bus.Close()

	bus.Publish(newTestFrame("s1", 1))
	bus.Publish(newTestFrame("s1", 2))

	got := <-bus.Frames()
	if got.PTSNanos != 2 {
		t.Fatalf("expected newest frame (pts=2) to survive, got pts=%d", got.PTSNanos)
	}
	if bus.DropCount() != 1 {
		t.Fatalf("expected 1 drop recorded, got %d", bus.DropCount())
	}
}

func TestFrameBusPublishAfterCloseReleasesImmediately(t *testing.T) {
	bus := NewFrameBus(2, slog.Default())
	bus.Close()

	f := newTestFrame("s1", 1)
	bus.Publish(f)

	if f.refs.Load() != 0 {
		t.Fatalf("expected frame published after close to be released, refs=%d", f.refs.Load())
	}
}

func TestFrameBusCloseReleasesQueuedFrames(t *testing.T) {
	bus := NewFrameBus(4, slog.Default())

	f1 := newTestFrame("s1", 1)
	f2 := newTestFrame("s1", 2)
	bus.Publish(f1)
	bus.Publish(f2)

	bus.Close()

	if f1.refs.Load() != 0 || f2.refs.Load() != 0 {
		t.Fatalf("expected queued frames released on close, got refs %d and %d", f1.refs.Load(), f2.refs.Load())
	}
}
