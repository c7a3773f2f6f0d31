package encoder

import (
	"context"
	"log/slog"

	"github.com/wrd-project/wrd-server/internal/capture"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// HardwareFallback wraps a hardware Backend with a software fallback,
// per spec.md §4.8: on a first runtime hardware encode failure the
// frame is encoded by software as an IDR and hardware stays active for
// the next frame; no reset is issued to the hardware backend and the
// failed frame is not retried on it. A second consecutive failure
// downgrades to software for the remaining lifetime of this instance.
type HardwareFallback struct {
	hardware Backend
	software Backend
	logger   *slog.Logger

	consecutiveFailures int
	downgraded          bool
}

// NewHardwareFallback always returns the wrapper; it encodes with
// hardware while that is non-nil and not downgraded, and with software
// otherwise, so callers always program against one Backend regardless
// of which path is active.
func NewHardwareFallback(hardware, software Backend, logger *slog.Logger) *HardwareFallback {
	return &HardwareFallback{hardware: hardware, software: software, logger: logger}
}

func (f *HardwareFallback) active() Backend {
	if f.downgraded || f.hardware == nil {
		return f.software
	}
	return f.hardware
}

func (f *HardwareFallback) Encode(ctx context.Context, frame *capture.VideoFrame, forceIDR bool) ([]EncodedUnit, error) {
	if f.downgraded || f.hardware == nil {
		return f.software.Encode(ctx, frame, forceIDR)
	}

	units, err := f.hardware.Encode(ctx, frame, forceIDR)
	if err == nil {
		f.consecutiveFailures = 0
		return units, nil
	}

	if wrderr.KindOf(err) == wrderr.FatalEncode {
		return nil, err
	}

	f.consecutiveFailures++
	f.logger.Warn("hardware encoder failed", "consecutive_failures", f.consecutiveFailures, "error", err)

	if f.consecutiveFailures == 1 {
		// First failure: serve this frame from software but keep
		// hardware active for the next frame.
		return f.software.Encode(ctx, frame, true)
	}

	f.logger.Error("hardware encoder failed twice, downgrading session to software")
	f.downgraded = true
	return f.software.Encode(ctx, frame, true)
}

func (f *HardwareFallback) Reconfigure(cfg Config) error {
	if f.hardware != nil {
		if err := f.hardware.Reconfigure(cfg); err != nil {
			f.logger.Warn("hardware reconfigure failed", "error", err)
		}
	}
	return f.software.Reconfigure(cfg)
}

func (f *HardwareFallback) ForceKeyframe() {
	f.active().ForceKeyframe()
}

func (f *HardwareFallback) Stats() Stats {
	return f.active().Stats()
}

func (f *HardwareFallback) Close() error {
	var err error
	if f.hardware != nil {
		err = f.hardware.Close()
	}
	if swErr := f.software.Close(); swErr != nil && err == nil {
		err = swErr
	}
	return err
}
