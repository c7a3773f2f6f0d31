package session

import (
	"log/slog"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/encoder"
)

// buildEncoder picks the first hardware backend (NVENC, then VA-API)
// that the capability registry reports at BestEffort or better and
// that constructs successfully, and wraps it in a HardwareFallback with
// the software backend as its downgrade target; with no usable
// hardware it returns the software backend unwrapped, per spec.md's
// "hardware init failure falls back to the next one" rule (§4.8).
// Grounded on the arbiter's own candidate-list-in-priority-order
// pattern (internal/strategy/arbiter.go), applied to encoder backends
// instead of session strategies.
func buildEncoder(registry *capability.Registry, cfg encoder.Config, logger *slog.Logger) (encoder.Backend, error) {
	software, err := encoder.NewOpenH264Backend("x264enc", cfg, logger)
	if err != nil {
		return nil, err
	}

	var hardware encoder.Backend
	if registry.Level(capability.HardwareEncodeNvenc) >= capability.BestEffort {
		if nv, err := encoder.NewNVENCBackend(cfg, logger); err == nil {
			hardware = nv
		} else {
			logger.Warn("nvenc backend unavailable, staying on software", "error", err)
		}
	}
	if hardware == nil && registry.Level(capability.HardwareEncodeVaapi) >= capability.BestEffort {
		if va, err := encoder.NewVAAPIBackend(cfg, logger); err == nil {
			hardware = va
		} else {
			logger.Warn("vaapi backend unavailable, staying on software", "error", err)
		}
	}

	if hardware == nil {
		return software, nil
	}
	return encoder.NewHardwareFallback(hardware, software, logger), nil
}
