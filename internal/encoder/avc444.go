package encoder

import (
	"context"
	"log/slog"

	"github.com/wrd-project/wrd-server/internal/capture"
)

// AVC444Unit pairs a main-stream unit (luma + 4:2:0 chroma) with an
// optional aux-stream unit (chroma-only residual), per spec.md §4.8.
type AVC444Unit struct {
	Main []EncodedUnit
	Aux  []EncodedUnit // nil when this frame's aux was omitted
}

// AVC444Encoder wraps two Backend instances: Main carries luma plus
// 4:2:0-downsampled chroma from the upsampled 4:4:4 source, Aux
// carries a chroma-only residual. AVC444Encoder itself does not
// perform the 4:4:4<->4:2:0 resampling — that is the caller's
// responsibility via frame.Format/Color before Encode is called on
// each leg — it only owns the aux-omission policy.
type AVC444Encoder struct {
	main Backend
	aux  Backend

	auxChangeThreshold float64
	maxAuxInterval     int
	framesSinceAux     int

	logger *slog.Logger
}

// NewAVC444Encoder builds the dual-stream wrapper. auxChangeThreshold
// is the fraction (0..1) of chroma samples that must have changed
// since the last aux send to justify sending another; maxAuxInterval
// bounds how long aux can be skipped regardless.
func NewAVC444Encoder(main, aux Backend, auxChangeThreshold float64, maxAuxInterval int, logger *slog.Logger) *AVC444Encoder {
	return &AVC444Encoder{
		main:               main,
		aux:                aux,
		auxChangeThreshold: auxChangeThreshold,
		maxAuxInterval:     maxAuxInterval,
		logger:             logger,
	}
}

// Encode encodes the main frame and conditionally the aux frame.
// chromaChangedFraction is the fraction of chroma samples that
// differ from the last frame sent on the aux stream, supplied by the
// caller.
func (e *AVC444Encoder) Encode(ctx context.Context, mainFrame, auxFrame *capture.VideoFrame, forceIDR bool, chromaChangedFraction float64) (AVC444Unit, error) {
	mainUnits, err := e.main.Encode(ctx, mainFrame, forceIDR)
	if err != nil {
		return AVC444Unit{}, err
	}

	mainIsIDR := len(mainUnits) > 0 && mainUnits[0].IsKeyframe
	sendAux := forceIDR || mainIsIDR ||
		chromaChangedFraction > e.auxChangeThreshold ||
		(e.maxAuxInterval > 0 && e.framesSinceAux >= e.maxAuxInterval)

	if !sendAux {
		e.framesSinceAux++
		return AVC444Unit{Main: mainUnits}, nil
	}

	auxUnits, err := e.aux.Encode(ctx, auxFrame, forceIDR || mainIsIDR)
	if err != nil {
		e.logger.Warn("aux encode failed, sending main-only frame", "error", err)
		e.framesSinceAux++
		return AVC444Unit{Main: mainUnits}, nil
	}

	e.framesSinceAux = 0
	return AVC444Unit{Main: mainUnits, Aux: auxUnits}, nil
}

func (e *AVC444Encoder) Reconfigure(cfg Config) error {
	if err := e.main.Reconfigure(cfg); err != nil {
		return err
	}
	return e.aux.Reconfigure(cfg)
}

func (e *AVC444Encoder) ForceKeyframe() {
	e.main.ForceKeyframe()
	e.aux.ForceKeyframe()
	e.framesSinceAux = e.maxAuxInterval // force an aux send on the next Encode
}

func (e *AVC444Encoder) Close() error {
	mainErr := e.main.Close()
	if auxErr := e.aux.Close(); auxErr != nil && mainErr == nil {
		return auxErr
	}
	return mainErr
}
