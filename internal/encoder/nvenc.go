package encoder

import "log/slog"

// NVENCBackend encodes via nvh264enc, the element the teacher's
// pipeline strings select on NVIDIA hosts. Supports full VUI
// colour_description and video_full_range control, like OpenH264.
type NVENCBackend struct {
	*gstBackend
}

func NewNVENCBackend(cfg Config, logger *slog.Logger) (*NVENCBackend, error) {
	spec := elementSpec{
		name:               "nvh264enc",
		backendLabel:       "nvenc",
		supportsFullRange:  true,
		supportsColourDesc: true,
	}
	b, err := newGstBackend(spec, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &NVENCBackend{gstBackend: b}, nil
}
