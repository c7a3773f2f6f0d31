package encoder

import "log/slog"

// OpenH264Backend is the software fallback encoder, modeled on the
// teacher's x264enc/openh264enc element choice in gst_pipeline.go.
// Supports full VUI colour_description and video_full_range control.
type OpenH264Backend struct {
	*gstBackend
}

// NewOpenH264Backend builds the software encoder. elementName lets the
// caller choose between "x264enc" and "openh264enc" depending on which
// GStreamer plugin is installed; both expose the same VUI controls
// this package relies on.
func NewOpenH264Backend(elementName string, cfg Config, logger *slog.Logger) (*OpenH264Backend, error) {
	if elementName == "" {
		elementName = "x264enc"
	}
	spec := elementSpec{
		name:               elementName,
		backendLabel:       "software",
		supportsFullRange:  true,
		supportsColourDesc: true,
	}
	b, err := newGstBackend(spec, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &OpenH264Backend{gstBackend: b}, nil
}
