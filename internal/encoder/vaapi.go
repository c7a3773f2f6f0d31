package encoder

import "log/slog"

// VAAPIBackend encodes via the VA-API hardware path (vaapih264enc),
// the element name the teacher's pipeline strings select for
// Intel/AMD hardware. VA-API's GStreamer element does not expose VUI
// colour_description or full-range control, so the encoder omits
// those fields; spec.md §9 documents clients defaulting to BT.709 for
// HD content in that case.
type VAAPIBackend struct {
	*gstBackend
}

func NewVAAPIBackend(cfg Config, logger *slog.Logger) (*VAAPIBackend, error) {
	spec := elementSpec{
		name:               "vaapih264enc",
		backendLabel:       "vaapi",
		supportsFullRange:  false,
		supportsColourDesc: false,
	}
	b, err := newGstBackend(spec, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &VAAPIBackend{gstBackend: b}, nil
}
