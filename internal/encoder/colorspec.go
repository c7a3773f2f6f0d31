package encoder

import "fmt"

// ColorSpec names the VUI colour_description fields an encoder should
// signal. Direct lookup-table implementation of spec.md's fixed
// BT.601/BT.709/BT.2020 constants; no library models H.264 VUI
// semantics, so this is plain Go.
type ColorSpec struct {
	ColourPrimaries         uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	FullRange               bool
}

// H.264 VUI colour_primaries / transfer_characteristics / matrix_coeffs
// values from Rec. ITU-T H.264 Annex E / ISO/IEC 23091-2.
var (
	ColorSpecBT601  = ColorSpec{ColourPrimaries: 6, TransferCharacteristics: 6, MatrixCoefficients: 6}
	ColorSpecBT709  = ColorSpec{ColourPrimaries: 1, TransferCharacteristics: 1, MatrixCoefficients: 1, FullRange: true}
	ColorSpecBT2020 = ColorSpec{ColourPrimaries: 9, TransferCharacteristics: 14, MatrixCoefficients: 9}
)

// ColorSpecAuto implements spec.md §3's Auto rule: HD-or-larger content
// (max(width, height) >= 720) signals BT.709 full range, everything
// smaller falls back to BT.601 limited range, matching the common
// desktop-capture convention of treating sub-HD output as legacy SD
// content.
func ColorSpecAuto(width, height int) ColorSpec {
	dim := width
	if height > dim {
		dim = height
	}
	if dim >= 720 {
		return ColorSpecBT709
	}
	return ColorSpecBT601
}

// colorimetryString renders a ColorSpec as a GStreamer custom
// colorimetry caps value ("range:matrix:transfer:primaries"). The
// matrix/transfer/primaries components reuse the VUI's own ITU-T/
// ISO-IEC 23001-8 numbering, which GStreamer's GstVideoColorMatrix/
// TransferFunction/Primaries enums are defined to match.
func colorimetryString(c ColorSpec) string {
	rng := 2 // GST_VIDEO_COLOR_RANGE_16_235 (limited)
	if c.FullRange {
		rng = 1 // GST_VIDEO_COLOR_RANGE_0_255 (full)
	}
	return fmt.Sprintf("%d:%d:%d:%d", rng, c.MatrixCoefficients, c.TransferCharacteristics, c.ColourPrimaries)
}
