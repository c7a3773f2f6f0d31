package encoder

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"
)

// SPSInfo is the subset of a parsed H.264 SPS this package inspects:
// whether the selected GStreamer element actually honored VUI colour
// signaling, which spec.md §4.8/§9 requires verifying rather than
// assuming. Adapted from the teacher's ParseSPS
// (api/pkg/desktop/h264_sps.go), trimmed to what VUI verification
// needs; the teacher's VUI-rewriting machinery is not reused, since
// spec.md only asks to detect the gap, not to patch around it.
type SPSInfo struct {
	ProfileIDC uint8
	LevelIDC   uint8
	Width      uint
	Height     uint

	VUIPresent          bool
	ColourDescPresent   bool
	ColourPrimaries     uint8
	TransferChars       uint8
	MatrixCoefficients  uint8
	VideoFullRangeFlag  bool
}

// ParseSPS parses a single SPS NAL unit (including its NAL header
// byte) via mp4ff.
func ParseSPS(spsData []byte) (*SPSInfo, error) {
	if len(spsData) < 4 {
		return nil, fmt.Errorf("SPS data too short: %d bytes", len(spsData))
	}

	sps, err := avc.ParseSPSNALUnit(spsData, true)
	if err != nil {
		return nil, fmt.Errorf("decode SPS: %w", err)
	}

	info := &SPSInfo{
		ProfileIDC: uint8(sps.Profile),
		LevelIDC:   uint8(sps.Level),
		Width:      sps.Width,
		Height:     sps.Height,
	}

	if sps.VUI != nil {
		info.VUIPresent = true
		info.VideoFullRangeFlag = sps.VUI.VideoFullRangeFlag
		if sps.VUI.ColourDescriptionFlag {
			info.ColourDescPresent = true
			info.ColourPrimaries = uint8(sps.VUI.ColourPrimaries)
			info.TransferChars = uint8(sps.VUI.TransferCharacteristics)
			info.MatrixCoefficients = uint8(sps.VUI.MatrixCoefficients)
		}
	}

	return info, nil
}

// VerifyColourSignaled reports whether the encoded SPS actually
// carries colour_description_present_flag=1 matching want, and a
// human-readable reason when it does not. Used to catch the
// documented VA-API VUI gap: the element was asked for a ColorSpec but
// silently dropped it.
func VerifyColourSignaled(spsData []byte, want ColorSpec) (ok bool, reason string) {
	info, err := ParseSPS(spsData)
	if err != nil {
		return false, fmt.Sprintf("cannot parse SPS: %v", err)
	}
	if !info.VUIPresent {
		return false, "VUI not present in emitted SPS"
	}
	if !info.ColourDescPresent {
		return false, "colour_description_present_flag=0 (encoder element did not honor ColorSpec)"
	}
	if info.ColourPrimaries != want.ColourPrimaries ||
		info.TransferChars != want.TransferCharacteristics ||
		info.MatrixCoefficients != want.MatrixCoefficients {
		return false, fmt.Sprintf("colour fields mismatch: got {%d,%d,%d} want {%d,%d,%d}",
			info.ColourPrimaries, info.TransferChars, info.MatrixCoefficients,
			want.ColourPrimaries, want.TransferCharacteristics, want.MatrixCoefficients)
	}
	return true, ""
}
