package encoder

// level is one H.264 level's maximum macroblock processing rate and
// frame size, in macroblocks (16x16), from Table A-1 of the H.264
// spec, restricted to the subset spec.md requires.
type level struct {
	idc           int // level_idc * 10, e.g. 41 for level 4.1
	maxMBps       int
	maxFrameSize  int // macroblocks
	maxBitrateKbps int // High profile (x1.25 over Baseline, rounded)
}

var levels = []level{
	{idc: 31, maxMBps: 108000, maxFrameSize: 3600, maxBitrateKbps: 17500},
	{idc: 40, maxMBps: 245760, maxFrameSize: 8192, maxBitrateKbps: 25000},
	{idc: 41, maxMBps: 245760, maxFrameSize: 8192, maxBitrateKbps: 62500},
	{idc: 50, maxMBps: 589824, maxFrameSize: 22080, maxBitrateKbps: 168750},
	{idc: 51, maxMBps: 983040, maxFrameSize: 36864, maxBitrateKbps: 300000},
	{idc: 52, maxMBps: 2073600, maxFrameSize: 36864, maxBitrateKbps: 300000},
}

// SelectLevel returns the lowest H.264 level_idc (as level*10, e.g. 41)
// satisfying the given resolution, frame rate, and bitrate, per
// spec.md §4.8. Returns the highest known level if none satisfy it.
func SelectLevel(width, height, fps, bitrateBps int) int {
	mbWidth := (width + 15) / 16
	mbHeight := (height + 15) / 16
	frameSize := mbWidth * mbHeight
	mbps := frameSize * fps
	bitrateKbps := bitrateBps / 1000

	for _, l := range levels {
		if frameSize <= l.maxFrameSize && mbps <= l.maxMBps && bitrateKbps <= l.maxBitrateKbps {
			return l.idc
		}
	}
	return levels[len(levels)-1].idc
}
