// Package egfx wraps encoded H.264 access units in RDP graphics
// channel (MS-RDPEGFX) framing and writes them to an injected
// Transport in strict (stream_id, sequence) order, per spec.md §4.10.
// The RDP graphics channel / protocol engine itself is out of scope
// (spec.md §1 Non-goals); this package only produces the wire bytes
// and hands them to whatever carries them. Wire-framing discipline
// (fixed-size binary.LittleEndian header, explicit length-prefixed
// sub-fields) follows the teacher's RTP/H.264 depacketizer in
// rtp_h264.go, read in reverse (there: parse incoming; here: emit
// outgoing).
package egfx

import (
	"bytes"
	"encoding/binary"
)

// commandID identifies a graphics-pipeline PDU, matching the subset of
// MS-RDPEGFX RDPGFX_CMDID values this sender emits.
type commandID uint16

const (
	cmdWireToSurface1 commandID = 0x0001 // RDPGFX_CMDID_WIRETOSURFACE_1 (AVC420)
	cmdWireToSurface2 commandID = 0x0002 // RDPGFX_CMDID_WIRETOSURFACE_2 (AVC444)
)

// codecID selects the bitstream codec carried by a WireToSurface PDU.
const (
	codecIDAVC420 uint8 = 0x0b
	codecIDAVC444 uint8 = 0x0e
)

// Rect is a damage rectangle in LTRB (left, top, right, bottom) form,
// the wire form spec.md §4.10 requires (as opposed to capture's
// {x,y,w,h} form).
type Rect struct {
	Left, Top, Right, Bottom int32
}

func rectFromXYWH(x, y, w, h int) Rect {
	return Rect{Left: int32(x), Top: int32(y), Right: int32(x + w), Bottom: int32(y + h)}
}

func writeRects(buf *bytes.Buffer, rects []Rect) {
	binary.Write(buf, binary.LittleEndian, uint16(len(rects)))
	for _, r := range rects {
		binary.Write(buf, binary.LittleEndian, r.Left)
		binary.Write(buf, binary.LittleEndian, r.Top)
		binary.Write(buf, binary.LittleEndian, r.Right)
		binary.Write(buf, binary.LittleEndian, r.Bottom)
	}
}

// header is the fixed 8-byte RDPGFX_HEADER preceding every PDU.
func writeHeader(buf *bytes.Buffer, cmd commandID, pduLength uint32) {
	binary.Write(buf, binary.LittleEndian, uint16(cmd))
	binary.Write(buf, binary.LittleEndian, uint16(0)) // flags, unused here
	binary.Write(buf, binary.LittleEndian, pduLength)
}

// encodeAVC420 builds a single WIRETOSURFACE_1 PDU carrying one
// bitstream and its damage rectangles.
func encodeAVC420(surfaceID uint16, bitstream []byte, regions []Rect) []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, surfaceID)
	body.WriteByte(codecIDAVC420)
	writeRects(&body, regions)
	binary.Write(&body, binary.LittleEndian, uint32(len(bitstream)))
	body.Write(bitstream)

	var pdu bytes.Buffer
	writeHeader(&pdu, cmdWireToSurface1, uint32(8+body.Len()))
	pdu.Write(body.Bytes())
	return pdu.Bytes()
}

// encodeAVC444 builds a single WIRETOSURFACE_2 PDU carrying a main
// bitstream with its regions and, when present, an auxiliary
// bitstream with its own regions. When aux is absent an explicit
// "no aux" marker (auxPresent=0) is written instead of omitting the
// field, per spec.md §4.10.
func encodeAVC444(surfaceID uint16, main []byte, mainRegions []Rect, aux []byte, auxRegions []Rect) []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, surfaceID)
	body.WriteByte(codecIDAVC444)

	writeRects(&body, mainRegions)
	binary.Write(&body, binary.LittleEndian, uint32(len(main)))
	body.Write(main)

	if aux != nil {
		body.WriteByte(1) // auxPresent
		writeRects(&body, auxRegions)
		binary.Write(&body, binary.LittleEndian, uint32(len(aux)))
		body.Write(aux)
	} else {
		body.WriteByte(0) // auxPresent=0: explicit "no aux" marker
	}

	var pdu bytes.Buffer
	writeHeader(&pdu, cmdWireToSurface2, uint32(8+body.Len()))
	pdu.Write(body.Bytes())
	return pdu.Bytes()
}
