package egfx

import (
	"sync"

	"github.com/wrd-project/wrd-server/internal/capture"
	"github.com/wrd-project/wrd-server/internal/encoder"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// Transport is the RDP graphics-channel write boundary this package
// targets; spec.md §1 puts the actual RDP protocol library out of
// scope, so Sender is built entirely against this interface.
type Transport interface {
	// Write sends one complete PDU. Implementations must not reorder
	// or coalesce PDUs across calls.
	Write(pdu []byte) error
}

// Sender enforces the (stream_id, sequence) ordering invariant from
// spec.md §4.10 and converts EncodedUnits + damage lists into
// AVC420/AVC444 PDUs on an injected Transport.
type Sender struct {
	mu        sync.Mutex
	transport Transport
	surfaceID uint16

	lastSeq map[string]uint64
}

// NewSender builds a sender targeting one graphics surface.
func NewSender(transport Transport, surfaceID uint16) *Sender {
	return &Sender{
		transport: transport,
		surfaceID: surfaceID,
		lastSeq:   make(map[string]uint64),
	}
}

// checkAndAdvance enforces strictly increasing, contiguous sequence
// order per stream: after the first, each sequence must be exactly one
// more than the last. The first sequence observed for a stream is
// accepted unconditionally so callers don't need to pre-register
// streams.
func (s *Sender) checkAndAdvance(streamID string, seq uint64) error {
	last, seen := s.lastSeq[streamID]
	if seen && seq != last+1 {
		return wrderr.New(wrderr.Protocol, "egfx: out-of-order or non-contiguous sequence on stream "+streamID)
	}
	s.lastSeq[streamID] = seq
	return nil
}

func toRects(regions []capture.DamageRegion) []Rect {
	out := make([]Rect, len(regions))
	for i, r := range regions {
		out[i] = rectFromXYWH(r.X, r.Y, r.W, r.H)
	}
	return out
}

func concatUnits(units []encoder.EncodedUnit) []byte {
	total := 0
	for _, u := range units {
		total += len(u.Data)
	}
	out := make([]byte, 0, total)
	for _, u := range units {
		out = append(out, u.Data...)
	}
	return out
}

// SendAVC420 writes one WIRETOSURFACE_1 PDU for a single-stream
// (non-444) encode result. A Transport write failure is fatal per
// spec.md §4.10: the session controller is expected to drain and
// terminate on it.
func (s *Sender) SendAVC420(streamID string, seq uint64, units []encoder.EncodedUnit, damage []capture.DamageRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAndAdvance(streamID, seq); err != nil {
		return err
	}

	pdu := encodeAVC420(s.surfaceID, concatUnits(units), toRects(damage))
	if err := s.transport.Write(pdu); err != nil {
		return wrderr.Wrap(wrderr.Transport, "egfx: transport write failed", err)
	}
	return nil
}

// SendAVC444 writes one WIRETOSURFACE_2 PDU carrying a main bitstream
// and, when present, an auxiliary bitstream.
func (s *Sender) SendAVC444(streamID string, seq uint64, unit encoder.AVC444Unit, mainDamage, auxDamage []capture.DamageRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAndAdvance(streamID, seq); err != nil {
		return err
	}

	var auxBytes []byte
	var auxRects []Rect
	if unit.Aux != nil {
		auxBytes = concatUnits(unit.Aux)
		auxRects = toRects(auxDamage)
	}

	pdu := encodeAVC444(s.surfaceID, concatUnits(unit.Main), toRects(mainDamage), auxBytes, auxRects)
	if err := s.transport.Write(pdu); err != nil {
		return wrderr.Wrap(wrderr.Transport, "egfx: transport write failed", err)
	}
	return nil
}

// Reset clears per-stream sequence tracking, used when the session
// controller tears down and rebuilds a stream after an IDR-forcing
// reconfiguration.
func (s *Sender) Reset(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSeq, streamID)
}
