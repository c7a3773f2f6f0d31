package egfx

import (
	"errors"
	"testing"

	"github.com/wrd-project/wrd-server/internal/capture"
	"github.com/wrd-project/wrd-server/internal/encoder"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

type recordingTransport struct {
	writes [][]byte
	failOn int // -1 disables
	calls  int
}

func (t *recordingTransport) Write(pdu []byte) error {
	t.calls++
	if t.failOn >= 0 && t.calls == t.failOn {
		return errors.New("simulated write failure")
	}
	cp := make([]byte, len(pdu))
	copy(cp, pdu)
	t.writes = append(t.writes, cp)
	return nil
}

func TestSendAVC420WritesOneWellFormedPDU(t *testing.T) {
	tr := &recordingTransport{failOn: -1}
	s := NewSender(tr, 1)

	units := []encoder.EncodedUnit{{Type: encoder.NALUnitTypeIDRSlice, Data: []byte{0xAA, 0xBB}}}
	damage := []capture.DamageRegion{{X: 0, Y: 0, W: 100, H: 100}}

	if err := s.SendAVC420("s1", 1, units, damage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.writes) != 1 {
		t.Fatalf("expected exactly one PDU written, got %d", len(tr.writes))
	}
	if tr.writes[0][0] != byte(cmdWireToSurface1) {
		t.Fatalf("expected WIRETOSURFACE_1 command id, got %x", tr.writes[0][0])
	}
}

func TestSendAVC444WithoutAuxCarriesNoAuxMarker(t *testing.T) {
	tr := &recordingTransport{failOn: -1}
	s := NewSender(tr, 1)

	unit := encoder.AVC444Unit{Main: []encoder.EncodedUnit{{Data: []byte{0x01}}}}
	if err := s.SendAVC444("s1", 1, unit, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.writes) != 1 {
		t.Fatalf("expected one PDU, got %d", len(tr.writes))
	}
	if pdu := tr.writes[0]; pdu[len(pdu)-1] != 0 {
		t.Fatalf("expected the trailing auxPresent marker to be 0, got %d", pdu[len(pdu)-1])
	}
}

func TestSenderRejectsOutOfOrderSequence(t *testing.T) {
	tr := &recordingTransport{failOn: -1}
	s := NewSender(tr, 1)

	units := []encoder.EncodedUnit{{Data: []byte{0x01}}}
	if err := s.SendAVC420("s1", 5, units, nil); err != nil {
		t.Fatalf("unexpected error on first send: %v", err)
	}
	err := s.SendAVC420("s1", 3, units, nil)
	if err == nil {
		t.Fatal("expected an error for an out-of-order sequence")
	}
	if wrderr.KindOf(err) != wrderr.Protocol {
		t.Fatalf("expected Protocol kind, got %v", wrderr.KindOf(err))
	}
}

func TestSenderTracksSequencesIndependentlyPerStream(t *testing.T) {
	tr := &recordingTransport{failOn: -1}
	s := NewSender(tr, 1)

	units := []encoder.EncodedUnit{{Data: []byte{0x01}}}
	if err := s.SendAVC420("s1", 1, units, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SendAVC420("s2", 1, units, nil); err != nil {
		t.Fatalf("expected stream s2's first sequence to be accepted independently of s1: %v", err)
	}
}

func TestSendAVC420TransportFailureIsFatal(t *testing.T) {
	tr := &recordingTransport{failOn: 1}
	s := NewSender(tr, 1)

	units := []encoder.EncodedUnit{{Data: []byte{0x01}}}
	err := s.SendAVC420("s1", 1, units, nil)
	if err == nil {
		t.Fatal("expected transport failure to surface as an error")
	}
	if !wrderr.Fatal(wrderr.KindOf(err)) {
		t.Fatalf("expected a fatal kind, got %v", wrderr.KindOf(err))
	}
}
