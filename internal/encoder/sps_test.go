package encoder

import "testing"

func TestParseSPSRejectsTooShortData(t *testing.T) {
	_, err := ParseSPS([]byte{0x67, 0x42})
	if err == nil {
		t.Fatal("expected an error for truncated SPS data")
	}
}

func TestVerifyColourSignaledReportsUnparsableSPS(t *testing.T) {
	ok, reason := VerifyColourSignaled([]byte{0x67}, ColorSpecBT709)
	if ok {
		t.Fatal("expected verification to fail for unparsable SPS")
	}
	if reason == "" {
		t.Fatal("expected a human-readable reason")
	}
}
