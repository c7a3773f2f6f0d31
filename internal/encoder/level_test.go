package encoder

import "testing"

func TestSelectLevelLowResolutionPicksLowLevel(t *testing.T) {
	got := SelectLevel(640, 480, 30, 1_000_000)
	if got != 31 {
		t.Fatalf("expected level 3.1 for 640x480@30, got %d", got)
	}
}

func TestSelectLevel1080p60PicksAtLeast41(t *testing.T) {
	got := SelectLevel(1920, 1080, 60, 8_000_000)
	if got < 41 {
		t.Fatalf("expected at least level 4.1 for 1080p60, got %d", got)
	}
}

func TestSelectLevel4KPicksHighLevel(t *testing.T) {
	got := SelectLevel(3840, 2160, 60, 50_000_000)
	if got < 51 {
		t.Fatalf("expected at least level 5.1 for 4K60, got %d", got)
	}
}

func TestSelectLevelNeverBelowLowestKnown(t *testing.T) {
	got := SelectLevel(16, 16, 1, 1)
	if got != 31 {
		t.Fatalf("expected the lowest known level for a trivial stream, got %d", got)
	}
}
