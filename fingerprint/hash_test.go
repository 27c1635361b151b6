package fingerprint

import "testing"

func TestHashesEmptyPeaksYieldsNone(t *testing.T) {
	if hashes := Hashes(nil, FanValue); len(hashes) != 0 {
		t.Fatalf("expected no hashes for no peaks, got %d", len(hashes))
	}
}

func TestHashesTwoPeaksYieldsOneHash(t *testing.T) {
	peaks := []Peak{
		{FreqBin: 100, TimeBin: 5},
		{FreqBin: 200, TimeBin: 10},
	}

	hashes := Hashes(peaks, FanValue)
	if len(hashes) != 1 {
		t.Fatalf("expected exactly 1 hash from 2 peaks, got %d", len(hashes))
	}
	if hashes[0].Anchor != 5 {
		t.Fatalf("anchor = %d, want 5 (earlier peak's time bin)", hashes[0].Anchor)
	}
	if got := landmarkHash(100, 200, 5); hashes[0].Hash != got {
		t.Fatalf("hash = %q, want %q", hashes[0].Hash, got)
	}
	if len(hashes[0].Hash) != FingerprintReduction {
		t.Fatalf("hash length = %d, want %d", len(hashes[0].Hash), FingerprintReduction)
	}
}

func TestHashesOutOfDeltaRangeIsDropped(t *testing.T) {
	peaks := []Peak{
		{FreqBin: 100, TimeBin: 0},
		{FreqBin: 200, TimeBin: MaxHashTimeDelta + 1},
	}
	if hashes := Hashes(peaks, FanValue); len(hashes) != 0 {
		t.Fatalf("expected pair beyond MaxHashTimeDelta to be dropped, got %d hashes", len(hashes))
	}
}

func TestHashesFanValueBoundsPairCount(t *testing.T) {
	// three peaks close together in time, fanValue=2 means each anchor
	// pairs with only the single next peak.
	peaks := []Peak{
		{FreqBin: 10, TimeBin: 0},
		{FreqBin: 20, TimeBin: 1},
		{FreqBin: 30, TimeBin: 2},
	}

	hashes := Hashes(peaks, 2)
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hashes with fanValue=2 over 3 peaks, got %d", len(hashes))
	}
}

func TestHashesDeterministic(t *testing.T) {
	peaks := []Peak{
		{FreqBin: 50, TimeBin: 3},
		{FreqBin: 75, TimeBin: 20},
		{FreqBin: 12, TimeBin: 1},
	}

	a := Hashes(peaks, FanValue)
	b := Hashes(peaks, FanValue)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic hash count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic hash at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
