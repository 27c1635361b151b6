package fingerprint

import (
	"testing"

	"soundmark/models"
)

type fakeLookup map[uint32]string

func (f fakeLookup) SongByID(songID uint32) (string, string, bool) {
	name, ok := f[songID]
	return name, "sha1-" + name, ok
}

func TestAlignNoPairsIsNoMatch(t *testing.T) {
	match, err := Align(nil, fakeLookup{}, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected nil match for no pairs, got %+v", match)
	}
}

func TestAlignPicksStrictMajority(t *testing.T) {
	pairs := []models.MatchPair{
		{SongID: 1, Delta: 5},
		{SongID: 1, Delta: 5},
		{SongID: 1, Delta: 5},
		{SongID: 2, Delta: 9},
		{SongID: 2, Delta: 9},
	}
	lookup := fakeLookup{1: "song-a", 2: "song-b"}

	match, err := Align(pairs, lookup, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.SongID != 1 || match.Confidence != 3 {
		t.Fatalf("unexpected match: %+v", match)
	}
}

func TestAlignTieBreaksFirstSeen(t *testing.T) {
	pairs := []models.MatchPair{
		{SongID: 2, Delta: 1},
		{SongID: 2, Delta: 1},
		{SongID: 1, Delta: 7},
		{SongID: 1, Delta: 7},
	}
	lookup := fakeLookup{1: "song-a", 2: "song-b"}

	match, err := Align(pairs, lookup, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.SongID != 2 {
		t.Fatalf("expected first song to reach the winning count to keep it, got %+v", match)
	}
}

func TestAlignUnknownSongIsNoMatch(t *testing.T) {
	pairs := []models.MatchPair{{SongID: 99, Delta: 1}}
	match, err := Align(pairs, fakeLookup{}, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected nil match for an unresolvable song id, got %+v", match)
	}
}

func TestAlignOffsetSeconds(t *testing.T) {
	pairs := []models.MatchPair{{SongID: 1, Delta: 10}}
	lookup := fakeLookup{1: "song-a"}

	match, err := Align(pairs, lookup, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := roundTo(float64(10)*float64(NFFT)*OverlapRatio/44100, 5)
	if match.OffsetSeconds != want {
		t.Fatalf("offset seconds = %v, want %v", match.OffsetSeconds, want)
	}
}
