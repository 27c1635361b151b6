package fingerprint

import (
	"math"

	"soundmark/models"
)

// SongLookup resolves a catalog song ID to the metadata Align needs to
// populate a Match -- name and content hash -- without the fingerprint
// package importing the catalog package directly.
type SongLookup interface {
	SongByID(songID uint32) (name string, fileSHA1 string, ok bool)
}

// deltaKey identifies one (offset-delta, song) bucket in the histogram.
type deltaKey struct {
	delta  int64
	songID uint32
}

// Align turns a flat list of (song, delta) collisions -- one per hash the
// query shares with a catalog entry -- into a ranked match. It builds a
// histogram over (delta, songID) buckets and returns the bucket with the
// most votes, the intuition being that a true match accumulates hits at a
// single consistent offset while coincidental hash collisions scatter
// across many offsets.
//
// Ties are broken by first occurrence: a later bucket only displaces the
// current best if its count is strictly greater, never merely equal, so
// the first song to reach the winning count keeps it. No pairs, or a
// winning song no longer present in the catalog, is NoMatch: a nil Match
// and a nil error, not an error value.
func Align(pairs []models.MatchPair, lookup SongLookup, fs int) (*models.Match, error) {
	counts := make(map[deltaKey]int, len(pairs))

	var best deltaKey
	bestCount := 0

	for _, p := range pairs {
		key := deltaKey{delta: p.Delta, songID: p.SongID}
		counts[key]++
		if counts[key] > bestCount {
			bestCount = counts[key]
			best = key
		}
	}

	if bestCount == 0 {
		return nil, nil
	}

	name, sha1, ok := lookup.SongByID(best.songID)
	if !ok {
		return nil, nil
	}

	offsetSeconds := float64(best.delta) * float64(NFFT) * OverlapRatio / float64(fs)

	return &models.Match{
		SongID:        best.songID,
		SongName:      name,
		FileSHA1:      sha1,
		Confidence:    bestCount,
		Offset:        best.delta,
		OffsetSeconds: roundTo(offsetSeconds, 5),
	}, nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
