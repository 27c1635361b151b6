package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	"soundmark/models"
)

// Hashes fans each peak out to up to fanValue-1 forward peaks and hashes each
// resulting (anchor, target) pair into a landmark hash. Peaks are sorted
// ascending by (FreqBin, TimeBin) first -- the sort order is part of the
// on-disk hash contract, since it determines which peak in a pair is
// "anchor" and which is "target" whenever two peaks share a time bin.
func Hashes(peaks []Peak, fanValue int) []models.HashRecord {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FreqBin != sorted[j].FreqBin {
			return sorted[i].FreqBin < sorted[j].FreqBin
		}
		return sorted[i].TimeBin < sorted[j].TimeBin
	})

	var hashes []models.HashRecord
	for i, anchor := range sorted {
		for j := 1; j < fanValue; j++ {
			if i+j >= len(sorted) {
				break
			}
			target := sorted[i+j]

			delta := target.TimeBin - anchor.TimeBin
			if delta < MinHashTimeDelta || delta > MaxHashTimeDelta {
				continue
			}

			hashes = append(hashes, models.HashRecord{
				Hash:   landmarkHash(anchor.FreqBin, target.FreqBin, delta),
				Anchor: uint32(anchor.TimeBin),
			})
		}
	}

	return hashes
}

// landmarkHash hashes a (freq1, freq2, delta) landmark triple into a
// truncated hex SHA-1 digest. The format string and truncation length are
// fixed by the hash contract; changing either changes every hash emitted.
func landmarkHash(freq1, freq2, delta int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%d", freq1, freq2, delta)))
	return hex.EncodeToString(sum[:])[:FingerprintReduction]
}
