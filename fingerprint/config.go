// Package fingerprint implements the acoustic landmark pipeline: spectrogram,
// peak extraction, hash generation and the offset-histogram matcher. These
// parameters are part of the on-disk hash contract and are not tunable --
// changing any of them changes every hash an implementation emits.
package fingerprint

const (
	// NFFT is the STFT window size in samples.
	NFFT = 4096

	// OverlapRatio is the fraction of NFFT shared between consecutive frames.
	OverlapRatio = 0.5

	// OverlapSamples is the number of samples shared between consecutive frames.
	OverlapSamples = int(NFFT * OverlapRatio)

	// HopSize is the stride between consecutive STFT frames.
	HopSize = NFFT - OverlapSamples

	// AmpMin is the minimum log-power amplitude (dB) for a candidate peak.
	AmpMin = 10.0

	// PeakNeighborhoodSize is the number of iterated-dilation steps applied
	// to the 4-connected structuring element when building the local maximum
	// neighborhood.
	PeakNeighborhoodSize = 20

	// FanValue bounds how many forward peaks an anchor fans out to.
	FanValue = 15

	// MinHashTimeDelta and MaxHashTimeDelta bound the anchor-target time gap
	// (in STFT frames) eligible for hashing.
	MinHashTimeDelta = 0
	MaxHashTimeDelta = 200

	// FingerprintReduction is the number of hex characters kept from the
	// SHA-1 digest of a landmark pair.
	FingerprintReduction = 20
)
