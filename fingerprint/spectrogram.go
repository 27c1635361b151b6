package fingerprint

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrogram turns one channel of int16 PCM into a 2-D log-power
// time-frequency matrix: spec[freqBin][timeFrame]. It mirrors Python's
// matplotlib.mlab.specgram default (power spectral density, Hann window,
// one-sided spectrum) so that AmpMin has the same meaning it does in the
// dejavu reference this pipeline is ported from.
//
// If len(samples) < NFFT the signal is too short to fill a single frame;
// an empty matrix is returned (EmptySignal, not an error -- the peak
// extractor then yields no peaks and the hash generator no hashes).
func Spectrogram(samples []int16, fs int) [][]float64 {
	if len(samples) < NFFT {
		return nil
	}

	window := hannWindow(NFFT)
	var windowEnergy float64
	for _, w := range window {
		windowEnergy += w * w
	}
	scale := 1.0 / (float64(fs) * windowEnergy)

	nBins := NFFT/2 + 1
	nFrames := (len(samples)-NFFT)/HopSize + 1

	spec := make([][]float64, nBins)
	for i := range spec {
		spec[i] = make([]float64, nFrames)
	}

	frame := make([]float64, NFFT)
	for t := 0; t < nFrames; t++ {
		start := t * HopSize
		for i := 0; i < NFFT; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}

		spectrum := fft.FFTReal(frame)
		for k := 0; k < nBins; k++ {
			power := cmplx.Abs(spectrum[k])
			power = power * power * scale
			// one-sided spectrum: double all bins except DC and Nyquist,
			// matching matplotlib's scale_by_freq PSD convention.
			if k != 0 && k != nBins-1 {
				power *= 2
			}

			db := 10 * math.Log10(power)
			if math.IsInf(db, -1) {
				db = 0
			}
			spec[k][t] = db
		}
	}

	return spec
}

// hannWindow returns a Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
