package fingerprint

import "testing"

func TestSpectrogramEmptySignal(t *testing.T) {
	samples := make([]int16, NFFT-1)
	if got := Spectrogram(samples, 44100); got != nil {
		t.Fatalf("expected nil spectrogram for short signal, got %d rows", len(got))
	}
}

func TestSpectrogramShape(t *testing.T) {
	samples := make([]int16, NFFT*3)
	for i := range samples {
		samples[i] = int16((i % 100) - 50)
	}

	spec := Spectrogram(samples, 44100)
	wantBins := NFFT/2 + 1
	if len(spec) != wantBins {
		t.Fatalf("bins = %d, want %d", len(spec), wantBins)
	}

	wantFrames := (len(samples)-NFFT)/HopSize + 1
	for i, row := range spec {
		if len(row) != wantFrames {
			t.Fatalf("row %d frames = %d, want %d", i, len(row), wantFrames)
		}
	}
}

func TestSpectrogramSilenceIsZero(t *testing.T) {
	samples := make([]int16, NFFT*2)
	spec := Spectrogram(samples, 44100)
	for f, row := range spec {
		for tFrame, v := range row {
			if v != 0 {
				t.Fatalf("silent signal produced non-zero db at [%d][%d]: %v", f, tFrame, v)
			}
		}
	}
}
