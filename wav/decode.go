package wav

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadWavInfo decodes a 16-bit PCM WAV file into per-channel int16 sample
// slices, following zfogg-sidechain's decoder.NewDecoder -> FullPCMBuffer
// pattern. It is the missing half of the teacher's wav package: ConvertToWAV
// only produces a .wav file on disk, this reads it back into memory.
func ReadWavInfo(path string) (channels [][]int16, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open wav file: %v", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read pcm buffer: %v", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("empty wav buffer: %s", path)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		numChannels = 1
	}

	frames := len(buf.Data) / numChannels
	channels = make([][]int16, numChannels)
	for c := range channels {
		channels[c] = make([]int16, frames)
	}

	for i, sample := range buf.Data {
		c := i % numChannels
		frame := i / numChannels
		if frame >= frames {
			break
		}
		channels[c][frame] = int16(sample)
	}

	return channels, int(buf.Format.SampleRate), nil
}
