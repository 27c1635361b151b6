package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Listener streams microphone input through a sliding window and invokes
// onWindow with each window's mono PCM once enough audio has accumulated.
// It is a thin live-recognition path, not part of the core ingest/match
// contract: the caller is expected to run Spectrogram/ExtractPeaks/Hashes
// and a catalog lookup against each window.
type Listener struct {
	stream     *portaudio.Stream
	sampleRate int
	windowLen  int

	mu     sync.Mutex
	buffer []int16
	onWindow func(samples []int16, sampleRate int)
}

// NewListener opens the default input device at sampleRate and arms it to
// call onWindow every time windowSeconds worth of fresh audio is available.
func NewListener(sampleRate int, windowSeconds float64, onWindow func(samples []int16, sampleRate int)) (*Listener, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: failed to initialize portaudio: %v", err)
	}

	l := &Listener{
		sampleRate: sampleRate,
		windowLen:  int(float64(sampleRate) * windowSeconds),
		onWindow:   onWindow,
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("mic: failed to get default input device: %v", err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: 1024,
	}

	stream, err := portaudio.OpenStream(params, l.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("mic: failed to open input stream: %v", err)
	}
	l.stream = stream

	return l, nil
}

// Start begins capture. Call Stop to release the device.
func (l *Listener) Start() error {
	return l.stream.Start()
}

// Stop halts capture and releases the portaudio device.
func (l *Listener) Stop() error {
	if err := l.stream.Stop(); err != nil {
		return err
	}
	if err := l.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

func (l *Listener) callback(in []float32) {
	if len(in) == 0 {
		return
	}

	l.mu.Lock()
	for _, s := range in {
		l.buffer = append(l.buffer, float32ToInt16(s))
	}

	for len(l.buffer) >= l.windowLen {
		window := make([]int16, l.windowLen)
		copy(window, l.buffer[:l.windowLen])
		l.buffer = l.buffer[l.windowLen:]
		onWindow := l.onWindow
		l.mu.Unlock()
		onWindow(window, l.sampleRate)
		l.mu.Lock()
	}
	l.mu.Unlock()
}

func float32ToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}
