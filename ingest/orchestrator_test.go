package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"soundmark/models"
)

// memStore is a minimal in-memory catalog.Store double for exercising the
// orchestrator without a real database backend.
type memStore struct {
	mu     sync.Mutex
	songs  map[uint32]models.Song
	hashes map[uint32][]models.HashRecord
	nextID uint32
}

func newMemStore() *memStore {
	return &memStore{songs: map[uint32]models.Song{}, hashes: map[uint32][]models.HashRecord{}}
}

func (m *memStore) Setup() error { return nil }

func (m *memStore) GetSongs() ([]models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Song, 0, len(m.songs))
	for _, s := range m.songs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) GetSongByID(songID uint32) (models.Song, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[songID]
	return s, ok, nil
}

func (m *memStore) GetSongByFileSHA1(fileSHA1 string) (models.Song, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.songs {
		if s.FileSHA1 == fileSHA1 {
			return s, true, nil
		}
	}
	return models.Song{}, false, nil
}

func (m *memStore) InsertSong(song models.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[song.ID]; ok {
		return fmt.Errorf("memstore: song %d already exists", song.ID)
	}
	m.songs[song.ID] = song
	return nil
}

func (m *memStore) DeleteSongByID(songID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.songs, songID)
	delete(m.hashes, songID)
	return nil
}

func (m *memStore) InsertHashes(songID uint32, hashes []models.HashRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[songID] = append(m.hashes[songID], hashes...)
	return nil
}

func (m *memStore) SetSongFingerprinted(songID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[songID]
	if !ok {
		return fmt.Errorf("memstore: unknown song %d", songID)
	}
	s.Fingerprinted = true
	m.songs[songID] = s
	return nil
}

func (m *memStore) ReturnMatches(hashes []models.HashRecord) ([]models.MatchPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byHash := make(map[string][]uint32, len(hashes))
	for _, h := range hashes {
		byHash[h.Hash] = append(byHash[h.Hash], h.Anchor)
	}
	var pairs []models.MatchPair
	for songID, recs := range m.hashes {
		for _, r := range recs {
			for _, anchor := range byHash[r.Hash] {
				pairs = append(pairs, models.MatchPair{SongID: songID, Delta: int64(r.Anchor) - int64(anchor)})
			}
		}
	}
	return pairs, nil
}

func (m *memStore) Close() error { return nil }

func writeToneWAV(t *testing.T, path string, sampleRate int, seconds float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	n := int(float64(sampleRate) * seconds)
	samples := make([]int, n)
	for i := range samples {
		// a simple two-tone signal gives the spectrogram distinguishable peaks
		samples[i] = int(8000.0*sine(float64(i)/float64(sampleRate)*440*2*3.14159265) +
			4000.0*sine(float64(i)/float64(sampleRate)*880*2*3.14159265))
	}

	enc := gowav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

// sine avoids importing math solely for a test fixture generator.
func sine(x float64) float64 {
	// Bhaskara I's sine approximation, good enough for a synthetic test tone.
	for x > 2*3.14159265 {
		x -= 2 * 3.14159265
	}
	for x < 0 {
		x += 2 * 3.14159265
	}
	pi := 3.14159265
	if x > pi {
		return -sine(x - pi)
	}
	return 16 * x * (pi - x) / (5*pi*pi - 4*x*(pi-x))
}

func TestFingerprintFileIndexesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeToneWAV(t, path, 11025, 3)

	store := newMemStore()
	stats, err := FingerprintFile(path, store, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", stats.Indexed)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}

	songs, _ := store.GetSongs()
	if len(songs) != 1 {
		t.Fatalf("expected 1 song in store, got %d", len(songs))
	}
	if !songs[0].Fingerprinted {
		t.Errorf("expected song to be marked fingerprinted")
	}
}

func TestFingerprintFileSkipsAlreadyIndexed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeToneWAV(t, path, 11025, 3)

	store := newMemStore()
	if _, err := FingerprintFile(path, store, Config{}); err != nil {
		t.Fatalf("unexpected error on first pass: %v", err)
	}

	stats, err := FingerprintFile(path, store, Config{})
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Indexed != 0 {
		t.Errorf("Indexed = %d, want 0", stats.Indexed)
	}
}

func TestFingerprintFileNamedUsesGivenName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeToneWAV(t, path, 11025, 3)

	store := newMemStore()
	_, err := FingerprintFileNamed(path, "my-custom-name", store, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	songs, _ := store.GetSongs()
	if len(songs) != 1 || songs[0].Name != "my-custom-name" {
		t.Fatalf("expected song named 'my-custom-name', got %+v", songs)
	}
}

// toneSamples synthesizes a simple multi-tone mono PCM signal for directly
// exercising hashesForChannels without going through a WAV file on disk.
func toneSamples(sampleRate int, seconds float64, freqsHz ...float64) []int16 {
	n := int(float64(sampleRate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		var v float64
		for _, f := range freqsHz {
			v += 6000.0 * sine(float64(i)/float64(sampleRate)*f*2*3.14159265)
		}
		samples[i] = int16(v)
	}
	return samples
}

func TestHashesForChannelsDedupesIdenticalChannels(t *testing.T) {
	mono := toneSamples(11025, 3, 440, 880)

	single := hashesForChannels([][]int16{mono}, 11025)
	doubled := hashesForChannels([][]int16{mono, mono}, 11025)

	if len(single) == 0 {
		t.Fatal("expected a non-empty hash set from the synthetic tone")
	}
	if len(doubled) != len(single) {
		t.Errorf("duplicate channel should dedupe to the same hash count: single=%d doubled=%d", len(single), len(doubled))
	}
}

func TestHashesForChannelsUnionsDistinctChannels(t *testing.T) {
	left := toneSamples(11025, 3, 440, 880)
	right := toneSamples(11025, 3, 1200, 1800)

	leftOnly := hashesForChannels([][]int16{left}, 11025)
	union := hashesForChannels([][]int16{left, right}, 11025)

	if len(union) <= len(leftOnly) {
		t.Errorf("expected the second channel's distinct content to grow the union: left-only=%d union=%d", len(leftOnly), len(union))
	}
}

func TestFingerprintDirectoryIndexesAllAudioFiles(t *testing.T) {
	dir := t.TempDir()
	writeToneWAV(t, filepath.Join(dir, "a.wav"), 11025, 2)
	// a different length gives b.wav different bytes, so its content hash
	// does not collide with a.wav's and both files are indexed.
	writeToneWAV(t, filepath.Join(dir, "b.wav"), 11025, 3)
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	stats, err := FingerprintDirectory(dir, store, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", stats.Indexed)
	}
}
