// Package ingest is the orchestrator that turns a directory of audio files
// (or a single file) into catalog rows: content-hash dedupe, a bag-of-tasks
// worker pool for the CPU-heavy DSP work, and a single coordinator goroutine
// that serializes the three-step catalog write per song.
package ingest

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	xerrors "github.com/mdobak/go-xerrors"

	"soundmark/audio"
	"soundmark/catalog"
	"soundmark/fingerprint"
	"soundmark/models"
	"soundmark/utils"
	"soundmark/wav"
)

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true,
}

// Config parametrizes a run. Workers <= 0 means runtime.NumCPU(), floored
// at 1. FingerprintLimitSeconds <= 0 means no truncation. ChunkDurationSec
// <= 0 means whole-file (no chunking); chunking is also skipped whenever
// FingerprintLimitSeconds > 0, so the limit always applies.
type Config struct {
	Workers                 int
	FingerprintLimitSeconds float64
	ChunkDurationSec        float64
}

// Stats summarizes one FingerprintDirectory/FingerprintFile run. Hashes is
// the total landmark-hash count across files actually indexed this run.
type Stats struct {
	Indexed int
	Skipped int
	Failed  int
	Hashes  int
}

type fileOutcome struct {
	path     string
	name     string
	fileSHA1 string
	hashes   []models.HashRecord
	err      error
}

// FingerprintDirectory walks dir for audio files and ingests every one not
// already present in store (by content hash).
func FingerprintDirectory(dir string, store catalog.Store, cfg Config) (Stats, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Stats{}, xerrors.New(err)
	}

	return fingerprintPaths(paths, nil, store, cfg)
}

// FingerprintFile ingests a single audio file, deriving its catalog name
// from the filename.
func FingerprintFile(path string, store catalog.Store, cfg Config) (Stats, error) {
	return fingerprintPaths([]string{path}, nil, store, cfg)
}

// FingerprintFileNamed ingests a single audio file under an explicit
// catalog name, overriding the filename-derived default -- used by the
// HTTP driver, which has a title/author supplied separately from the
// uploaded file's name.
func FingerprintFileNamed(path, name string, store catalog.Store, cfg Config) (Stats, error) {
	return fingerprintPaths([]string{path}, map[string]string{path: name}, store, cfg)
}

func fingerprintPaths(paths []string, names map[string]string, store catalog.Store, cfg Config) (Stats, error) {
	if len(paths) == 0 {
		return Stats{}, nil
	}

	known, err := knownHashes(store)
	if err != nil {
		return Stats{}, err
	}

	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if maxWorkers > len(paths) {
		maxWorkers = len(paths)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	jobs := make(chan string, len(paths))
	results := make(chan fileOutcome, len(paths))

	for w := 0; w < maxWorkers; w++ {
		go func() {
			for path := range jobs {
				outcome := processFile(path, cfg)
				if name, ok := names[path]; ok && outcome.err == nil {
					outcome.name = name
				}
				results <- outcome
			}
		}()
	}
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	var stats Stats
	for i := 0; i < len(paths); i++ {
		outcome := <-results

		if outcome.err != nil {
			log.Printf("[ingest] %s: %+v", outcome.path, xerrors.New(outcome.err))
			stats.Failed++
			continue
		}

		if known[outcome.fileSHA1] {
			log.Printf("[ingest] %s: already indexed (sha1 %s), skipping", outcome.path, outcome.fileSHA1)
			stats.Skipped++
			continue
		}

		songID := utils.GenerateUniqueID()
		if err := store.InsertSong(models.Song{ID: songID, Name: outcome.name, FileSHA1: outcome.fileSHA1}); err != nil {
			log.Printf("[ingest] %s: %+v", outcome.path, xerrors.New(err))
			stats.Failed++
			continue
		}
		if err := store.InsertHashes(songID, outcome.hashes); err != nil {
			store.DeleteSongByID(songID)
			log.Printf("[ingest] %s: %+v", outcome.path, xerrors.New(err))
			stats.Failed++
			continue
		}
		if err := store.SetSongFingerprinted(songID); err != nil {
			store.DeleteSongByID(songID)
			log.Printf("[ingest] %s: %+v", outcome.path, xerrors.New(err))
			stats.Failed++
			continue
		}

		known[outcome.fileSHA1] = true
		log.Printf("[ingest] indexed '%s' (%d hashes)", outcome.name, len(outcome.hashes))
		stats.Indexed++
		stats.Hashes += len(outcome.hashes)
	}

	return stats, nil
}

func knownHashes(store catalog.Store) (map[string]bool, error) {
	songs, err := store.GetSongs()
	if err != nil {
		return nil, xerrors.New(err)
	}
	known := make(map[string]bool, len(songs))
	for _, s := range songs {
		if s.Fingerprinted {
			known[s.FileSHA1] = true
		}
	}
	return known, nil
}

func processFile(path string, cfg Config) fileOutcome {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	fileSHA1, err := audio.ContentHash(path)
	if err != nil {
		return fileOutcome{path: path, err: err}
	}

	var hashes []models.HashRecord
	if cfg.ChunkDurationSec > 0 && cfg.FingerprintLimitSeconds <= 0 {
		hashes, err = fingerprintChunked(path, cfg)
	} else {
		hashes, err = fingerprintWhole(path, cfg)
	}
	if err != nil {
		return fileOutcome{path: path, err: err}
	}

	return fileOutcome{path: path, name: name, fileSHA1: fileSHA1, hashes: hashes}
}

func fingerprintWhole(path string, cfg Config) ([]models.HashRecord, error) {
	channels, sampleRate, _, err := audio.Read(path, cfg.FingerprintLimitSeconds)
	if err != nil {
		return nil, err
	}
	return hashesForChannels(channels, sampleRate), nil
}

// fingerprintChunked processes long files in bounded-memory chunks, mirroring
// the teacher's FingerprintAudioChunked: a small overlap between chunks
// avoids losing peak pairs that straddle a chunk boundary.
func fingerprintChunked(path string, cfg Config) ([]models.HashRecord, error) {
	duration, err := wav.GetAudioDuration(path)
	if err != nil {
		return nil, err
	}

	overlap := 5.0
	step := cfg.ChunkDurationSec - overlap
	if step <= 0 {
		step = cfg.ChunkDurationSec
	}

	var all []models.HashRecord
	chunkIdx := 0
	for start := 0.0; start < duration; start += step {
		dur := cfg.ChunkDurationSec
		if start+dur > duration {
			dur = duration - start
		}
		if dur <= 0 {
			break
		}

		chunkPath, err := wav.ExtractChunkAsWAV(path, start, dur)
		if err != nil {
			return nil, err
		}

		channels, sampleRate, err := wav.ReadWavInfo(chunkPath)
		os.Remove(chunkPath)
		if err != nil {
			return nil, err
		}

		hashes := hashesForChannels(channels, sampleRate)

		frameOffset := uint32(start * float64(sampleRate) / float64(fingerprint.HopSize))
		for i := range hashes {
			hashes[i].Anchor += frameOffset
		}

		log.Printf("[chunk %d] %.0fs-%.0fs: %d hashes", chunkIdx, start, start+dur, len(hashes))
		all = append(all, hashes...)
		chunkIdx++
	}

	return all, nil
}

func hashesForChannel(samples []int16, sampleRate int) []models.HashRecord {
	spec := fingerprint.Spectrogram(samples, sampleRate)
	if spec == nil {
		return nil
	}
	peaks := fingerprint.ExtractPeaks(spec, fingerprint.AmpMin)
	return fingerprint.Hashes(peaks, fingerprint.FanValue)
}

// hashesForChannels fingerprints every channel independently and takes the
// set-union of the resulting hash records, deduped by (hash, anchor) -- a
// landmark pair straddling both channels of a stereo recording should only
// contribute one row to the catalog.
func hashesForChannels(channels [][]int16, sampleRate int) []models.HashRecord {
	type key struct {
		hash   string
		anchor uint32
	}
	seen := make(map[key]bool)
	var union []models.HashRecord
	for _, samples := range channels {
		for _, h := range hashesForChannel(samples, sampleRate) {
			k := key{h.Hash, h.Anchor}
			if seen[k] {
				continue
			}
			seen[k] = true
			union = append(union, h)
		}
	}
	return union
}
