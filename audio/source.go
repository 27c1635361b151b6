// Package audio is the Audio Source collaborator: it turns an arbitrary
// input file into per-channel PCM plus the content hash used to recognize
// already-ingested files.
package audio

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"soundmark/wav"
)

// blockSize is the read chunk size for the content hash, matching dejavu's
// unique_hash(filepath, blocksize=2**20).
const blockSize = 1 << 20

// Read decodes path into per-channel int16 PCM and the sample rate, and
// computes the file's content hash. Non-WAV input is transcoded to WAV with
// ffmpeg first. If limitSeconds > 0 the audio is truncated to that many
// seconds from the start before decoding, per EngineConfig's FingerprintLimit.
func Read(path string, limitSeconds float64) (channels [][]int16, sampleRate int, fileSHA1 string, err error) {
	fileSHA1, err = ContentHash(path)
	if err != nil {
		return nil, 0, "", err
	}

	wavPath := path
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		wavPath, err = wav.ConvertToWAV(path)
		if err != nil {
			return nil, 0, "", fmt.Errorf("failed to convert to wav: %v", err)
		}
		defer os.Remove(wavPath)
	}

	if limitSeconds > 0 {
		chunkPath, cerr := wav.ExtractChunkAsWAV(wavPath, 0, limitSeconds)
		if cerr != nil {
			return nil, 0, "", fmt.Errorf("failed to apply fingerprint limit: %v", cerr)
		}
		defer os.Remove(chunkPath)
		wavPath = chunkPath
	}

	channels, sampleRate, err = wav.ReadWavInfo(wavPath)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to decode wav: %v", err)
	}

	return channels, sampleRate, fileSHA1, nil
}

// ContentHash computes the uppercase-hex SHA-1 digest of a file's bytes,
// read in blockSize chunks so arbitrarily large files don't need to be
// held in memory at once.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("contenthash: failed to open %s: %v", path, err)
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("contenthash: failed to read %s: %v", path, err)
	}

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}
