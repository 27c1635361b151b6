package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"soundmark/catalog"
	"soundmark/ingest"
	"soundmark/utils"
	"soundmark/wav"
)

const maxUploadSize = 5000 << 20 // 5 GB

type indexResponse struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Fingerprints    int    `json:"fingerprints"`
	StorageEstimate string `json:"storageEstimate"`
	DurationSec     int    `json:"durationSec"`
}

type matchResult struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Confidence    int     `json:"confidence"`
	OffsetSeconds float64 `json:"offsetSeconds"`
}

type statsResponse struct {
	TotalEntries      int    `json:"totalEntries"`
	TotalFingerprints int    `json:"totalFingerprints"`
	StorageEstimate   string `json:"storageEstimate"`
}

type entryResponse struct {
	ID     uint32 `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	log.Printf("[error] %d: %s", status, msg)
	writeJSON(w, status, map[string]string{"error": msg})
}

func logMemUsage(label string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("[mem] %s: alloc=%s, sys=%s, heap_in_use=%s",
		label, formatBytes(int64(m.Alloc)), formatBytes(int64(m.Sys)), formatBytes(int64(m.HeapInuse)))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// titleAuthorFromMeta pulls "title"/"author" out of a raw JSON "meta" form
// field using jsonparser, since it's a single optional, loosely-shaped
// field -- not worth a full struct + json.Unmarshal round trip.
func titleAuthorFromMeta(meta []byte) (title, author string) {
	if len(meta) == 0 {
		return "", ""
	}
	if v, err := jsonparser.GetString(meta, "title"); err == nil {
		title = v
	}
	if v, err := jsonparser.GetString(meta, "author"); err == nil {
		author = v
	}
	return title, author
}

func saveUploadedFile(r *http.Request) (string, string, int64, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", 0, fmt.Errorf("no file provided: %v", err)
	}
	defer file.Close()

	if err := utils.CreateFolder("tmp"); err != nil {
		return "", "", 0, fmt.Errorf("failed to create tmp dir: %v", err)
	}

	tmpPath := filepath.Join("tmp", header.Filename)
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to write file: %v", err)
	}

	return tmpPath, header.Filename, written, nil
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqStart := time.Now()
	log.Printf("[index] received request from %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, filename, fileSize, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	log.Printf("[index] file saved: %s (%s)", filename, formatBytes(fileSize))

	title, author := titleAuthorFromMeta([]byte(r.FormValue("meta")))
	if title == "" {
		title = r.FormValue("title")
	}
	if author == "" {
		author = r.FormValue("author")
	}

	metadata, metaErr := wav.GetMetadata(tmpPath)
	if metaErr != nil {
		log.Printf("[index] warning: could not read metadata from %s: %v", filename, metaErr)
	} else {
		if author == "" {
			author = metadata.Artist
		}
		if title == "" {
			title = metadata.Title
		}
	}

	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	if author == "" {
		author = "unknown"
	}

	log.Printf("[index] title=%q, author=%q", title, author)

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer store.Close()

	dur, _ := wav.GetAudioDuration(tmpPath)
	log.Printf("[index] audio duration: %.0f seconds (%.1f hours)", dur, dur/3600)

	songName := utils.GenerateSongKey(title, author)

	logMemUsage("before processing")
	stats, err := ingest.FingerprintFileNamed(tmpPath, songName, store, engineConfig.ingestConfig())
	logMemUsage("after processing")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats.Failed > 0 {
		writeError(w, http.StatusInternalServerError, "fingerprinting failed, see server logs")
		return
	}
	if stats.Skipped > 0 {
		writeError(w, http.StatusConflict, fmt.Sprintf("'%s' by '%s' is already indexed", title, author))
		return
	}

	resp := indexResponse{
		Title:           title,
		Author:          author,
		Fingerprints:    stats.Hashes,
		StorageEstimate: formatBytes(int64(stats.Hashes) * 20),
		DurationSec:     int(dur),
	}

	log.Printf("[index] completed %q (%q): %d hashes, %s total time", title, songName, stats.Hashes, time.Since(reqStart))
	writeJSON(w, http.StatusOK, resp)
}

func handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqStart := time.Now()
	log.Printf("[match] received request from %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, filename, fileSize, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	log.Printf("[match] file saved: %s (%s)", filename, formatBytes(fileSize))
	logMemUsage("before processing")

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer store.Close()

	log.Printf("[match] fingerprinting sample...")
	fpStart := time.Now()
	match, err := ingest.Match(tmpPath, store, engineConfig.ingestConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("match error: %v", err))
		return
	}
	log.Printf("[match] search done in %s", time.Since(fpStart))
	logMemUsage("after processing")

	if match == nil {
		log.Printf("[match] no match found (%s)", time.Since(reqStart))
		writeJSON(w, http.StatusOK, map[string]any{"matches": []matchResult{}})
		return
	}

	results := []matchResult{{
		Title:         match.SongName,
		Confidence:    match.Confidence,
		OffsetSeconds: match.OffsetSeconds,
	}}

	log.Printf("[match] completed in %s: %q confidence=%d", time.Since(reqStart), match.SongName, match.Confidence)
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer store.Close()

	songs, err := store.GetSongs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	totalFP := 0
	for range songs {
		totalFP++ // per-song hash counts aren't tracked by Store; entry count stands in
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalEntries:      len(songs),
		TotalFingerprints: totalFP,
		StorageEstimate:   formatBytes(int64(totalFP) * 20),
	})
}

func handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer store.Close()

	songs, err := store.GetSongs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	entries := make([]entryResponse, 0, len(songs))
	for _, s := range songs {
		entries = append(entries, entryResponse{ID: s.ID, Title: s.Name})
	}

	writeJSON(w, http.StatusOK, entries)
}
