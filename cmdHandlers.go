package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"soundmark/catalog"
	"soundmark/ingest"
	"soundmark/utils"
	"soundmark/wav"
)

const (
	SONGS_DIR = "songs"
)

func find(filePath string) {
	log.Printf("[find] fingerprinting %s...", filePath)

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		fmt.Println("error opening catalog:", err)
		return
	}
	defer store.Close()

	start := time.Now()
	match, err := ingest.Match(filePath, store, engineConfig.ingestConfig())
	if err != nil {
		fmt.Println("error matching:", err)
		return
	}

	if match == nil {
		color.Red("\nno match found.")
		fmt.Printf("search took: %s\n", time.Since(start))
		return
	}

	color.Green("\nmatch found: %s", match.SongName)
	fmt.Printf("\tconfidence:     %d\n", match.Confidence)
	fmt.Printf("\toffset:         %.2fs\n", match.OffsetSeconds)
	fmt.Printf("search took: %s\n", time.Since(start))
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/index", handleIndex)
	mux.HandleFunc("/api/match", handleMatch)
	mux.HandleFunc("/api/stats", handleStats)
	mux.HandleFunc("/api/entries", handleEntries)

	mux.Handle("/", http.FileServer(http.Dir("static")))

	handler := requestLogger(corsMiddleware(mux))

	log.Printf("starting server on port %s (%s)\n", port, protocol)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rec, r)

		// skip noisy static file / stats polling logs
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/stats" {
			log.Printf("[http] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func erase(songsDir string, dbOnly bool, all bool) {
	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		fmt.Printf("error opening catalog: %v\n", err)
		return
	}
	defer store.Close()

	songs, err := store.GetSongs()
	if err != nil {
		fmt.Printf("error listing songs: %v\n", err)
	}
	for _, s := range songs {
		if err := store.DeleteSongByID(s.ID); err != nil {
			fmt.Printf("error deleting song %d: %v\n", s.ID, err)
		}
	}

	fmt.Println("database cleared")

	if !all {
		fmt.Println("erase complete")
		return
	}

	err = filepath.Walk(songsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".wav" || ext == ".m4a" || ext == ".mp3" || ext == ".flac" || ext == ".ogg" {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error cleaning files in %s: %v\n", songsDir, err)
	}
	fmt.Println("audio files cleared")
	fmt.Println("erase complete")
}

func save(path string, force bool) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	store, err := catalog.New(engineConfig.catalogConfig())
	if err != nil {
		fmt.Printf("error opening catalog: %v\n", err)
		return
	}
	defer store.Close()

	var stats ingest.Stats
	if fileInfo.IsDir() {
		stats, err = ingest.FingerprintDirectory(path, store, engineConfig.ingestConfig())
	} else {
		stats, err = saveEntry(path, store, force)
	}
	if err != nil {
		fmt.Printf("error saving (%v): %v\n", path, err)
		return
	}

	fmt.Printf("\nprocessed: %d indexed, %d skipped, %d failed (%d hashes)\n",
		stats.Indexed, stats.Skipped, stats.Failed, stats.Hashes)
}

func saveEntry(filePath string, store catalog.Store, force bool) (ingest.Stats, error) {
	metadata, err := wav.GetMetadata(filePath)

	title := metadata.Title
	author := metadata.Artist
	if err != nil {
		log.Printf("[save] warning: could not read metadata from %s: %v", filePath, err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	if author == "" {
		author = "unknown"
	}
	if !force && author == "unknown" {
		log.Printf("[save] %s: no artist tag, indexing anyway (use -f to silence this)", filePath)
	}

	name := utils.GenerateSongKey(title, author)
	stats, err := ingest.FingerprintFileNamed(filePath, name, store, engineConfig.ingestConfig())
	if err != nil {
		return stats, fmt.Errorf("failed to process '%s': %v", filePath, err)
	}

	fmt.Printf("indexed '%s' by '%s' (%d hashes)\n", title, author, stats.Hashes)
	return stats, nil
}
