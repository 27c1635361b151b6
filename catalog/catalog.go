// Package catalog is the Catalog Store collaborator: a pluggable backend
// for song metadata and their landmark fingerprints.
package catalog

import (
	"fmt"

	"soundmark/models"
)

// Store is the contract every catalog backend implements. The ingestion
// orchestrator makes all of its Store calls from one coordinator goroutine;
// its file workers never call the Store.
type Store interface {
	// Setup prepares the backend's schema/collections. Idempotent.
	Setup() error

	// GetSongs returns every catalog song, fingerprinted or not.
	GetSongs() ([]models.Song, error)

	// GetSongByID returns a song and whether it exists.
	GetSongByID(songID uint32) (models.Song, bool, error)

	// GetSongByFileSHA1 returns a song and whether one with this content
	// hash already exists.
	GetSongByFileSHA1(fileSHA1 string) (models.Song, bool, error)

	// InsertSong creates a new, not-yet-fingerprinted song row.
	InsertSong(song models.Song) error

	// DeleteSongByID removes a song and (backend-specific) its fingerprints.
	DeleteSongByID(songID uint32) error

	// InsertHashes bulk-inserts a song's landmark hashes. Duplicate
	// (songID, hash, offset) rows are silently dropped.
	InsertHashes(songID uint32, hashes []models.HashRecord) error

	// SetSongFingerprinted flips the song's fingerprinted flag, the final
	// step of a successful ingest.
	SetSongFingerprinted(songID uint32) error

	// ReturnMatches resolves a set of query hashes to (songID, delta) pairs
	// for every catalog fingerprint sharing one of those hashes.
	ReturnMatches(hashes []models.HashRecord) ([]models.MatchPair, error)

	// Close releases the backend's connection/handle.
	Close() error
}

// Config selects and parametrizes a backend. Params is the backend-specific
// connection bag (DSN, URI, database name, ...), carried as raw JSON and
// read with gjson rather than a fixed struct, since its shape is
// inherently backend-specific.
type Config struct {
	Type   string // "sqlite" or "mongo"
	Params []byte
}

// New dispatches on cfg.Type and returns a ready (Setup-called) Store.
func New(cfg Config) (Store, error) {
	var store Store
	var err error

	switch cfg.Type {
	case "sqlite":
		store, err = newSQLiteStore(cfg.Params)
	case "mongo":
		store, err = newMongoStore(cfg.Params)
	default:
		return nil, fmt.Errorf("catalog: unknown database_type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Setup(); err != nil {
		store.Close()
		return nil, fmt.Errorf("catalog: setup failed: %v", err)
	}

	return store, nil
}
