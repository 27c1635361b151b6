package catalog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	_ "github.com/mattn/go-sqlite3"

	"soundmark/models"
	"soundmark/utils"
)

type sqliteStore struct {
	db *sql.DB
}

// newSQLiteStore opens (creating if needed) a SQLite database at the path
// named by the "path" field of the backend params JSON.
func newSQLiteStore(params []byte) (*sqliteStore, error) {
	path := gjson.GetBytes(params, "path").String()
	if path == "" {
		path = "db/soundmark.db"
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create database directory: %v", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %v", path, err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Setup() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS songs (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			file_sha1 TEXT NOT NULL UNIQUE,
			fingerprinted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
			hash CHAR(20) NOT NULL,
			song_id INTEGER NOT NULL,
			time_offset INTEGER NOT NULL,
			PRIMARY KEY (song_id, hash, time_offset)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints(hash)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: schema setup failed: %v", err)
		}
	}
	return nil
}

func (s *sqliteStore) GetSongs() ([]models.Song, error) {
	rows, err := s.db.Query(`SELECT id, name, file_sha1, fingerprinted FROM songs`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query songs: %v", err)
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		var song models.Song
		var fingerprinted int
		if err := rows.Scan(&song.ID, &song.Name, &song.FileSHA1, &fingerprinted); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan song: %v", err)
		}
		song.Fingerprinted = fingerprinted != 0
		songs = append(songs, song)
	}
	return songs, nil
}

func (s *sqliteStore) GetSongByID(songID uint32) (models.Song, bool, error) {
	return s.getSong("id", songID)
}

func (s *sqliteStore) GetSongByFileSHA1(fileSHA1 string) (models.Song, bool, error) {
	return s.getSong("file_sha1", fileSHA1)
}

func (s *sqliteStore) getSong(column string, value interface{}) (models.Song, bool, error) {
	query := fmt.Sprintf(`SELECT id, name, file_sha1, fingerprinted FROM songs WHERE %s = ?`, column)
	row := s.db.QueryRow(query, value)

	var song models.Song
	var fingerprinted int
	err := row.Scan(&song.ID, &song.Name, &song.FileSHA1, &fingerprinted)
	if err == sql.ErrNoRows {
		return models.Song{}, false, nil
	}
	if err != nil {
		return models.Song{}, false, fmt.Errorf("sqlite: failed to get song: %v", err)
	}
	song.Fingerprinted = fingerprinted != 0
	return song, true, nil
}

func (s *sqliteStore) InsertSong(song models.Song) error {
	_, err := s.db.Exec(
		`INSERT INTO songs (id, name, file_sha1, fingerprinted) VALUES (?, ?, ?, ?)`,
		song.ID, song.Name, song.FileSHA1, boolToInt(song.Fingerprinted),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert song: %v", err)
	}
	return nil
}

func (s *sqliteStore) DeleteSongByID(songID uint32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: failed to start transaction: %v", err)
	}

	if _, err := tx.Exec(`DELETE FROM fingerprints WHERE song_id = ?`, songID); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: failed to delete fingerprints: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM songs WHERE id = ?`, songID); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: failed to delete song: %v", err)
	}

	return tx.Commit()
}

func (s *sqliteStore) InsertHashes(songID uint32, hashes []models.HashRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: failed to start transaction: %v", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO fingerprints (hash, song_id, time_offset) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: failed to prepare statement: %v", err)
	}
	defer stmt.Close()

	for _, h := range hashes {
		if _, err := stmt.Exec(h.Hash, songID, h.Anchor); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: failed to insert hash: %v", err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) SetSongFingerprinted(songID uint32) error {
	_, err := s.db.Exec(`UPDATE songs SET fingerprinted = 1 WHERE id = ?`, songID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark song fingerprinted: %v", err)
	}
	return nil
}

func (s *sqliteStore) ReturnMatches(hashes []models.HashRecord) ([]models.MatchPair, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	// A hash can recur in the query at several anchor times; every occurrence
	// must contribute its own MatchPair against each catalog row sharing the
	// hash, so keep the full list of query offsets per hash rather than
	// collapsing to one.
	byHash := make(map[string][]uint32, len(hashes))
	placeholders := make([]string, 0, len(hashes))
	args := make([]interface{}, 0, len(hashes))
	seenHash := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		byHash[h.Hash] = append(byHash[h.Hash], h.Anchor)
		if !seenHash[h.Hash] {
			seenHash[h.Hash] = true
			placeholders = append(placeholders, "?")
			args = append(args, h.Hash)
		}
	}

	query := fmt.Sprintf(
		`SELECT hash, song_id, time_offset FROM fingerprints WHERE hash IN (%s)`,
		strings.Join(placeholders, ","),
	)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query matches: %v", err)
	}
	defer rows.Close()

	var pairs []models.MatchPair
	for rows.Next() {
		var hash string
		var songID uint32
		var dbOffset uint32
		if err := rows.Scan(&hash, &songID, &dbOffset); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan match: %v", err)
		}
		for _, queryAnchor := range byHash[hash] {
			pairs = append(pairs, models.MatchPair{
				SongID: songID,
				Delta:  int64(dbOffset) - int64(queryAnchor),
			})
		}
	}

	return pairs, nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
