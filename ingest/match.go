package ingest

import (
	xerrors "github.com/mdobak/go-xerrors"

	"soundmark/audio"
	"soundmark/catalog"
	"soundmark/fingerprint"
	"soundmark/models"
)

// storeLookup adapts a catalog.Store to fingerprint.SongLookup so the
// aligner doesn't need to import the catalog package directly.
type storeLookup struct {
	store catalog.Store
}

func (l storeLookup) SongByID(songID uint32) (string, string, bool) {
	song, ok, err := l.store.GetSongByID(songID)
	if err != nil || !ok {
		return "", "", false
	}
	return song.Name, song.FileSHA1, true
}

// Match fingerprints a query recording and resolves it against store. A nil
// *models.Match with a nil error means no match was found -- NoMatch is
// represented as the absence of a result, not an error value.
func Match(path string, store catalog.Store, cfg Config) (*models.Match, error) {
	channels, sampleRate, _, err := audio.Read(path, cfg.FingerprintLimitSeconds)
	if err != nil {
		return nil, xerrors.New(err)
	}

	hashes := hashesForChannels(channels, sampleRate)
	if len(hashes) == 0 {
		return nil, nil
	}

	pairs, err := store.ReturnMatches(hashes)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return fingerprint.Align(pairs, storeLookup{store: store}, sampleRate)
}
