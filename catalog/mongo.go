package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soundmark/models"
)

type mongoStore struct {
	client      *mongo.Client
	songs       *mongo.Collection
	fingerprints *mongo.Collection
}

// mongoSong and mongoFingerprint are the BSON document shapes; kept
// separate from models.Song/models.Fingerprint so the catalog package
// owns its own wire format independent of the in-memory types.
type mongoSong struct {
	ID            uint32 `bson:"_id"`
	Name          string `bson:"name"`
	FileSHA1      string `bson:"file_sha1"`
	Fingerprinted bool   `bson:"fingerprinted"`
}

type mongoFingerprint struct {
	Hash       string `bson:"hash"`
	SongID     uint32 `bson:"song_id"`
	TimeOffset uint32 `bson:"time_offset"`
}

// newMongoStore connects to the URI/database named by the "uri" and
// "database" fields of the backend params JSON.
func newMongoStore(params []byte) (*mongoStore, error) {
	uri := gjson.GetBytes(params, "uri").String()
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := gjson.GetBytes(params, "database").String()
	if dbName == "" {
		dbName = "soundmark"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo: failed to ping: %v", err)
	}

	db := client.Database(dbName)
	return &mongoStore{
		client:       client,
		songs:        db.Collection("songs"),
		fingerprints: db.Collection("fingerprints"),
	}, nil
}

func (m *mongoStore) Setup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.songs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "file_sha1", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create songs index: %v", err)
	}

	_, err = m.fingerprints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "hash", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "song_id", Value: 1},
				{Key: "hash", Value: 1},
				{Key: "time_offset", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create fingerprints indexes: %v", err)
	}

	return nil
}

func (m *mongoStore) GetSongs() ([]models.Song, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := m.songs.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to query songs: %v", err)
	}
	defer cur.Close(ctx)

	var songs []models.Song
	for cur.Next(ctx) {
		var doc mongoSong
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: failed to decode song: %v", err)
		}
		songs = append(songs, models.Song(doc))
	}
	return songs, nil
}

func (m *mongoStore) GetSongByID(songID uint32) (models.Song, bool, error) {
	return m.getSong(bson.D{{Key: "_id", Value: songID}})
}

func (m *mongoStore) GetSongByFileSHA1(fileSHA1 string) (models.Song, bool, error) {
	return m.getSong(bson.D{{Key: "file_sha1", Value: fileSHA1}})
}

func (m *mongoStore) getSong(filter bson.D) (models.Song, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc mongoSong
	err := m.songs.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return models.Song{}, false, nil
	}
	if err != nil {
		return models.Song{}, false, fmt.Errorf("mongo: failed to get song: %v", err)
	}
	return models.Song(doc), true, nil
}

func (m *mongoStore) InsertSong(song models.Song) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.songs.InsertOne(ctx, mongoSong(song))
	if err != nil {
		return fmt.Errorf("mongo: failed to insert song: %v", err)
	}
	return nil
}

func (m *mongoStore) DeleteSongByID(songID uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.fingerprints.DeleteMany(ctx, bson.D{{Key: "song_id", Value: songID}}); err != nil {
		return fmt.Errorf("mongo: failed to delete fingerprints: %v", err)
	}
	if _, err := m.songs.DeleteOne(ctx, bson.D{{Key: "_id", Value: songID}}); err != nil {
		return fmt.Errorf("mongo: failed to delete song: %v", err)
	}
	return nil
}

func (m *mongoStore) InsertHashes(songID uint32, hashes []models.HashRecord) error {
	if len(hashes) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs := make([]interface{}, len(hashes))
	for i, h := range hashes {
		docs[i] = mongoFingerprint{Hash: h.Hash, SongID: songID, TimeOffset: h.Anchor}
	}

	_, err := m.fingerprints.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		// duplicate key errors are expected on re-ingest collisions and are
		// not a failure -- InsertHashes drops duplicate rows by contract.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("mongo: failed to insert hashes: %v", err)
	}
	return nil
}

func (m *mongoStore) SetSongFingerprinted(songID uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.songs.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: songID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "fingerprinted", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("mongo: failed to mark song fingerprinted: %v", err)
	}
	return nil
}

func (m *mongoStore) ReturnMatches(hashes []models.HashRecord) ([]models.MatchPair, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	// A hash can recur in the query at several anchor times; every occurrence
	// must contribute its own MatchPair against each catalog row sharing the
	// hash, so keep the full list of query offsets per hash rather than
	// collapsing to one.
	byHash := make(map[string][]uint32, len(hashes))
	hashValues := make([]string, 0, len(hashes))
	seenHash := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		byHash[h.Hash] = append(byHash[h.Hash], h.Anchor)
		if !seenHash[h.Hash] {
			seenHash[h.Hash] = true
			hashValues = append(hashValues, h.Hash)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cur, err := m.fingerprints.Find(ctx, bson.D{{Key: "hash", Value: bson.D{{Key: "$in", Value: hashValues}}}})
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to query matches: %v", err)
	}
	defer cur.Close(ctx)

	var pairs []models.MatchPair
	for cur.Next(ctx) {
		var doc mongoFingerprint
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: failed to decode match: %v", err)
		}
		for _, queryAnchor := range byHash[doc.Hash] {
			pairs = append(pairs, models.MatchPair{
				SongID: doc.SongID,
				Delta:  int64(doc.TimeOffset) - int64(queryAnchor),
			})
		}
	}

	return pairs, nil
}

func (m *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
