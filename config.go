package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"soundmark/catalog"
	"soundmark/ingest"
	"soundmark/utils"
)

// EngineConfig is the process-wide configuration, read from environment
// variables (optionally loaded from .env by godotenv). The database
// connection bag is inherently backend-specific, so it's carried as raw
// JSON rather than a fixed struct.
type EngineConfig struct {
	DatabaseType     string
	DatabaseParams   []byte
	FingerprintLimit float64
	ChunkDurationSec float64
	Workers          int
}

// LoadEngineConfig reads EngineConfig from the environment, matching the
// teacher's GetEnv-with-default pattern.
func LoadEngineConfig() (EngineConfig, error) {
	limit, err := strconv.ParseFloat(utils.GetEnv("FINGERPRINT_LIMIT", "0"), 64)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("invalid FINGERPRINT_LIMIT: %v", err)
	}

	chunkDur, err := strconv.ParseFloat(utils.GetEnv("CHUNK_DURATION_SEC", "300"), 64)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("invalid CHUNK_DURATION_SEC: %v", err)
	}

	workers, err := strconv.Atoi(utils.GetEnv("WORKERS", "0"))
	if err != nil {
		return EngineConfig{}, fmt.Errorf("invalid WORKERS: %v", err)
	}

	dbType := utils.GetEnv("DATABASE_TYPE", "sqlite")
	dbParams := utils.GetEnv("DATABASE_PARAMS", "{}")
	if !json.Valid([]byte(dbParams)) {
		return EngineConfig{}, fmt.Errorf("DATABASE_PARAMS is not valid JSON")
	}

	return EngineConfig{
		DatabaseType:     dbType,
		DatabaseParams:   []byte(dbParams),
		FingerprintLimit: limit,
		ChunkDurationSec: chunkDur,
		Workers:          workers,
	}, nil
}

func (c EngineConfig) catalogConfig() catalog.Config {
	return catalog.Config{Type: c.DatabaseType, Params: c.DatabaseParams}
}

func (c EngineConfig) ingestConfig() ingest.Config {
	return ingest.Config{
		Workers:                 c.Workers,
		FingerprintLimitSeconds: c.FingerprintLimit,
		ChunkDurationSec:        c.ChunkDurationSec,
	}
}
