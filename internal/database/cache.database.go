package database

import (
	"context"
	"fmt"
	"gekoimport/config"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/valkey-io/valkey-go"
)

// Valkey Database Index Organization
const (
	// GENERAL_CACHE_INDEX (DB 0) - General purpose caching
	GENERAL_CACHE_INDEX = iota

	// IMPORT_CACHE_INDEX (DB 1) - Import job coordination
	// Cancellation flags shared by every API instance running import workers
	IMPORT_CACHE_INDEX

	// EVENTS_CACHE_INDEX (DB 2) - Event-driven data
	// Pub/sub for job progress pushed to websocket clients
	EVENTS_CACHE_INDEX
)

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")
	log.Info("initializing cache database")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" || port == 0 {
		return log.Errorf("failed to initialize cache database", "address or port is empty")
	}

	var cacheDB Cache

	var err error
	cacheDB.General, err = newCacheClient(address, port, GENERAL_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create general valkey client", err)
	}

	cacheDB.Imports, err = newCacheClient(address, port, IMPORT_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create imports valkey client", err)
	}

	cacheDB.Events, err = newCacheClient(address, port, EVENTS_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create events valkey client", err)
	}

	s.Cache = cacheDB

	if config.DatabaseCacheReset != -1 {
		go clearCacheDB(config.DatabaseCacheReset, cacheDB)
	}

	return nil
}

func newCacheClient(address string, port int, index int) (valkey.Client, error) {
	return valkey.NewClient(
		valkey.ClientOption{
			InitAddress: []string{fmt.Sprintf("%s:%d", address, port)},
			SelectDB:    index,
		},
	)
}

func clearCacheDB(index int, cacheDB Cache) {
	log := logger.New("database").File("cache.database").Function("clearCacheDB")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var client CacheClient
	var dbName string

	switch index {
	case GENERAL_CACHE_INDEX:
		client = cacheDB.General
		dbName = "General"
	case IMPORT_CACHE_INDEX:
		client = cacheDB.Imports
		dbName = "Imports"
	case EVENTS_CACHE_INDEX:
		client = cacheDB.Events
		dbName = "Events"
	default:
		log.Warn("Invalid cache database index", "index", index)
		return
	}

	if err := client.Do(ctx, client.B().Flushdb().Build()).Error(); err != nil {
		log.Er("Failed to clear cache database", err, "index", index, "dbName", dbName)
		return
	}

	log.Info("Successfully cleared cache database", "index", index, "dbName", dbName)
}
