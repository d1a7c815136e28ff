package services

import (
	"context"
	"gekoimport/internal/database"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	IMPORT_CANCEL_HASH = "import:cancel"
	importCancelTTL    = 24 * time.Hour
)

type cancelSignal struct {
	RequestedAt time.Time `json:"requestedAt"`
}

// ImportCancelService shares cancellation requests between API instances through valkey.
// Without a cache client every call is a no-op and only in-process cancellation applies.
type ImportCancelService struct {
	cache valkey.Client
	log   logger.Logger
}

func NewImportCancelService(cache valkey.Client) *ImportCancelService {
	return &ImportCancelService{
		cache: cache,
		log:   logger.New("importCancelService"),
	}
}

func (s *ImportCancelService) Signal(ctx context.Context, jobID uuid.UUID) error {
	if s == nil || s.cache == nil {
		return nil
	}
	log := s.log.Function("Signal")

	err := database.NewCacheBuilder(s.cache, jobID).
		WithHash(IMPORT_CANCEL_HASH).
		WithStruct(cancelSignal{RequestedAt: time.Now().UTC()}).
		WithTTL(importCancelTTL).
		WithContext(ctx).
		Set()
	if err != nil {
		return log.Err("failed to store cancel signal", err, "jobID", jobID)
	}

	return nil
}

func (s *ImportCancelService) IsSignalled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	if s == nil || s.cache == nil {
		return false, nil
	}
	log := s.log.Function("IsSignalled")

	var signal cancelSignal
	found, err := database.NewCacheBuilder(s.cache, jobID).
		WithHash(IMPORT_CANCEL_HASH).
		WithContext(ctx).
		Get(&signal)
	if err != nil {
		return false, log.Err("failed to read cancel signal", err, "jobID", jobID)
	}

	return found, nil
}

func (s *ImportCancelService) Clear(ctx context.Context, jobID uuid.UUID) error {
	if s == nil || s.cache == nil {
		return nil
	}
	log := s.log.Function("Clear")

	err := database.NewCacheBuilder(s.cache, jobID).
		WithHash(IMPORT_CANCEL_HASH).
		WithContext(ctx).
		Delete()
	if err != nil {
		return log.Err("failed to clear cancel signal", err, "jobID", jobID)
	}

	return nil
}
