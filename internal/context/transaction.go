package context

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type contextKey string

const (
	TRANSACTION_KEY contextKey = "transaction"
	IMPORT_JOB_KEY  contextKey = "importJob"
	TRACE_ID_KEY    contextKey = "traceID"
)

// GetTransaction retrieves a transaction from the context
func GetTransaction(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(TRANSACTION_KEY).(*gorm.DB)
	return tx, ok
}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, TRANSACTION_KEY, tx)
}

// WithImportJob tags the context with the import job being processed.
func WithImportJob(ctx context.Context, jobID uuid.UUID) context.Context {
	return context.WithValue(ctx, IMPORT_JOB_KEY, jobID)
}

func GetImportJob(ctx context.Context) (uuid.UUID, bool) {
	jobID, ok := ctx.Value(IMPORT_JOB_KEY).(uuid.UUID)
	return jobID, ok
}

// WithTraceID carries the request trace id to code that outlives the request.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TRACE_ID_KEY, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(TRACE_ID_KEY).(string)
	return traceID, ok && traceID != ""
}
