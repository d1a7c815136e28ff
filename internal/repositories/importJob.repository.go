package repositories

import (
	"context"
	"errors"
	"gekoimport/internal/database"
	. "gekoimport/internal/models"
	"time"

	contextutil "gekoimport/internal/context"
	logger "github.com/Bparsons0904/goLogger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DEFAULT_HISTORY_LIMIT = 50
	MAX_HISTORY_LIMIT     = 500
)

var activeImportStatuses = []ImportStatus{ImportStatusPending, ImportStatusProcessing}

// ImportProgress is the snapshot written after every processed item.
type ImportProgress struct {
	Progress       int
	ItemsProcessed int
	Stats          ImportStats
	ItemErrors     []ImportItemError
}

// ImportResult is the terminal snapshot of a job.
type ImportResult struct {
	Status      ImportStatus
	Progress    int
	Processed   int
	Stats       ImportStats
	ItemErrors  []ImportItemError
	Error       *string
	CompletedAt time.Time
	Duration    float64
}

// ImportJobRepository is the only write path for import job records. Every state change
// is a conditional UPDATE so a terminal status can never be overwritten and progress
// never moves backwards, regardless of how many writers race.
type ImportJobRepository interface {
	Create(ctx context.Context, job *ImportJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	List(ctx context.Context, limit int) ([]*ImportJob, error)
	ListByStatus(ctx context.Context, status ImportStatus) ([]*ImportJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
	SetTotalItems(ctx context.Context, id uuid.UUID, total int) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress ImportProgress) (bool, error)
	Finish(ctx context.Context, id uuid.UUID, result ImportResult) (bool, error)
	CancelPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FailStale(
		ctx context.Context,
		message string,
		at time.Time,
		staleBefore time.Time,
		exclude []uuid.UUID,
	) (int64, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]*ImportJob, error)
	Ping(ctx context.Context) error
}

type importJobRepository struct {
	db  database.DB
	log logger.Logger
}

func NewImportJobRepository(db database.DB) ImportJobRepository {
	return &importJobRepository{
		db:  db,
		log: logger.New("importJobRepository"),
	}
}

func (r *importJobRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *importJobRepository) Create(ctx context.Context, job *ImportJob) error {
	log := r.log.Function("Create")

	if job.Status == "" {
		job.Status = ImportStatusPending
	}

	if err := r.getDB(ctx).Create(job).Error; err != nil {
		return log.Err("failed to create import job", err, "fileName", job.FileName)
	}

	return nil
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	log := r.log.Function("GetByID")

	var job ImportJob
	if err := r.getDB(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get import job", err, "id", id)
	}

	return &job, nil
}

func (r *importJobRepository) List(ctx context.Context, limit int) ([]*ImportJob, error) {
	log := r.log.Function("List")

	if limit <= 0 {
		limit = DEFAULT_HISTORY_LIMIT
	}
	if limit > MAX_HISTORY_LIMIT {
		limit = MAX_HISTORY_LIMIT
	}

	var jobs []*ImportJob
	if err := r.getDB(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, log.Err("failed to list import jobs", err, "limit", limit)
	}

	return jobs, nil
}

func (r *importJobRepository) ListByStatus(ctx context.Context, status ImportStatus) ([]*ImportJob, error) {
	log := r.log.Function("ListByStatus")

	var jobs []*ImportJob
	if err := r.getDB(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, log.Err("failed to list import jobs by status", err, "status", status)
	}

	return jobs, nil
}

func (r *importJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	log := r.log.Function("MarkProcessing")

	result := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("id = ? AND status = ?", id, ImportStatusPending).
		Updates(map[string]any{
			"status":     ImportStatusProcessing,
			"started_at": startedAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, log.Err("failed to mark import job processing", result.Error, "id", id)
	}

	return result.RowsAffected == 1, nil
}

func (r *importJobRepository) SetTotalItems(ctx context.Context, id uuid.UUID, total int) error {
	log := r.log.Function("SetTotalItems")

	stats := ImportStats{TotalProducts: total}
	err := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("id = ? AND status = ?", id, ImportStatusProcessing).
		Updates(map[string]any{
			"total_items": total,
			"stats":       datatypes.NewJSONType(stats),
			"updated_at":  time.Now(),
		}).Error
	if err != nil {
		return log.Err("failed to set import job total", err, "id", id, "total", total)
	}

	return nil
}

func (r *importJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress ImportProgress) (bool, error) {
	log := r.log.Function("UpdateProgress")

	result := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("id = ? AND status = ? AND progress <= ? AND items_processed <= ?",
			id, ImportStatusProcessing, progress.Progress, progress.ItemsProcessed).
		Updates(map[string]any{
			"progress":        progress.Progress,
			"items_processed": progress.ItemsProcessed,
			"stats":           datatypes.NewJSONType(progress.Stats),
			"item_errors":     itemErrorsValue(progress.ItemErrors),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, log.Err("failed to update import progress", result.Error, "id", id)
	}

	return result.RowsAffected == 1, nil
}

func (r *importJobRepository) Finish(ctx context.Context, id uuid.UUID, result ImportResult) (bool, error) {
	log := r.log.Function("Finish")

	if !result.Status.IsTerminal() {
		return false, log.Error("finish requires a terminal status", "id", id, "status", result.Status)
	}

	updates := map[string]any{
		"status":          result.Status,
		"progress":        result.Progress,
		"items_processed": result.Processed,
		"stats":           datatypes.NewJSONType(result.Stats),
		"item_errors":     itemErrorsValue(result.ItemErrors),
		"error":           result.Error,
		"completed_at":    result.CompletedAt,
		"duration":        result.Duration,
		"updated_at":      time.Now(),
	}

	res := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("id = ? AND status IN ?", id, activeImportStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, log.Err("failed to finish import job", res.Error, "id", id, "status", result.Status)
	}

	return res.RowsAffected == 1, nil
}

func (r *importJobRepository) CancelPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	log := r.log.Function("CancelPending")

	result := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("id = ? AND status = ?", id, ImportStatusPending).
		Updates(map[string]any{
			"status":       ImportStatusCancelled,
			"completed_at": at,
			"duration":     float64(0),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, log.Err("failed to cancel pending import job", result.Error, "id", id)
	}

	return result.RowsAffected == 1, nil
}

// FailStale fails processing jobs whose last write is older than staleBefore. Every
// progress write refreshes updated_at, so a job with a live worker is never stale.
func (r *importJobRepository) FailStale(
	ctx context.Context,
	message string,
	at time.Time,
	staleBefore time.Time,
	exclude []uuid.UUID,
) (int64, error) {
	log := r.log.Function("FailStale")

	query := r.getDB(ctx).
		Model(&ImportJob{}).
		Where("status = ? AND updated_at < ?", ImportStatusProcessing, staleBefore)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	result := query.Updates(map[string]any{
		"status":       ImportStatusFailed,
		"error":        message,
		"completed_at": at,
		"updated_at":   time.Now(),
	})
	if result.Error != nil {
		return 0, log.Err("failed to fail stale import jobs", result.Error, "staleBefore", staleBefore)
	}

	return result.RowsAffected, nil
}

// DeleteFinishedBefore hard deletes terminal jobs completed before cutoff and returns them
// so their upload files can be removed.
func (r *importJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]*ImportJob, error) {
	log := r.log.Function("DeleteFinishedBefore")

	terminal := []ImportStatus{ImportStatusCompleted, ImportStatusFailed, ImportStatusCancelled}

	var jobs []*ImportJob
	if err := r.getDB(ctx).
		Where("status IN ? AND completed_at < ?", terminal, cutoff).
		Find(&jobs).Error; err != nil {
		return nil, log.Err("failed to find expired import jobs", err, "cutoff", cutoff)
	}

	if len(jobs) == 0 {
		return jobs, nil
	}

	ids := make([]uuid.UUID, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	if err := r.getDB(ctx).Unscoped().Where("id IN ?", ids).Delete(&ImportJob{}).Error; err != nil {
		return nil, log.Err("failed to delete expired import jobs", err, "count", len(ids))
	}

	log.Info("Deleted expired import jobs", "count", len(ids), "cutoff", cutoff)
	return jobs, nil
}

func (r *importJobRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func itemErrorsValue(itemErrors []ImportItemError) datatypes.JSONSlice[ImportItemError] {
	if itemErrors == nil {
		return datatypes.JSONSlice[ImportItemError]{}
	}
	return datatypes.JSONSlice[ImportItemError](itemErrors)
}
